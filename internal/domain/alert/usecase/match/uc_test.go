package match

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	alertdeps "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/dsl"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type fakeListingRepo struct {
	listing *pipelineent.NormalizedListing
}

func (f *fakeListingRepo) GetByID(_ context.Context, _ uuid.UUID) (*pipelineent.NormalizedListing, error) {
	return f.listing, nil
}

func (f *fakeListingRepo) GetByRawID(_ context.Context, _ uuid.UUID) (*pipelineent.NormalizedListing, error) {
	return nil, pipelineerrors.ErrListingNotFound
}

func (f *fakeListingRepo) UpsertDraft(_ context.Context, _ *pipelineent.NormalizedListing) error {
	return nil
}

func (f *fakeListingRepo) Save(_ context.Context, _ *pipelineent.NormalizedListing) error {
	return nil
}

func (f *fakeListingRepo) MarkDuplicate(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakeAlertRepo struct {
	alerts []entities.Alert
}

func (f *fakeAlertRepo) ListActive(_ context.Context) ([]entities.Alert, error) {
	return f.alerts, nil
}

func (f *fakeAlertRepo) GetByID(_ context.Context, _ uuid.UUID) (*entities.Alert, error) {
	return nil, pkgerrors.NewNotFoundError("alert not found")
}

func (f *fakeAlertRepo) CountActiveByUser(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeAlertRepo) Create(_ context.Context, _ *entities.Alert) error { return nil }

func (f *fakeAlertRepo) Deactivate(_ context.Context, _ uuid.UUID) error { return nil }

type fakeMatchRepo struct {
	created []*entities.AlertMatch
	seen    map[string]bool
}

func (f *fakeMatchRepo) Create(_ context.Context, m *entities.AlertMatch) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	k := m.AlertID.String() + "|" + m.ListingID.String()
	if f.seen[k] {
		return pkgerrors.NewConflictError("alert match already exists")
	}
	f.seen[k] = true
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, _ uuid.UUID) (*entities.AlertMatch, error) {
	return nil, pkgerrors.NewNotFoundError("alert match not found")
}

func (f *fakeMatchRepo) Due(_ context.Context, _ time.Time, _ int) ([]entities.AlertMatch, error) {
	return nil, nil
}

func (f *fakeMatchRepo) Transition(_ context.Context, _ uuid.UUID, _, _ string) (bool, error) {
	return true, nil
}

func (f *fakeMatchRepo) MarkNotified(_ context.Context, _ uuid.UUID, _ time.Time) error { return nil }

func (f *fakeMatchRepo) MarkFinal(_ context.Context, _ uuid.UUID, _, _ string) error { return nil }

type fakeEntitlements struct {
	delay time.Duration
}

func (f *fakeEntitlements) Get(_ context.Context, _ uuid.UUID) (*alertdeps.Entitlement, error) {
	return &alertdeps.Entitlement{
		PlanName: entities.PlanFree,
		Delay:    f.delay,
		DailyCap: 10,
		Active:   true,
	}, nil
}

func intPtr(v int) *int { return &v }

func matchedListing() *pipelineent.NormalizedListing {
	brand, model := "bmw", "x5"
	year := 2019
	mileage := 95000
	l := &pipelineent.NormalizedListing{
		BrandID:      &brand,
		ModelID:      &model,
		Year:         &year,
		MileageKm:    &mileage,
		Fuel:         "diesel",
		Gearbox:      "automatic",
		Body:         "suv",
		Region:       "sofia",
		PriceBGN:     24000,
		IsNormalized: true,
	}
	l.ID = uuid.New()
	return l
}

func alertWith(t *testing.T, f dsl.Filters) entities.Alert {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal filters: %v", err)
	}
	a := entities.Alert{UserID: uuid.New(), Filters: string(data), Active: true}
	a.ID = uuid.New()
	return a
}

func TestMatches(t *testing.T) {
	listing := matchedListing()

	tests := []struct {
		name    string
		filters dsl.Filters
		want    bool
	}{
		{
			name: "all fields satisfied",
			filters: dsl.Filters{
				BrandID:  "bmw",
				ModelID:  "x5",
				Fuel:     "diesel",
				Gearbox:  "automatic",
				MinYear:  intPtr(2018),
				MaxPrice: intPtr(25000),
			},
			want: true,
		},
		{name: "empty filters match everything", filters: dsl.Filters{}, want: true},
		{name: "wrong brand", filters: dsl.Filters{BrandID: "audi"}, want: false},
		{name: "price above cap", filters: dsl.Filters{MaxPrice: intPtr(20000)}, want: false},
		{name: "price at cap matches", filters: dsl.Filters{MaxPrice: intPtr(24000)}, want: true},
		{name: "year below bound", filters: dsl.Filters{MinYear: intPtr(2020)}, want: false},
		{name: "year at bound matches", filters: dsl.Filters{MinYear: intPtr(2019)}, want: true},
		{name: "mileage above cap", filters: dsl.Filters{MaxMileage: intPtr(90000)}, want: false},
		{name: "same region", filters: dsl.Filters{Region: "sofia"}, want: true},
		{name: "other region", filters: dsl.Filters{Region: "varna"}, want: false},
		{name: "power filter without data", filters: dsl.Filters{MinPower: intPtr(150)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.filters, listing); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessCreatesDelayedMatch(t *testing.T) {
	listing := matchedListing()
	alert := alertWith(t, dsl.Filters{BrandID: "bmw", ModelID: "x5", Fuel: "diesel", MaxPrice: intPtr(25000), MinYear: intPtr(2018)})
	matches := &fakeMatchRepo{}

	uc := NewUseCase(
		&fakeListingRepo{listing: listing},
		&fakeAlertRepo{alerts: []entities.Alert{alert}},
		matches,
		&fakeEntitlements{delay: 30 * time.Minute},
		zerolog.Nop(),
	)

	before := time.Now().UTC()
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("Process() = %v, want done", res)
	}

	if len(matches.created) != 1 {
		t.Fatalf("matches created = %d, want 1", len(matches.created))
	}
	m := matches.created[0]
	if m.Status != entities.MatchPending {
		t.Errorf("status = %s, want pending", m.Status)
	}
	// free plan delay: delivery no earlier than matched_at + 30m
	if delay := m.DeliverAfter.Sub(m.MatchedAt); delay != 30*time.Minute {
		t.Errorf("delay = %v, want 30m", delay)
	}
	if m.MatchedAt.Before(before.Add(-time.Second)) {
		t.Errorf("matched_at = %v, want around now", m.MatchedAt)
	}
}

func TestProcessIdempotentOnReplay(t *testing.T) {
	listing := matchedListing()
	alert := alertWith(t, dsl.Filters{BrandID: "bmw"})
	matches := &fakeMatchRepo{}

	uc := NewUseCase(
		&fakeListingRepo{listing: listing},
		&fakeAlertRepo{alerts: []entities.Alert{alert}},
		matches,
		&fakeEntitlements{},
		zerolog.Nop(),
	)

	for i := 0; i < 2; i++ {
		if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
			t.Fatalf("Process() run %d error: %v", i, err)
		}
	}
	if len(matches.created) != 1 {
		t.Errorf("matches created = %d after replay, want 1 (unique pair)", len(matches.created))
	}
}

func TestProcessNonMatchingAlert(t *testing.T) {
	listing := matchedListing()
	alert := alertWith(t, dsl.Filters{BrandID: "audi"})
	matches := &fakeMatchRepo{}

	uc := NewUseCase(
		&fakeListingRepo{listing: listing},
		&fakeAlertRepo{alerts: []entities.Alert{alert}},
		matches,
		&fakeEntitlements{},
		zerolog.Nop(),
	)

	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(matches.created) != 0 {
		t.Errorf("matches created = %d, want 0", len(matches.created))
	}
}
