package price

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
)

type fakeListingRepo struct {
	listings map[uuid.UUID]*entities.NormalizedListing
}

func (f *fakeListingRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.NormalizedListing, error) {
	if l, ok := f.listings[id]; ok {
		return l, nil
	}
	return nil, pipelineerrors.ErrListingNotFound
}

func (f *fakeListingRepo) GetByRawID(_ context.Context, _ uuid.UUID) (*entities.NormalizedListing, error) {
	return nil, pipelineerrors.ErrListingNotFound
}

func (f *fakeListingRepo) UpsertDraft(_ context.Context, _ *entities.NormalizedListing) error {
	return nil
}

func (f *fakeListingRepo) Save(_ context.Context, _ *entities.NormalizedListing) error {
	return nil
}

func (f *fakeListingRepo) MarkDuplicate(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

type fakeCompRepo struct {
	// pricesByStep returns progressively larger samples as filters relax
	pricesByStep [][]float64
	calls        int
	savedCache   *entities.CompCache
	lastPrice    *float64
	history      []float64
}

func (f *fakeCompRepo) Comparables(_ context.Context, _ deps.CompFilter) ([]float64, error) {
	step := f.calls
	if step >= len(f.pricesByStep) {
		step = len(f.pricesByStep) - 1
	}
	f.calls++
	return f.pricesByStep[step], nil
}

func (f *fakeCompRepo) SaveCompCache(_ context.Context, cc *entities.CompCache) error {
	f.savedCache = cc
	return nil
}

func (f *fakeCompRepo) GetCompCache(_ context.Context, _ uuid.UUID) (*entities.CompCache, error) {
	if f.savedCache == nil {
		return nil, pipelineerrors.ErrListingNotFound
	}
	return f.savedCache, nil
}

func (f *fakeCompRepo) LastPrice(_ context.Context, _ uuid.UUID) (*float64, error) {
	return f.lastPrice, nil
}

func (f *fakeCompRepo) AppendPriceHistory(_ context.Context, _ uuid.UUID, priceBGN float64, _ time.Time) error {
	f.history = append(f.history, priceBGN)
	return nil
}

type fakeEnqueuer struct {
	topics []string
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, topic, _ string, _ any) error {
	f.topics = append(f.topics, topic)
	return nil
}

type passTx struct{}

func (passTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func uniformPrices(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i%5)*100
	}
	return out
}

func testListing() *entities.NormalizedListing {
	brand, model := "bmw", "x5"
	year := 2019
	mileage := 45000
	l := &entities.NormalizedListing{
		BrandID:      &brand,
		ModelID:      &model,
		Year:         &year,
		MileageKm:    &mileage,
		Fuel:         "diesel",
		Gearbox:      "automatic",
		PriceBGN:     28500,
		IsNormalized: true,
	}
	l.ID = uuid.New()
	return l
}

func TestProcessEstimates(t *testing.T) {
	listing := testListing()
	comps := &fakeCompRepo{pricesByStep: [][]float64{uniformPrices(40, 31800)}}
	enq := &fakeEnqueuer{}

	uc := NewUseCase(
		&fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{listing.ID: listing}},
		comps, enq, passTx{}, zerolog.Nop(),
	)

	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("Process() = %v, want done", res)
	}

	cc := comps.savedCache
	if cc == nil {
		t.Fatal("no comp cache saved")
	}
	if cc.SampleSize != 40 {
		t.Errorf("sample size = %d, want 40", cc.SampleSize)
	}
	if cc.PredictedPrice == nil {
		t.Fatal("predicted price missing")
	}
	if cc.DiscountPct <= 0 {
		t.Errorf("discount = %.3f, want positive (asking below P50)", cc.DiscountPct)
	}
	if cc.Confidence <= 0.6 {
		t.Errorf("confidence = %.3f, want > 0.6 for a tight 40-sample set", cc.Confidence)
	}

	if len(comps.history) != 1 || comps.history[0] != 28500 {
		t.Errorf("price history = %v, want one row at 28500", comps.history)
	}
	if len(enq.topics) != 1 || enq.topics[0] != "pipeline.risk" {
		t.Errorf("enqueued = %v, want [pipeline.risk]", enq.topics)
	}
}

func TestProcessRelaxesFilters(t *testing.T) {
	listing := testListing()
	// first two ladder steps are too thin, third reaches the target
	comps := &fakeCompRepo{pricesByStep: [][]float64{
		uniformPrices(8, 30000),
		uniformPrices(15, 30000),
		uniformPrices(35, 30000),
	}}

	uc := NewUseCase(
		&fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{listing.ID: listing}},
		comps, &fakeEnqueuer{}, passTx{}, zerolog.Nop(),
	)

	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if comps.calls != 3 {
		t.Errorf("comparables queried %d times, want 3 (stop at first sufficient step)", comps.calls)
	}
	if comps.savedCache.SampleSize != 35 {
		t.Errorf("sample size = %d, want 35", comps.savedCache.SampleSize)
	}
}

func TestProcessSparseComparables(t *testing.T) {
	listing := testListing()
	comps := &fakeCompRepo{pricesByStep: [][]float64{uniformPrices(3, 30000)}}

	uc := NewUseCase(
		&fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{listing.ID: listing}},
		comps, &fakeEnqueuer{}, passTx{}, zerolog.Nop(),
	)

	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	cc := comps.savedCache
	if cc.Confidence != 0 {
		t.Errorf("confidence = %.3f, want 0 for sample < 5", cc.Confidence)
	}
	if cc.PredictedPrice != nil {
		t.Error("predicted price should be nil for sample < 5")
	}
}

func TestProcessUnchangedPriceNoHistoryRow(t *testing.T) {
	listing := testListing()
	last := 28500.0
	comps := &fakeCompRepo{
		pricesByStep: [][]float64{uniformPrices(40, 31800)},
		lastPrice:    &last,
	}

	uc := NewUseCase(
		&fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{listing.ID: listing}},
		comps, &fakeEnqueuer{}, passTx{}, zerolog.Nop(),
	)

	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(comps.history) != 0 {
		t.Errorf("price history = %v, want empty for unchanged price", comps.history)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{0.5, 30},
		{1, 50},
		{0.25, 20},
	}

	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percentile(%.2f) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestConfidence(t *testing.T) {
	tight := Summarize(uniformPrices(40, 30000))
	sparse := Summarize(uniformPrices(10, 30000))
	var wild []float64
	for i := 0; i < 40; i++ {
		wild = append(wild, 5000+float64(i)*2000)
	}
	scattered := Summarize(wild)

	if c := Confidence(tight); c <= Confidence(sparse) {
		t.Errorf("larger sample should not lower confidence: %v vs %v", c, Confidence(sparse))
	}
	if c := Confidence(tight); c <= Confidence(scattered) {
		t.Errorf("tighter spread should not lower confidence: %v vs %v", c, Confidence(scattered))
	}
	if c := Confidence(dto.CompStats{}); c != 0 {
		t.Errorf("empty stats confidence = %v, want 0", c)
	}
}
