package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	"github.com/TheAVengineer/CarScout-AI/pkg/textsig"
)

type fakeListingRepo struct {
	listings   map[uuid.UUID]*entities.NormalizedListing
	duplicates map[uuid.UUID]uuid.UUID // listing -> canonical
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

func (f *fakeListingRepo) Save(_ context.Context, _ *entities.NormalizedListing) error { return nil }

func (f *fakeListingRepo) MarkDuplicate(_ context.Context, id, canonicalOf uuid.UUID) error {
	if f.duplicates == nil {
		f.duplicates = make(map[uuid.UUID]uuid.UUID)
	}
	f.duplicates[id] = canonicalOf
	return nil
}

type fakeRawRepo struct {
	firstSeen map[uuid.UUID]time.Time
}

func (f *fakeRawRepo) Upsert(_ context.Context, _ uuid.UUID, _ *dto.AdapterRecord) (*entities.RawListing, bool, bool, error) {
	return nil, false, false, nil
}

func (f *fakeRawRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.RawListing, error) {
	raw := &entities.RawListing{FirstSeen: f.firstSeen[id], IsActive: true}
	raw.ID = id
	return raw, nil
}

func (f *fakeRawRepo) IncParseErrors(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }

func (f *fakeRawRepo) ResetParseErrors(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeRawRepo) MarkInactive(_ context.Context, _ uuid.UUID) error { return nil }

type fakeDedupeRepo struct {
	phoneMatches []deps.DedupeCandidate
	candidates   []deps.DedupeCandidate
	savedSig     *entities.DedupeSignature
	logged       *entities.DuplicateLog
}

func (f *fakeDedupeRepo) FindPhoneMatches(_ context.Context, _ uuid.UUID, _, _ string, _, _ float64, _ uuid.UUID) ([]deps.DedupeCandidate, error) {
	return f.phoneMatches, nil
}

func (f *fakeDedupeRepo) Candidates(_ context.Context, _, _ string, _ uuid.UUID, _ int) ([]deps.DedupeCandidate, error) {
	return f.candidates, nil
}

func (f *fakeDedupeRepo) SaveSignature(_ context.Context, sig *entities.DedupeSignature) error {
	f.savedSig = sig
	return nil
}

func (f *fakeDedupeRepo) LogDuplicate(_ context.Context, log *entities.DuplicateLog) error {
	f.logged = log
	return nil
}

func (f *fakeDedupeRepo) GetSignature(_ context.Context, _ uuid.UUID) (*entities.DedupeSignature, error) {
	return nil, pipelineerrors.ErrListingNotFound
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

func newListing(title string, price float64, sellerID *uuid.UUID) *entities.NormalizedListing {
	brand, model := "bmw", "x5"
	year := 2019
	l := &entities.NormalizedListing{
		BrandID:      &brand,
		ModelID:      &model,
		Year:         &year,
		Title:        title,
		PriceBGN:     price,
		SellerID:     sellerID,
		IsNormalized: true,
	}
	l.ID = uuid.New()
	l.RawID = uuid.New()
	return l
}

func candidateFor(l *entities.NormalizedListing, firstSeen time.Time) deps.DedupeCandidate {
	return deps.DedupeCandidate{
		Listing: *l,
		Signature: entities.DedupeSignature{
			ListingID: l.ID,
			TitleTrgm: textsig.TrigramString(l.Title),
		},
		FirstSeen: firstSeen,
	}
}

func newDedupeUC(listings *fakeListingRepo, raws *fakeRawRepo, repo *fakeDedupeRepo, enq *fakeEnqueuer) *UseCase {
	return NewUseCase(listings, raws, repo, enq, passTx{}, &config.PipelineConfig{PhashMaxDistance: 10}, zerolog.Nop())
}

// same phone hash, same brand/model, prices within 10%: the later listing
// becomes the duplicate, the earlier one stays canonical
func TestPhoneDuplicate(t *testing.T) {
	seller := uuid.New()
	earlier := newListing("BMW X5 3.0d", 28500, &seller)
	later := newListing("BMW X5 3.0 дизел", 28300, &seller)

	now := time.Now().UTC()
	raws := &fakeRawRepo{firstSeen: map[uuid.UUID]time.Time{
		earlier.RawID: now.Add(-30 * time.Second),
		later.RawID:   now,
	}}
	listings := &fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{later.ID: later}}
	repo := &fakeDedupeRepo{phoneMatches: []deps.DedupeCandidate{candidateFor(earlier, now.Add(-30 * time.Second))}}
	enq := &fakeEnqueuer{}

	res, err := newDedupeUC(listings, raws, repo, enq).Process(context.Background(), &dto.ListingTask{ListingID: later.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("Process() = %v, want done", res)
	}

	if canonical, ok := listings.duplicates[later.ID]; !ok || canonical != earlier.ID {
		t.Errorf("duplicates = %v, want later -> earlier", listings.duplicates)
	}
	if repo.logged == nil || repo.logged.Method != entities.MethodPhone {
		t.Fatalf("duplicate log = %+v, want phone method", repo.logged)
	}
	if repo.logged.Confidence != 0.95 {
		t.Errorf("confidence = %.2f, want 0.95", repo.logged.Confidence)
	}
	// duplicates terminate: nothing moves forward
	if len(enq.topics) != 0 {
		t.Errorf("duplicate was forwarded: %v", enq.topics)
	}
}

// canonical selection depends on first_seen, not arrival order: when the
// arriving listing is older, the stored match flips to duplicate
func TestCanonicalIndependentOfArrivalOrder(t *testing.T) {
	seller := uuid.New()
	stored := newListing("BMW X5 3.0d", 28300, &seller)
	arriving := newListing("BMW X5 3.0d xDrive", 28500, &seller)

	now := time.Now().UTC()
	raws := &fakeRawRepo{firstSeen: map[uuid.UUID]time.Time{
		arriving.RawID: now.Add(-time.Minute), // observed earlier
		stored.RawID:   now,
	}}
	listings := &fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{arriving.ID: arriving}}
	repo := &fakeDedupeRepo{phoneMatches: []deps.DedupeCandidate{candidateFor(stored, now)}}
	enq := &fakeEnqueuer{}

	if _, err := newDedupeUC(listings, raws, repo, enq).Process(context.Background(), &dto.ListingTask{ListingID: arriving.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if canonical, ok := listings.duplicates[stored.ID]; !ok || canonical != arriving.ID {
		t.Errorf("duplicates = %v, want stored -> arriving (earliest first_seen wins)", listings.duplicates)
	}
	// the surviving listing keeps moving through the pipeline
	if len(enq.topics) != 1 || enq.topics[0] != "pipeline.price" {
		t.Errorf("enqueued = %v, want [pipeline.price]", enq.topics)
	}
	if repo.savedSig == nil {
		t.Error("canonical signature not persisted")
	}
}

func TestTextDuplicate(t *testing.T) {
	existing := newListing("BMW X5 3.0d xDrive full екстри", 28000, nil)
	arriving := newListing("BMW X5 3.0d xDrive full екстри!", 28200, nil)

	now := time.Now().UTC()
	raws := &fakeRawRepo{firstSeen: map[uuid.UUID]time.Time{
		existing.RawID: now.Add(-time.Hour),
		arriving.RawID: now,
	}}
	listings := &fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{arriving.ID: arriving}}
	repo := &fakeDedupeRepo{candidates: []deps.DedupeCandidate{candidateFor(existing, now.Add(-time.Hour))}}

	if _, err := newDedupeUC(listings, raws, repo, &fakeEnqueuer{}).Process(context.Background(), &dto.ListingTask{ListingID: arriving.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if repo.logged == nil || repo.logged.Method != entities.MethodText {
		t.Fatalf("duplicate log = %+v, want text method", repo.logged)
	}
	if repo.logged.Confidence != 0.75 {
		t.Errorf("confidence = %.2f, want 0.75", repo.logged.Confidence)
	}
}

// similar title but diverging price fails the tie break and is not a duplicate
func TestTextTieBreakRejectsPriceGap(t *testing.T) {
	existing := newListing("BMW X5 3.0d xDrive full екстри", 20000, nil)
	arriving := newListing("BMW X5 3.0d xDrive full екстри!", 28000, nil)

	now := time.Now().UTC()
	raws := &fakeRawRepo{firstSeen: map[uuid.UUID]time.Time{
		existing.RawID: now.Add(-time.Hour),
		arriving.RawID: now,
	}}
	listings := &fakeListingRepo{listings: map[uuid.UUID]*entities.NormalizedListing{arriving.ID: arriving}}
	repo := &fakeDedupeRepo{candidates: []deps.DedupeCandidate{candidateFor(existing, now.Add(-time.Hour))}}
	enq := &fakeEnqueuer{}

	if _, err := newDedupeUC(listings, raws, repo, enq).Process(context.Background(), &dto.ListingTask{ListingID: arriving.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if repo.logged != nil {
		t.Fatalf("logged a duplicate despite failing tie break: %+v", repo.logged)
	}
	if repo.savedSig == nil {
		t.Error("signature of a non-duplicate must persist for future matching")
	}
	if len(enq.topics) != 1 || enq.topics[0] != "pipeline.price" {
		t.Errorf("enqueued = %v, want [pipeline.price]", enq.topics)
	}
}
