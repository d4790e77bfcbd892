package normalize

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
	catalogent "github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/seed"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type fakeBrandRepo struct {
	rows []catalogent.BrandModel
}

func (f *fakeBrandRepo) ListActive(_ context.Context) ([]catalogent.BrandModel, error) {
	return f.rows, nil
}

func (f *fakeBrandRepo) SeedIfEmpty(_ context.Context, _ []catalogent.BrandModel) error {
	return nil
}

type fakeFxRepo struct{}

func (f *fakeFxRepo) Rate(_ context.Context, _, _ string) (float64, error) {
	return 0, pkgerrors.NewNotFoundError("fx rate not found")
}

func (f *fakeFxRepo) Upsert(_ context.Context, _, _ string, _ float64) error { return nil }

type fakeListingRepo struct {
	listing *entities.NormalizedListing
	saved   *entities.NormalizedListing
}

func (f *fakeListingRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.NormalizedListing, error) {
	if f.listing != nil && f.listing.ID == id {
		return f.listing, nil
	}
	return nil, pipelineerrors.ErrListingNotFound
}

func (f *fakeListingRepo) GetByRawID(_ context.Context, _ uuid.UUID) (*entities.NormalizedListing, error) {
	return nil, pipelineerrors.ErrListingNotFound
}

func (f *fakeListingRepo) UpsertDraft(_ context.Context, _ *entities.NormalizedListing) error {
	return nil
}

func (f *fakeListingRepo) Save(_ context.Context, l *entities.NormalizedListing) error {
	f.saved = l
	return nil
}

func (f *fakeListingRepo) MarkDuplicate(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakeSellerRepo struct {
	upserted string
}

func (f *fakeSellerRepo) UpsertByPhoneHash(_ context.Context, phoneHash, _ string) (*entities.Seller, error) {
	f.upserted = phoneHash
	seller := &entities.Seller{PhoneHash: phoneHash}
	seller.ID = uuid.New()
	return seller, nil
}

func (f *fakeSellerRepo) GetByID(_ context.Context, _ uuid.UUID) (*entities.Seller, error) {
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

func newTestCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	rows, err := seed.BrandModels()
	if err != nil {
		t.Fatalf("failed to load seed: %v", err)
	}
	svc := catalog.NewService(&fakeBrandRepo{rows: rows}, &fakeFxRepo{}, zerolog.Nop())
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return svc
}

func draftListing() *entities.NormalizedListing {
	year := 2019
	mileage := 45000
	l := &entities.NormalizedListing{
		BrandRaw:    "BMW",
		ModelRaw:    "X5",
		Title:       "BMW X5 3.0d",
		Description: "Перфектно състояние, сервизна история.",
		Fuel:        "дизел",
		Gearbox:     "автоматик",
		Body:        "джип",
		Region:      "София",
		Price:       28500,
		Currency:    "BGN",
		Year:        &year,
		MileageKm:   &mileage,
		PhoneHash:   "abcd1234",
	}
	l.ID = uuid.New()
	l.RawID = uuid.New()
	return l
}

func TestProcessNormalizes(t *testing.T) {
	listing := draftListing()
	repo := &fakeListingRepo{listing: listing}
	sellers := &fakeSellerRepo{}
	enq := &fakeEnqueuer{}

	uc := NewUseCase(repo, sellers, newTestCatalog(t), enq, passTx{}, zerolog.Nop())
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("Process() = %v, want done", res)
	}

	saved := repo.saved
	if saved == nil {
		t.Fatal("listing not saved")
	}
	if saved.BrandID == nil || *saved.BrandID != "bmw" {
		t.Errorf("brand_id = %v, want bmw", saved.BrandID)
	}
	if saved.ModelID == nil || *saved.ModelID != "x5" {
		t.Errorf("model_id = %v, want x5", saved.ModelID)
	}
	if saved.Fuel != "diesel" || saved.Gearbox != "automatic" || saved.Body != "suv" {
		t.Errorf("enums = (%s, %s, %s), want (diesel, automatic, suv)", saved.Fuel, saved.Gearbox, saved.Body)
	}
	if saved.Region != "sofia" {
		t.Errorf("region = %s, want sofia", saved.Region)
	}
	if saved.PriceBGN != 28500 {
		t.Errorf("price_bgn = %v, want 28500", saved.PriceBGN)
	}
	if !saved.IsNormalized || saved.Draft {
		t.Errorf("flags = (normalized=%v, draft=%v), want (true, false)", saved.IsNormalized, saved.Draft)
	}
	if saved.DescriptionHash == "" {
		t.Error("description hash missing")
	}
	if saved.SellerID == nil {
		t.Error("seller not linked")
	}
	if sellers.upserted != "abcd1234" {
		t.Errorf("seller upserted with %q, want the listing phone hash", sellers.upserted)
	}
	if len(enq.topics) != 1 || enq.topics[0] != "pipeline.dedupe" {
		t.Errorf("enqueued = %v, want [pipeline.dedupe]", enq.topics)
	}
}

func TestProcessEURConversion(t *testing.T) {
	listing := draftListing()
	listing.Price = 10000
	listing.Currency = "EUR"
	repo := &fakeListingRepo{listing: listing}

	uc := NewUseCase(repo, &fakeSellerRepo{}, newTestCatalog(t), &fakeEnqueuer{}, passTx{}, zerolog.Nop())
	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	want := 19558.30
	if diff := repo.saved.PriceBGN - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("price_bgn = %v, want %v (EUR peg)", repo.saved.PriceBGN, want)
	}
}

func TestProcessUnmappableBrandParksDraft(t *testing.T) {
	listing := draftListing()
	listing.BrandRaw = "Trabant"
	listing.ModelRaw = "601"
	listing.Title = "Trabant 601"
	repo := &fakeListingRepo{listing: listing}
	enq := &fakeEnqueuer{}

	uc := NewUseCase(repo, &fakeSellerRepo{}, newTestCatalog(t), enq, passTx{}, zerolog.Nop())
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultSkip {
		t.Fatalf("Process() = %v, want skip (parked draft)", res)
	}

	if !repo.saved.Draft {
		t.Error("listing not marked draft")
	}
	if len(enq.topics) != 0 {
		t.Errorf("draft listing was forwarded: %v", enq.topics)
	}
}

func TestProcessImplausibleValuesDropped(t *testing.T) {
	listing := draftListing()
	badYear := 1920
	badMileage := 2_000_000
	listing.Year = &badYear
	listing.MileageKm = &badMileage
	listing.Title = "BMW X5"
	listing.Description = "Много запазена."
	repo := &fakeListingRepo{listing: listing}

	uc := NewUseCase(repo, &fakeSellerRepo{}, newTestCatalog(t), &fakeEnqueuer{}, passTx{}, zerolog.Nop())
	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if repo.saved.Year != nil {
		t.Errorf("year = %v, want dropped", *repo.saved.Year)
	}
	if repo.saved.MileageKm != nil {
		t.Errorf("mileage = %v, want dropped", *repo.saved.MileageKm)
	}
}

func TestProcessRecoversYearAndMileageFromText(t *testing.T) {
	listing := draftListing()
	listing.Year = nil
	listing.MileageKm = nil
	listing.Title = "BMW X5 2017"
	listing.Description = "Реални 120000 км, обслужена."
	repo := &fakeListingRepo{listing: listing}

	uc := NewUseCase(repo, &fakeSellerRepo{}, newTestCatalog(t), &fakeEnqueuer{}, passTx{}, zerolog.Nop())
	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if repo.saved.Year == nil || *repo.saved.Year != 2017 {
		t.Errorf("year = %v, want 2017 from title", repo.saved.Year)
	}
	if repo.saved.MileageKm == nil || *repo.saved.MileageKm != 120000 {
		t.Errorf("mileage = %v, want 120000 from description", repo.saved.MileageKm)
	}
}

func TestDescriptionHashNormalizesWhitespace(t *testing.T) {
	a := DescriptionHash("кола  в добро    състояние")
	b := DescriptionHash("кола в добро състояние")
	c := DescriptionHash("друга кола")

	if a != b {
		t.Error("whitespace variants should hash identically")
	}
	if a == c {
		t.Error("different descriptions should hash differently")
	}
}
