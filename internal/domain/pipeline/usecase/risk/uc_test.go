package risk

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
)

type fakeListingRepo struct {
	listing *entities.NormalizedListing
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

func (f *fakeListingRepo) Save(_ context.Context, _ *entities.NormalizedListing) error { return nil }

func (f *fakeListingRepo) MarkDuplicate(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakeSellerRepo struct {
	seller *entities.Seller
}

func (f *fakeSellerRepo) UpsertByPhoneHash(_ context.Context, _, _ string) (*entities.Seller, error) {
	return f.seller, nil
}

func (f *fakeSellerRepo) GetByID(_ context.Context, _ uuid.UUID) (*entities.Seller, error) {
	if f.seller == nil {
		return nil, pipelineerrors.ErrListingNotFound
	}
	return f.seller, nil
}

type fakeRiskRepo struct {
	saved  *entities.RiskEvaluation
	cached *dto.RiskResponse
	stored *dto.RiskResponse
}

func (f *fakeRiskRepo) SaveEvaluation(_ context.Context, ev *entities.RiskEvaluation) error {
	f.saved = ev
	return nil
}

func (f *fakeRiskRepo) GetEvaluation(_ context.Context, _ uuid.UUID) (*entities.RiskEvaluation, error) {
	if f.saved == nil {
		return nil, pipelineerrors.ErrListingNotFound
	}
	return f.saved, nil
}

func (f *fakeRiskRepo) GetCachedLLM(_ context.Context, _, _ string) (*dto.RiskResponse, error) {
	return f.cached, nil
}

func (f *fakeRiskRepo) CacheLLM(_ context.Context, _, _ string, resp *dto.RiskResponse) error {
	f.stored = resp
	return nil
}

type fakeLLM struct {
	resp   *dto.RiskResponse
	err    error
	called bool
}

func (f *fakeLLM) Evaluate(_ context.Context, _ *dto.RiskRequest) (*dto.RiskResponse, error) {
	f.called = true
	return f.resp, f.err
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

func uncertainListing() *entities.NormalizedListing {
	l := &entities.NormalizedListing{
		Title:           "Audi A4",
		Description:     "Пресен внос от Германия.",
		DescriptionHash: "abc123",
		IsNormalized:    true,
	}
	l.ID = uuid.New()
	return l
}

func newRiskUC(listing *entities.NormalizedListing, repo *fakeRiskRepo, llm *fakeLLM, enq *fakeEnqueuer) *UseCase {
	classifier, _ := NewClassifier()
	return NewUseCase(
		&fakeListingRepo{listing: listing},
		&fakeSellerRepo{},
		repo,
		llm,
		classifier,
		enq,
		passTx{},
		&config.LLMConfig{PromptVersion: "v2"},
		zerolog.Nop(),
	)
}

func TestProcessLLMUnavailableFallsBack(t *testing.T) {
	listing := uncertainListing()
	repo := &fakeRiskRepo{}
	llm := &fakeLLM{err: pipelineerrors.ErrLLMUnavailable}
	enq := &fakeEnqueuer{}

	res, err := newRiskUC(listing, repo, llm, enq).Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("Process() = %v, want done (pipeline never blocks on LLM)", res)
	}

	if repo.saved == nil {
		t.Fatal("no evaluation saved")
	}
	if !repo.saved.LLMUnavailable {
		t.Error("llm_unavailable flag not set")
	}
	if repo.saved.RiskLevel != entities.RiskYellow {
		t.Errorf("risk level = %s, want rule fallback yellow", repo.saved.RiskLevel)
	}
	if len(enq.topics) != 1 || enq.topics[0] != "pipeline.score" {
		t.Errorf("enqueued = %v, want [pipeline.score]", enq.topics)
	}
}

func TestProcessLLMWinsWhenMoreConfident(t *testing.T) {
	listing := uncertainListing()
	repo := &fakeRiskRepo{}
	llm := &fakeLLM{resp: &dto.RiskResponse{
		RiskLevel:  entities.RiskGreen,
		Confidence: 0.9,
		Summary:    "Нормална обява за внос.",
	}}

	_, err := newRiskUC(listing, repo, llm, &fakeEnqueuer{}).Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if repo.saved.RiskLevel != entities.RiskGreen {
		t.Errorf("risk level = %s, want llm verdict green (0.9 > rule confidence)", repo.saved.RiskLevel)
	}
	if repo.stored == nil {
		t.Error("llm response not cached")
	}
}

func TestProcessUsesCachedLLM(t *testing.T) {
	listing := uncertainListing()
	repo := &fakeRiskRepo{cached: &dto.RiskResponse{
		RiskLevel:  entities.RiskRed,
		Confidence: 0.95,
		Summary:    "Съмнителна обява.",
	}}
	llm := &fakeLLM{}

	_, err := newRiskUC(listing, repo, llm, &fakeEnqueuer{}).Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if llm.called {
		t.Error("LLM called despite cache hit")
	}
	if repo.saved.RiskLevel != entities.RiskRed {
		t.Errorf("risk level = %s, want cached red", repo.saved.RiskLevel)
	}
}

func TestProcessHardFlagSkipsLLM(t *testing.T) {
	listing := uncertainListing()
	listing.Description = "Колата е след катастрофа, на части."
	repo := &fakeRiskRepo{}
	llm := &fakeLLM{}

	_, err := newRiskUC(listing, repo, llm, &fakeEnqueuer{}).Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if llm.called {
		t.Error("LLM called for a hard-flagged listing")
	}
	if repo.saved.RiskLevel != entities.RiskRed {
		t.Errorf("risk level = %s, want red", repo.saved.RiskLevel)
	}
}
