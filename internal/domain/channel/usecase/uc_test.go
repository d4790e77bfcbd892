package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
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

type fakeCompRepo struct{}

func (f *fakeCompRepo) Comparables(_ context.Context, _ deps.CompFilter) ([]float64, error) {
	return nil, nil
}

func (f *fakeCompRepo) GetCompCache(_ context.Context, _ uuid.UUID) (*pipelineent.CompCache, error) {
	return nil, pipelineerrors.ErrListingNotFound
}

func (f *fakeCompRepo) SaveCompCache(_ context.Context, _ *pipelineent.CompCache) error { return nil }

func (f *fakeCompRepo) LastPrice(_ context.Context, _ uuid.UUID) (*float64, error) { return nil, nil }

func (f *fakeCompRepo) AppendPriceHistory(_ context.Context, _ uuid.UUID, _ float64, _ time.Time) error {
	return nil
}

type fakeScoreRepo struct {
	score *pipelineent.Score
}

func (f *fakeScoreRepo) Save(_ context.Context, _ *pipelineent.Score) error { return nil }

func (f *fakeScoreRepo) Get(_ context.Context, _ uuid.UUID) (*pipelineent.Score, error) {
	return f.score, nil
}

type fakeImageRepo struct{}

func (f *fakeImageRepo) ReplaceForListing(_ context.Context, _ uuid.UUID, _ []pipelineent.Image) error {
	return nil
}

func (f *fakeImageRepo) ListForListing(_ context.Context, _ uuid.UUID) ([]pipelineent.Image, error) {
	return []pipelineent.Image{{URL: "https://img.example/1.jpg"}}, nil
}

type fakeRawRepo struct{}

func (f *fakeRawRepo) Upsert(_ context.Context, _ uuid.UUID, _ *dto.AdapterRecord) (*pipelineent.RawListing, bool, bool, error) {
	return nil, false, false, nil
}

func (f *fakeRawRepo) GetByID(_ context.Context, id uuid.UUID) (*pipelineent.RawListing, error) {
	raw := &pipelineent.RawListing{URL: "https://m.example/M1"}
	raw.ID = id
	return raw, nil
}

func (f *fakeRawRepo) IncParseErrors(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }

func (f *fakeRawRepo) ResetParseErrors(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeRawRepo) MarkInactive(_ context.Context, _ uuid.UUID) error { return nil }

type fakePostRepo struct {
	posts map[string]*entities.ChannelPost
	count int64
}

func (f *fakePostRepo) key(channel string, listingID uuid.UUID) string {
	return channel + "|" + listingID.String()
}

func (f *fakePostRepo) Get(_ context.Context, channel string, listingID uuid.UUID) (*entities.ChannelPost, error) {
	if p, ok := f.posts[f.key(channel, listingID)]; ok {
		return p, nil
	}
	return nil, pkgerrors.NewNotFoundError("channel post not found")
}

func (f *fakePostRepo) Create(_ context.Context, post *entities.ChannelPost) error {
	if f.posts == nil {
		f.posts = make(map[string]*entities.ChannelPost)
	}
	k := f.key(post.Channel, post.ListingID)
	if _, exists := f.posts[k]; exists {
		return pkgerrors.NewConflictError("channel post already exists")
	}
	post.ID = uuid.New()
	f.posts[k] = post
	return nil
}

func (f *fakePostRepo) UpdatePrice(_ context.Context, id uuid.UUID, priceBGN float64) error {
	for _, p := range f.posts {
		if p.ID == id {
			p.LastPriceBGN = priceBGN
		}
	}
	return nil
}

func (f *fakePostRepo) CountRecentByModel(_ context.Context, _, _, _ string, _ time.Time) (int64, error) {
	return f.count, nil
}

type fakeLimiter struct {
	allow bool
	taken int
}

func (f *fakeLimiter) Take(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	if f.allow {
		f.taken++
	}
	return f.allow, nil
}

type fakeMessenger struct {
	sent    int
	edited  int
	sendErr error
	editErr error
}

func (f *fakeMessenger) SendMediaGroup(_ context.Context, _ string, _ []string, _ string) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent++
	return 1000 + f.sent, nil
}

func (f *fakeMessenger) EditCaption(_ context.Context, _ string, _ int, _ string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edited++
	return nil
}

func approvedListing() *pipelineent.NormalizedListing {
	brand, model := "bmw", "x5"
	year := 2019
	l := &pipelineent.NormalizedListing{
		BrandID:      &brand,
		ModelID:      &model,
		Year:         &year,
		Title:        "BMW X5 3.0d",
		PriceBGN:     24000,
		IsNormalized: true,
	}
	l.ID = uuid.New()
	l.RawID = uuid.New()
	return l
}

func newChannelUC(listing *pipelineent.NormalizedListing, posts *fakePostRepo, limiter *fakeLimiter, msgr *fakeMessenger) *UseCase {
	return NewUseCase(
		&fakeListingRepo{listing: listing},
		&fakeCompRepo{},
		&fakeScoreRepo{score: &pipelineent.Score{Score: 9.5, State: pipelineent.StateApproved}},
		&fakeImageRepo{},
		&fakeRawRepo{},
		posts,
		limiter,
		msgr,
		&config.DeliveryConfig{ChannelPostRate: 20, DiversityWindow: 6 * time.Hour, DiversityCapPerModel: 2},
		&config.TelegramConfig{ChannelID: "@carhunt"},
		zerolog.Nop(),
	)
}

func TestProcessBroadcastsOnce(t *testing.T) {
	listing := approvedListing()
	posts := &fakePostRepo{}
	limiter := &fakeLimiter{allow: true}
	msgr := &fakeMessenger{}

	uc := newChannelUC(listing, posts, limiter, msgr)
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("Process() = %v, want done", res)
	}

	if msgr.sent != 1 {
		t.Errorf("sent %d media groups, want 1", msgr.sent)
	}
	if limiter.taken != 1 {
		t.Errorf("consumed %d tokens, want 1", limiter.taken)
	}
	if len(posts.posts) != 1 {
		t.Fatalf("post rows = %d, want exactly 1", len(posts.posts))
	}

	// replay: price unchanged, must be a pure no-op
	res, _ = uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if res != dto.ResultSkip {
		t.Fatalf("replay = %v, want skip", res)
	}
	if msgr.sent != 1 || msgr.edited != 0 || len(posts.posts) != 1 {
		t.Errorf("replay caused side effects: sent=%d edited=%d rows=%d", msgr.sent, msgr.edited, len(posts.posts))
	}
}

func TestProcessPriceChangeEditsInPlace(t *testing.T) {
	listing := approvedListing()
	posts := &fakePostRepo{}
	limiter := &fakeLimiter{allow: true}
	msgr := &fakeMessenger{}

	uc := newChannelUC(listing, posts, limiter, msgr)
	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("first delivery error: %v", err)
	}

	listing.PriceBGN = 22500
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("edit delivery error: %v", err)
	}
	if res != dto.ResultDone {
		t.Fatalf("edit delivery = %v, want done", res)
	}

	if msgr.edited != 1 {
		t.Errorf("edits = %d, want 1", msgr.edited)
	}
	if msgr.sent != 1 {
		t.Errorf("sends = %d, want still 1 (edits never repost)", msgr.sent)
	}
	if len(posts.posts) != 1 {
		t.Fatalf("post rows = %d, want still 1", len(posts.posts))
	}
	for _, p := range posts.posts {
		if p.LastPriceBGN != 22500 {
			t.Errorf("last price = %v, want 22500", p.LastPriceBGN)
		}
	}
}

func TestProcessEmptyBucketRequeues(t *testing.T) {
	listing := approvedListing()
	msgr := &fakeMessenger{}

	uc := newChannelUC(listing, &fakePostRepo{}, &fakeLimiter{allow: false}, msgr)
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if res != dto.ResultRetry {
		t.Fatalf("Process() = %v (err %v), want retry when bucket is empty", res, err)
	}
	if msgr.sent != 0 {
		t.Error("sent despite empty bucket")
	}
}

func TestProcessDiversityCapSkips(t *testing.T) {
	listing := approvedListing()
	posts := &fakePostRepo{count: 2}
	msgr := &fakeMessenger{}

	uc := newChannelUC(listing, posts, &fakeLimiter{allow: true}, msgr)
	res, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res != dto.ResultSkip {
		t.Fatalf("Process() = %v, want skip at diversity cap", res)
	}
	if msgr.sent != 0 {
		t.Error("sent despite diversity cap")
	}
}

func TestProcessPermanentEditFailureSkips(t *testing.T) {
	listing := approvedListing()
	posts := &fakePostRepo{}
	msgr := &fakeMessenger{}

	uc := newChannelUC(listing, posts, &fakeLimiter{allow: true}, msgr)
	if _, err := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID}); err != nil {
		t.Fatalf("first delivery error: %v", err)
	}

	listing.PriceBGN = 21000
	msgr.editErr = pkgerrors.NewPermanentError("message can't be edited")
	res, _ := uc.Process(context.Background(), &dto.ListingTask{ListingID: listing.ID})
	if res != dto.ResultSkip {
		t.Fatalf("Process() = %v, want skip on permanent transport failure", res)
	}
}
