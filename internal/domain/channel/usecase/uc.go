// Package usecase implements rate-limited, idempotent channel broadcasts.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	channeldeps "github.com/TheAVengineer/CarScout-AI/internal/domain/channel/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/entities"
	pipelinedeps "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
	"github.com/TheAVengineer/CarScout-AI/pkg/mapfn"
)

const bucketKeyPrefix = "channel-post:"

// UseCase delivers approved listings to the broadcast channel
type UseCase struct {
	listings pipelinedeps.ListingRepository
	comps    pipelinedeps.CompRepository
	scores   pipelinedeps.ScoreRepository
	images   pipelinedeps.ImageRepository
	raws     pipelinedeps.RawListingRepository
	posts    channeldeps.ChannelPostRepository
	limiter  channeldeps.RateLimiter
	msgr     channeldeps.Messenger
	delivery *config.DeliveryConfig
	telegram *config.TelegramConfig
	logger   zerolog.Logger

	// serializes create/edit per (channel, listing)
	locks sync.Map
}

// NewUseCase creates the channel delivery use case
func NewUseCase(
	listings pipelinedeps.ListingRepository,
	comps pipelinedeps.CompRepository,
	scores pipelinedeps.ScoreRepository,
	images pipelinedeps.ImageRepository,
	raws pipelinedeps.RawListingRepository,
	posts channeldeps.ChannelPostRepository,
	limiter channeldeps.RateLimiter,
	msgr channeldeps.Messenger,
	delivery *config.DeliveryConfig,
	telegram *config.TelegramConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings: listings,
		comps:    comps,
		scores:   scores,
		images:   images,
		raws:     raws,
		posts:    posts,
		limiter:  limiter,
		msgr:     msgr,
		delivery: delivery,
		telegram: telegram,
		logger:   logger,
	}
}

// Process delivers one approved listing to the channel: post when new, edit
// when the price moved, no-op otherwise
func (u *UseCase) Process(ctx context.Context, task *dto.ListingTask) (dto.Result, error) {
	channel := u.telegram.ChannelID
	if channel == "" {
		return dto.ResultSkip, nil
	}

	listing, err := u.listings.GetByID(ctx, task.ListingID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if listing.IsDuplicate || listing.BrandID == nil || listing.ModelID == nil {
		return dto.ResultSkip, nil
	}

	score, err := u.scores.Get(ctx, listing.ID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if score.State != pipelineent.StateApproved {
		return dto.ResultSkip, nil
	}

	key := channel + "|" + listing.ID.String()
	lock, _ := u.locks.LoadOrStore(key, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	existing, err := u.posts.Get(ctx, channel, listing.ID)
	if err != nil && !pkgerrors.IsNotFoundError(err) {
		return dto.ResultRetry, err
	}

	if existing != nil {
		return u.editExisting(ctx, channel, listing, score, existing)
	}

	return u.postNew(ctx, channel, listing, score)
}

// editExisting refreshes the price on an already broadcast listing
func (u *UseCase) editExisting(ctx context.Context, channel string, listing *pipelineent.NormalizedListing, score *pipelineent.Score, post *entities.ChannelPost) (dto.Result, error) {
	if post.LastPriceBGN == listing.PriceBGN {
		return dto.ResultSkip, nil
	}

	caption, err := u.caption(ctx, listing, score)
	if err != nil {
		return dto.ResultRetry, err
	}

	if err := u.msgr.EditCaption(ctx, channel, post.MessageID, caption); err != nil {
		switch {
		case pkgerrors.IsPermanentError(err):
			// message too old to edit and friends: log and move on
			u.logger.Warn().Err(err).
				Str("listing_id", listing.ID.String()).
				Msg("Permanent edit failure, skipping")
			return dto.ResultSkip, err
		case pkgerrors.IsRateLimitedError(err):
			return dto.ResultRetry, err
		default:
			return dto.ResultRetry, err
		}
	}

	if err := u.posts.UpdatePrice(ctx, post.ID, listing.PriceBGN); err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", listing.ID.String()).
		Float64("price_bgn", listing.PriceBGN).
		Msg("Channel post edited with new price")
	return dto.ResultDone, nil
}

// postNew broadcasts a listing for the first time
func (u *UseCase) postNew(ctx context.Context, channel string, listing *pipelineent.NormalizedListing, score *pipelineent.Score) (dto.Result, error) {
	// diversity: cap posts per brand/model per window
	since := time.Now().UTC().Add(-u.delivery.DiversityWindow)
	recent, err := u.posts.CountRecentByModel(ctx, channel, *listing.BrandID, *listing.ModelID, since)
	if err != nil {
		return dto.ResultRetry, err
	}
	if recent >= int64(u.delivery.DiversityCapPerModel) {
		u.logger.Info().
			Str("listing_id", listing.ID.String()).
			Str("brand_id", *listing.BrandID).
			Str("model_id", *listing.ModelID).
			Msg("Diversity cap reached, skipping broadcast")
		return dto.ResultSkip, nil
	}

	// rolling-hour token bucket
	ok, err := u.limiter.Take(ctx, bucketKeyPrefix+channel, u.delivery.ChannelPostRate, time.Hour)
	if err != nil {
		return dto.ResultRetry, err
	}
	if !ok {
		u.logger.Debug().Str("channel", channel).Msg("Channel bucket empty, requeueing")
		return dto.ResultRetry, pkgerrors.NewRateLimitedError("channel post budget exhausted", 0)
	}

	caption, err := u.caption(ctx, listing, score)
	if err != nil {
		return dto.ResultRetry, err
	}

	imgs, err := u.images.ListForListing(ctx, listing.ID)
	if err != nil {
		return dto.ResultRetry, err
	}
	urls := mapfn.ConvertSlice(imgs, func(img pipelineent.Image) string { return img.URL })
	if len(urls) > 5 {
		urls = urls[:5]
	}

	messageID, err := u.msgr.SendMediaGroup(ctx, channel, urls, caption)
	if err != nil {
		switch {
		case pkgerrors.IsPermanentError(err):
			u.logger.Warn().Err(err).
				Str("listing_id", listing.ID.String()).
				Msg("Permanent send failure, skipping")
			return dto.ResultSkip, err
		default:
			return dto.ResultRetry, err
		}
	}

	post := &entities.ChannelPost{
		ListingID:    listing.ID,
		Channel:      channel,
		MessageID:    messageID,
		BrandID:      *listing.BrandID,
		ModelID:      *listing.ModelID,
		LastPriceBGN: listing.PriceBGN,
		PostedAt:     time.Now().UTC(),
	}
	if err := u.posts.Create(ctx, post); err != nil {
		if pkgerrors.IsConflictError(err) {
			// a concurrent worker won the race; ours becomes a no-op
			return dto.ResultSkip, nil
		}
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", listing.ID.String()).
		Int("message_id", messageID).
		Msg("Listing broadcast to channel")
	return dto.ResultDone, nil
}

// caption renders the broadcast text
func (u *UseCase) caption(ctx context.Context, listing *pipelineent.NormalizedListing, score *pipelineent.Score) (string, error) {
	cc, err := u.comps.GetCompCache(ctx, listing.ID)
	if err != nil && !pkgerrors.IsNotFoundError(err) {
		return "", err
	}
	raw, err := u.raws.GetByID(ctx, listing.RawID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", listing.Title)
	if listing.Year != nil {
		fmt.Fprintf(&b, "Година: %d", *listing.Year)
		if listing.MileageKm != nil {
			fmt.Fprintf(&b, " · %d км", *listing.MileageKm)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Цена: <b>%.0f лв.</b>\n", listing.PriceBGN)
	if cc != nil && cc.PredictedPrice != nil {
		fmt.Fprintf(&b, "Пазарна оценка: %.0f лв. (%.0f%% под пазара)\n", *cc.PredictedPrice, cc.DiscountPct*100)
	}
	fmt.Fprintf(&b, "Оценка: %.1f/10\n", score.Score)
	if features := decodeFeatures(listing.Features); len(features) > 0 {
		fmt.Fprintf(&b, "%s\n", strings.Join(features[:minInt(3, len(features))], " · "))
	}
	fmt.Fprintf(&b, "\n%s", raw.URL)
	return b.String(), nil
}

func decodeFeatures(featuresJSON string) []string {
	if featuresJSON == "" {
		return nil
	}
	var features []string
	if err := json.Unmarshal([]byte(featuresJSON), &features); err != nil {
		return nil
	}
	return features
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
