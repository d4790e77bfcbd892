// Package notify dispatches due alert matches to users.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	alertdeps "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	channeldeps "github.com/TheAVengineer/CarScout-AI/internal/domain/channel/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	pipelinedeps "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
	"github.com/TheAVengineer/CarScout-AI/pkg/mapfn"
)

const (
	notifyBucketKey = "user-notify"
	dispatchBatch   = 100
)

// UseCase delivers one due match to its user
type UseCase struct {
	matches      alertdeps.MatchRepository
	alerts       alertdeps.AlertRepository
	users        alertdeps.UserRepository
	entitlements alertdeps.EntitlementsView
	counters     alertdeps.CounterRepository
	listings     pipelinedeps.ListingRepository
	images       pipelinedeps.ImageRepository
	raws         pipelinedeps.RawListingRepository
	limiter      channeldeps.RateLimiter
	msgr         alertdeps.Messenger
	enqueuer     pipelinedeps.Enqueuer
	cfg          *config.AlertsConfig
	logger       zerolog.Logger
}

// NewUseCase creates the notification use case
func NewUseCase(
	matches alertdeps.MatchRepository,
	alerts alertdeps.AlertRepository,
	users alertdeps.UserRepository,
	entitlements alertdeps.EntitlementsView,
	counters alertdeps.CounterRepository,
	listings pipelinedeps.ListingRepository,
	images pipelinedeps.ImageRepository,
	raws pipelinedeps.RawListingRepository,
	limiter channeldeps.RateLimiter,
	msgr alertdeps.Messenger,
	enqueuer pipelinedeps.Enqueuer,
	cfg *config.AlertsConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		matches:      matches,
		alerts:       alerts,
		users:        users,
		entitlements: entitlements,
		counters:     counters,
		listings:     listings,
		images:       images,
		raws:         raws,
		limiter:      limiter,
		msgr:         msgr,
		enqueuer:     enqueuer,
		cfg:          cfg,
		logger:       logger,
	}
}

// DispatchDue sweeps pending matches whose delay elapsed and enqueues them
// on the notification queue. Runs on a scheduler tick.
func (u *UseCase) DispatchDue(ctx context.Context) error {
	due, err := u.matches.Due(ctx, time.Now().UTC(), dispatchBatch)
	if err != nil {
		return err
	}

	for i := range due {
		m := &due[i]
		ok, err := u.matches.Transition(ctx, m.ID, entities.MatchPending, entities.MatchEnqueued)
		if err != nil {
			return err
		}
		if !ok {
			continue // another worker took it
		}
		if err := u.enqueuer.Enqueue(ctx, consts.TopicNotify, m.ID.String(), &dto.NotifyTask{MatchID: m.ID}); err != nil {
			return err
		}
	}

	if len(due) > 0 {
		u.logger.Debug().Int("count", len(due)).Msg("Due alert matches dispatched")
	}
	return nil
}

// Process delivers one enqueued match. Alert and entitlement are re-checked
// at delivery time; the daily cap is consumed atomically with the decision.
func (u *UseCase) Process(ctx context.Context, task *dto.NotifyTask) (dto.Result, error) {
	m, err := u.matches.GetByID(ctx, task.MatchID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if m.Status != entities.MatchEnqueued {
		return dto.ResultSkip, nil
	}

	alert, err := u.alerts.GetByID(ctx, m.AlertID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return u.finalize(ctx, m, entities.MatchSkipped, "alert removed")
		}
		return dto.ResultRetry, err
	}
	if !alert.Active {
		return u.finalize(ctx, m, entities.MatchSkipped, "alert inactive")
	}

	ent, err := u.entitlements.Get(ctx, alert.UserID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return u.finalize(ctx, m, entities.MatchSkipped, "user removed")
		}
		return dto.ResultRetry, err
	}
	if !ent.Active {
		return u.finalize(ctx, m, entities.MatchSkipped, "subscription inactive")
	}

	user, err := u.users.GetByID(ctx, alert.UserID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return u.finalize(ctx, m, entities.MatchSkipped, "user removed")
		}
		return dto.ResultRetry, err
	}

	// transport-level rate limit
	ok, err := u.limiter.Take(ctx, notifyBucketKey, u.cfg.NotifyRate, time.Minute)
	if err != nil {
		return dto.ResultRetry, err
	}
	if !ok {
		return dto.ResultRetry, pkgerrors.NewRateLimitedError("notification budget exhausted", 0)
	}

	// daily cap per UTC day
	day := time.Now().UTC().Format("2006-01-02")
	below, err := u.counters.IncrementIfBelow(ctx, alert.UserID, day, ent.DailyCap)
	if err != nil {
		return dto.ResultRetry, err
	}
	if !below {
		return u.finalize(ctx, m, entities.MatchSkipped, "daily cap reached")
	}

	caption, urls, err := u.render(ctx, m)
	if err != nil {
		return dto.ResultRetry, err
	}

	chatID := strconv.FormatInt(user.TelegramUserID, 10)
	if _, err := u.msgr.SendMediaGroup(ctx, chatID, urls, caption); err != nil {
		if pkgerrors.IsPermanentError(err) {
			// never retried: users are not spammed with dead sends
			return u.finalize(ctx, m, entities.MatchFailed, err.Error())
		}
		return dto.ResultRetry, err
	}

	if err := u.matches.MarkNotified(ctx, m.ID, time.Now().UTC()); err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("match_id", m.ID.String()).
		Str("user_id", alert.UserID.String()).
		Msg("Alert notification delivered")
	return dto.ResultDone, nil
}

func (u *UseCase) finalize(ctx context.Context, m *entities.AlertMatch, status, reason string) (dto.Result, error) {
	if err := u.matches.MarkFinal(ctx, m.ID, status, reason); err != nil {
		return dto.ResultRetry, err
	}
	u.logger.Info().
		Str("match_id", m.ID.String()).
		Str("status", status).
		Str("reason", reason).
		Msg("Alert match finalized without delivery")
	return dto.ResultDone, nil
}

// render builds the user-facing notification
func (u *UseCase) render(ctx context.Context, m *entities.AlertMatch) (string, []string, error) {
	listing, err := u.listings.GetByID(ctx, m.ListingID)
	if err != nil {
		return "", nil, err
	}
	raw, err := u.raws.GetByID(ctx, listing.RawID)
	if err != nil {
		return "", nil, err
	}
	imgs, err := u.images.ListForListing(ctx, listing.ID)
	if err != nil {
		return "", nil, err
	}

	urls := mapfn.ConvertSlice(imgs, func(img pipelineent.Image) string { return img.URL })
	if len(urls) > 5 {
		urls = urls[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>\n", listing.Title)
	fmt.Fprintf(&b, "Цена: <b>%.0f лв.</b>\n", listing.PriceBGN)
	if listing.Year != nil {
		fmt.Fprintf(&b, "Година: %d", *listing.Year)
		if listing.MileageKm != nil {
			fmt.Fprintf(&b, " · %d км", *listing.MileageKm)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s", raw.URL)
	return b.String(), urls, nil
}
