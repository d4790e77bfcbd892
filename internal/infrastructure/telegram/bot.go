// Package telegram contains the messaging transport implementation
package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// MaxMediaGroupSize caps photos per broadcast
const MaxMediaGroupSize = 5

// Bot wraps the Telegram bot for the infrastructure layer. It implements the
// messaging transport for both channel broadcasts and user notifications.
type Bot struct {
	bot    *tgbot.Bot
	logger zerolog.Logger
}

// NewBot creates a new Telegram bot wrapper
func NewBot(cfg *config.TelegramConfig, logger zerolog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	bot, err := tgbot.New(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info().Msg("Telegram bot created successfully")

	return &Bot{
		bot:    bot,
		logger: logger,
	}, nil
}

// SendMediaGroup sends up to five photos with a caption and returns the id
// of the message carrying the caption
func (b *Bot) SendMediaGroup(ctx context.Context, chatID string, images []string, caption string) (int, error) {
	if len(images) > MaxMediaGroupSize {
		images = images[:MaxMediaGroupSize]
	}

	if len(images) == 0 {
		msg, err := b.bot.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:    chatID,
			Text:      caption,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			return 0, mapError(err)
		}
		return msg.ID, nil
	}

	media := make([]models.InputMedia, 0, len(images))
	for i, url := range images {
		photo := &models.InputMediaPhoto{Media: url}
		if i == 0 {
			photo.Caption = caption
			photo.ParseMode = models.ParseModeHTML
		}
		media = append(media, photo)
	}

	msgs, err := b.bot.SendMediaGroup(ctx, &tgbot.SendMediaGroupParams{
		ChatID: chatID,
		Media:  media,
	})
	if err != nil {
		return 0, mapError(err)
	}
	if len(msgs) == 0 {
		return 0, pkgerrors.NewUnavailableError("empty media group response")
	}
	return msgs[0].ID, nil
}

// EditCaption updates the caption of an existing broadcast
func (b *Bot) EditCaption(ctx context.Context, chatID string, messageID int, caption string) error {
	_, err := b.bot.EditMessageCaption(ctx, &tgbot.EditMessageCaptionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

var retryAfterRegex = regexp.MustCompile(`retry after (\d+)`)

// mapError classifies Telegram API failures into the typed transport errors
// the delivery stages act on
func mapError(err error) error {
	text := err.Error()
	lower := strings.ToLower(text)

	if m := retryAfterRegex.FindStringSubmatch(lower); m != nil {
		secs, _ := strconv.Atoi(m[1])
		return pkgerrors.NewRateLimitedError(text, time.Duration(secs)*time.Second)
	}
	if strings.Contains(lower, "too many requests") {
		return pkgerrors.NewRateLimitedError(text, time.Minute)
	}

	switch {
	case strings.Contains(lower, "message is not modified"),
		strings.Contains(lower, "message to edit not found"),
		strings.Contains(lower, "message can't be edited"),
		strings.Contains(lower, "chat not found"),
		strings.Contains(lower, "bot was blocked"),
		strings.Contains(lower, "user is deactivated"):
		return pkgerrors.NewPermanentError(text)
	}

	return pkgerrors.NewUnavailableError(text)
}
