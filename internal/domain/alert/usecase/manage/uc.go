// Package manage covers alert lifecycle operations invoked by the bot
// surface (which itself is an external collaborator).
package manage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	alertdeps "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/dsl"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// UseCase creates and deactivates alerts under plan limits
type UseCase struct {
	alerts       alertdeps.AlertRepository
	entitlements alertdeps.EntitlementsView
	parser       *dsl.Parser
	logger       zerolog.Logger
}

// NewUseCase creates the alert management use case
func NewUseCase(
	alerts alertdeps.AlertRepository,
	entitlements alertdeps.EntitlementsView,
	parser *dsl.Parser,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		alerts:       alerts,
		entitlements: entitlements,
		parser:       parser,
		logger:       logger,
	}
}

// CreateAlert parses the query and stores the alert in both raw and
// normalized form. Plan max_alerts is enforced here.
func (u *UseCase) CreateAlert(ctx context.Context, userID uuid.UUID, query string) (*entities.Alert, []string, error) {
	ent, err := u.entitlements.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	count, err := u.alerts.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if count >= int64(ent.MaxAlerts) {
		return nil, nil, pkgerrors.NewValidationError("alert limit reached for plan " + ent.PlanName)
	}

	res := u.parser.Parse(query)
	filters, err := json.Marshal(res.Filters)
	if err != nil {
		return nil, nil, err
	}

	alert := &entities.Alert{
		UserID:   userID,
		DSLQuery: query,
		Filters:  string(filters),
		Active:   true,
	}
	if err := u.alerts.Create(ctx, alert); err != nil {
		return nil, nil, err
	}

	u.logger.Info().
		Str("user_id", userID.String()).
		Str("alert_id", alert.ID.String()).
		Str("query", query).
		Strs("warnings", res.Warnings).
		Msg("Alert created")
	return alert, res.Warnings, nil
}

// DeactivateAlert turns an alert off; only the owner may do so
func (u *UseCase) DeactivateAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	alert, err := u.alerts.GetByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert.UserID != userID {
		return pkgerrors.NewValidationError("alert belongs to another user")
	}
	return u.alerts.Deactivate(ctx, alertID)
}
