package deps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
)

// Messenger delivers user notifications
type Messenger interface {
	SendMediaGroup(ctx context.Context, chatID string, images []string, caption string) (messageID int, err error)
}

// Entitlement is the read-only projection of a user's plan limits. The
// subscription lifecycle itself is an external collaborator.
type Entitlement struct {
	PlanName  string
	MaxAlerts int
	Delay     time.Duration
	DailyCap  int // 0 means unlimited
	Active    bool
}

// EntitlementsView resolves a user's current entitlements
type EntitlementsView interface {
	Get(ctx context.Context, userID uuid.UUID) (*Entitlement, error)
}

// AlertRepository maintains stored alerts
type AlertRepository interface {
	ListActive(ctx context.Context) ([]entities.Alert, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Alert, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Create(ctx context.Context, alert *entities.Alert) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// MatchRepository maintains alert/listing match rows
type MatchRepository interface {
	// Create inserts the unique (alert, listing) row; concurrent duplicates
	// collapse into a conflict error
	Create(ctx context.Context, match *entities.AlertMatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.AlertMatch, error)
	// Due returns pending matches whose delivery time has arrived
	Due(ctx context.Context, now time.Time, limit int) ([]entities.AlertMatch, error)
	// Transition updates status only when the row still has the expected one
	Transition(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	// MarkNotified sets the final status together with the delivery time
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFinal(ctx context.Context, id uuid.UUID, status, reason string) error
}

// UserRepository reads users
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

// PlanRepository reads and seeds plans
type PlanRepository interface {
	SeedDefaults(ctx context.Context) error
}

// CounterRepository tracks per-user daily notification counts
type CounterRepository interface {
	// IncrementIfBelow atomically bumps the (user, day) counter unless it
	// already reached cap; cap 0 means unlimited
	IncrementIfBelow(ctx context.Context, userID uuid.UUID, day string, cap int) (bool, error)
}
