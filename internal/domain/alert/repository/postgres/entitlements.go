package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type entitlementsView struct {
	db  *gorm.DB
	cfg *config.AlertsConfig
}

// NewEntitlementsView creates the read-only entitlements projection
func NewEntitlementsView(db *gorm.DB, cfg *config.AlertsConfig) deps.EntitlementsView {
	return &entitlementsView{db: db, cfg: cfg}
}

// Get resolves the user's plan limits. Users without an active subscription
// fall back to the free tier.
func (v *entitlementsView) Get(ctx context.Context, userID uuid.UUID) (*deps.Entitlement, error) {
	db := database.FromContext(ctx, v.db).WithContext(ctx)

	var user entities.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundError("user not found")
		}
		return nil, pkgerrors.NewDatabaseError("failed to read user")
	}

	ent := v.freeTier()
	ent.Active = user.Status == "active"

	var sub entities.Subscription
	err := db.Where("user_id = ? AND status = ?", userID, entities.SubActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ent, nil
		}
		return nil, pkgerrors.NewDatabaseError("failed to read subscription")
	}
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(time.Now().UTC()) {
		return ent, nil
	}

	var plan entities.Plan
	if err := db.First(&plan, "id = ?", sub.PlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ent, nil
		}
		return nil, pkgerrors.NewDatabaseError("failed to read plan")
	}

	return &deps.Entitlement{
		PlanName:  plan.Name,
		MaxAlerts: plan.MaxAlerts,
		Delay:     time.Duration(plan.NotifyDelayMin) * time.Minute,
		DailyCap:  plan.DailyCap,
		Active:    ent.Active,
	}, nil
}

func (v *entitlementsView) freeTier() *deps.Entitlement {
	return &deps.Entitlement{
		PlanName:  entities.PlanFree,
		MaxAlerts: 3,
		Delay:     v.cfg.FreeDelay,
		DailyCap:  v.cfg.DailyCap(entities.PlanFree),
	}
}

type planRepository struct {
	db  *gorm.DB
	cfg *config.AlertsConfig
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB, cfg *config.AlertsConfig) deps.PlanRepository {
	return &planRepository{db: db, cfg: cfg}
}

// SeedDefaults inserts the three tiers when the table is empty
func (r *planRepository) SeedDefaults(ctx context.Context) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var count int64
	if err := db.Model(&entities.Plan{}).Count(&count).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to count plans")
	}
	if count > 0 {
		return nil
	}

	plans := []entities.Plan{
		{Name: entities.PlanFree, MaxAlerts: 3, NotifyDelayMin: int(r.cfg.FreeDelay.Minutes()), DailyCap: r.cfg.DailyCap(entities.PlanFree)},
		{Name: entities.PlanPremium, MaxAlerts: 10, NotifyDelayMin: 0, DailyCap: r.cfg.DailyCap(entities.PlanPremium)},
		{Name: entities.PlanPro, MaxAlerts: 50, NotifyDelayMin: 0, DailyCap: r.cfg.DailyCap(entities.PlanPro)},
	}
	if err := db.Create(&plans).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to seed plans")
	}
	return nil
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) deps.UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var user entities.User
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundError("user not found")
		}
		return nil, pkgerrors.NewDatabaseError("failed to read user")
	}
	return &user, nil
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository creates a new notification counter repository
func NewCounterRepository(db *gorm.DB) deps.CounterRepository {
	return &counterRepository{db: db}
}

// IncrementIfBelow bumps the (user, day) counter unless the cap is reached.
// The guarded UPDATE keeps concurrent deliveries within the cap.
func (r *counterRepository) IncrementIfBelow(ctx context.Context, userID uuid.UUID, day string, cap int) (bool, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	row := entities.NotificationCount{UserID: userID, Day: day, Count: 0}
	if err := db.Create(&row).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, pkgerrors.NewDatabaseError("failed to init notification counter")
	}

	q := db.Model(&entities.NotificationCount{}).
		Where("user_id = ? AND day = ?", userID, day)
	if cap > 0 {
		q = q.Where("count < ?", cap)
	}
	result := q.Update("count", gorm.Expr("count + 1"))
	if result.Error != nil {
		return false, pkgerrors.NewDatabaseError("failed to increment notification counter")
	}
	return result.RowsAffected > 0, nil
}
