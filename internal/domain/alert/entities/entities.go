package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base holds the shared opaque identifier column
type Base struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

// BeforeCreate assigns an identifier when none was set
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Plan names
const (
	PlanFree    = "free"
	PlanPremium = "premium"
	PlanPro     = "pro"
)

// Subscription statuses
const (
	SubActive   = "active"
	SubPastDue  = "past_due"
	SubCanceled = "canceled"
)

// AlertMatch statuses
const (
	MatchPending  = "pending"
	MatchEnqueued = "enqueued"
	MatchNotified = "notified"
	MatchSkipped  = "skipped"
	MatchFailed   = "failed"
)

// User is an application user addressed by Telegram id
type User struct {
	Base
	TelegramUserID int64     `gorm:"not null;unique" json:"telegramUserId"`
	Status         string    `gorm:"size:50;default:active" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// Plan defines entitlement limits for a subscription tier
type Plan struct {
	Base
	Name            string    `gorm:"not null;unique;size:50" json:"name"`
	MaxAlerts       int       `gorm:"not null" json:"maxAlerts"`
	NotifyDelayMin  int       `gorm:"not null" json:"notificationDelayMin"`
	DailyCap        int       `gorm:"not null" json:"dailyCap"` // 0 means unlimited
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for Plan
func (Plan) TableName() string {
	return "plans"
}

// Subscription ties a user to a plan; maintained by an external billing
// collaborator, read-only here
type Subscription struct {
	Base
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	PlanID           uuid.UUID  `gorm:"type:uuid;not null" json:"planId"`
	Status           string     `gorm:"size:20;not null" json:"status"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

// Alert is a stored user query in both raw DSL and normalized filter form
type Alert struct {
	Base
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	DSLQuery  string    `gorm:"type:text;not null" json:"dslQuery"`
	Filters   string    `gorm:"type:text;not null" json:"filters"` // JSON-encoded dsl.Filters
	Active    bool      `gorm:"default:true;index" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}

// AlertMatch is the unique pairing of an alert and a listing
type AlertMatch struct {
	Base
	AlertID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_alert_listing,unique" json:"alertId"`
	ListingID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_alert_listing,unique" json:"listingId"`
	MatchedAt    time.Time  `gorm:"not null" json:"matchedAt"`
	DeliverAfter time.Time  `gorm:"not null;index" json:"deliverAfter"`
	NotifiedAt   *time.Time `json:"notifiedAt"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	Reason       string     `gorm:"type:text" json:"reason"`
}

// TableName returns the table name for AlertMatch
func (AlertMatch) TableName() string {
	return "alert_matches"
}

// NotificationCount tracks delivered notifications per user per UTC day
type NotificationCount struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_user_day,unique" json:"userId"`
	Day    string    `gorm:"not null;size:10;index:idx_user_day,unique" json:"day"` // YYYY-MM-DD UTC
	Count  int       `gorm:"not null;default:0" json:"count"`
}

// TableName returns the table name for NotificationCount
func (NotificationCount) TableName() string {
	return "notification_counts"
}
