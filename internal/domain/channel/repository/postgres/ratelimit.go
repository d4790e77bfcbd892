package postgres

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/deps"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type rateLimiter struct {
	db *gorm.DB
}

// NewRateLimiter creates the persisted token bucket limiter
func NewRateLimiter(db *gorm.DB) deps.RateLimiter {
	return &rateLimiter{db: db}
}

// Take refills the bucket by elapsed time and consumes one token. The
// refill-and-decrement runs in one transaction keyed on the bucket row, so
// concurrent workers cannot overdraw.
func (r *rateLimiter) Take(ctx context.Context, key string, capacity int, window time.Duration) (bool, error) {
	allowed := false

	err := database.FromContext(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var bucket pipelineent.RateBucket
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", key).
			First(&bucket).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			bucket = pipelineent.RateBucket{
				Key:       key,
				Tokens:    float64(capacity),
				UpdatedAt: now,
			}
			if err := tx.Create(&bucket).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
		}

		refillPerSec := float64(capacity) / window.Seconds()
		elapsed := now.Sub(bucket.UpdatedAt).Seconds()
		tokens := math.Min(float64(capacity), bucket.Tokens+elapsed*refillPerSec)

		if tokens >= 1 {
			tokens--
			allowed = true
		}

		return tx.Model(&pipelineent.RateBucket{}).
			Where("key = ?", key).
			Updates(map[string]any{
				"tokens":     tokens,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return false, pkgerrors.NewDatabaseError("rate bucket update failed")
	}
	return allowed, nil
}

// Refill computes the token balance after elapsed time; exported for the
// bucket math tests
func Refill(tokens float64, capacity int, window time.Duration, elapsed time.Duration) float64 {
	refillPerSec := float64(capacity) / window.Seconds()
	return math.Min(float64(capacity), tokens+elapsed.Seconds()*refillPerSec)
}
