package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
)

type riskRepository struct {
	db *gorm.DB
}

// NewRiskRepository creates a new risk repository
func NewRiskRepository(db *gorm.DB) deps.RiskRepository {
	return &riskRepository{db: db}
}

// SaveEvaluation upserts the verdict for a listing
func (r *riskRepository) SaveEvaluation(ctx context.Context, ev *entities.RiskEvaluation) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var existing entities.RiskEvaluation
	err := db.First(&existing, "listing_id = ?", ev.ListingID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pipelineerrors.ErrDatabaseOperation
		}
		if err := db.Create(ev).Error; err != nil {
			return pipelineerrors.ErrDatabaseOperation
		}
		return nil
	}

	ev.ID = existing.ID
	if err := db.Model(&entities.RiskEvaluation{}).
		Where("id = ?", existing.ID).
		Select("*").
		Omit("id", "listing_id").
		Updates(ev).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// GetEvaluation loads the verdict for a listing
func (r *riskRepository) GetEvaluation(ctx context.Context, listingID uuid.UUID) (*entities.RiskEvaluation, error) {
	var ev entities.RiskEvaluation
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&ev, "listing_id = ?", listingID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &ev, nil
}

// GetCachedLLM returns a cached escalation response, nil on miss
func (r *riskRepository) GetCachedLLM(ctx context.Context, descriptionHash, promptVersion string) (*dto.RiskResponse, error) {
	var row entities.LLMCache
	err := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("description_hash = ? AND prompt_version = ?", descriptionHash, promptVersion).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}

	var resp dto.RiskResponse
	if err := json.Unmarshal(row.Response, &resp); err != nil {
		return nil, nil // treat a corrupt cache row as a miss
	}
	return &resp, nil
}

// CacheLLM stores an escalation response
func (r *riskRepository) CacheLLM(ctx context.Context, descriptionHash, promptVersion string, resp *dto.RiskResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	row := entities.LLMCache{
		DescriptionHash: descriptionHash,
		PromptVersion:   promptVersion,
		Response:        data,
	}
	if err := database.FromContext(ctx, r.db).WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // concurrent fill, same key, same content
		}
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *gorm.DB) deps.ScoreRepository {
	return &scoreRepository{db: db}
}

// Save upserts the score for a listing
func (r *scoreRepository) Save(ctx context.Context, score *entities.Score) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var existing entities.Score
	err := db.First(&existing, "listing_id = ?", score.ListingID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pipelineerrors.ErrDatabaseOperation
		}
		if err := db.Create(score).Error; err != nil {
			return pipelineerrors.ErrDatabaseOperation
		}
		return nil
	}

	score.ID = existing.ID
	if err := db.Model(&entities.Score{}).
		Where("id = ?", existing.ID).
		Select("*").
		Omit("id", "listing_id").
		Updates(score).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// Get loads the score for a listing
func (r *scoreRepository) Get(ctx context.Context, listingID uuid.UUID) (*entities.Score, error) {
	var score entities.Score
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&score, "listing_id = ?", listingID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &score, nil
}

type quarantineRepository struct {
	db *gorm.DB
}

// NewQuarantineRepository creates a new quarantine repository
func NewQuarantineRepository(db *gorm.DB) deps.QuarantineRepository {
	return &quarantineRepository{db: db}
}

// Add records a task that exhausted its retries
func (r *quarantineRepository) Add(ctx context.Context, q *entities.QuarantinedTask) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).Create(q).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}
