package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Repository handles job persistence. Status transitions are written as
// conditional updates so concurrent actors and sweeps cannot double-process
// a row; callers check the returned row count.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Job, error)
	Accept(ctx context.Context, jobID, providerID uuid.UUID) (bool, error)
	MarkDone(ctx context.Context, jobID, providerID uuid.UUID, now time.Time) (bool, error)
	ConfirmCompletion(ctx context.Context, jobID, clientID uuid.UUID, now time.Time) (bool, error)
	AutoComplete(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)
	ListForAutoComplete(ctx context.Context, markedBefore time.Time, limit int) ([]models.Job, error)
	CreateMessage(ctx context.Context, message *models.JobMessage) error
	ListMessages(ctx context.Context, jobID uuid.UUID) ([]models.JobMessage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a job repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Accept claims an open job for the provider. The WHERE clause covers both
// the open pool and a direct assignment to this provider.
func (r *repository) Accept(ctx context.Context, jobID, providerID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Where(
			"(status = ? AND provider_id IS NULL) OR (status = ? AND provider_id = ?)",
			enums.JobStatusSearching, enums.JobStatusAssigned, providerID,
		).
		Updates(map[string]any{
			"provider_id": providerID,
			"status":      enums.JobStatusAccepted,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkDone(ctx context.Context, jobID, providerID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND provider_id = ?", jobID, providerID).
		Where("status = ? AND completion_status IS NULL", enums.JobStatusInProgress).
		Updates(map[string]any{
			"completion_status":    enums.CompletionStatusProviderMarkedDone,
			"completion_marked_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ConfirmCompletion(ctx context.Context, jobID, clientID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND client_id = ?", jobID, clientID).
		Where("status = ? AND completion_status = ?", enums.JobStatusInProgress, enums.CompletionStatusProviderMarkedDone).
		Updates(map[string]any{
			"status":     enums.JobStatusCompleted,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AutoComplete finalizes a job whose client never confirmed. The status guard
// makes overlapping sweep runs safe.
func (r *repository) AutoComplete(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Where("status = ? AND completion_status = ?", enums.JobStatusInProgress, enums.CompletionStatusProviderMarkedDone).
		Updates(map[string]any{
			"status":            enums.JobStatusCompleted,
			"completion_status": enums.CompletionStatusAutoCompleted,
			"updated_at":        now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListForAutoComplete(ctx context.Context, markedBefore time.Time, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 250
	}
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND completion_status = ?", enums.JobStatusInProgress, enums.CompletionStatusProviderMarkedDone).
		Where("completion_marked_at < ?", markedBefore).
		Order("completion_marked_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) CreateMessage(ctx context.Context, message *models.JobMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, jobID uuid.UUID) ([]models.JobMessage, error) {
	var messages []models.JobMessage
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
