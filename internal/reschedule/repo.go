package reschedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Repository persists reschedule requests. The pending→accepted and
// pending→expired transitions are conditional updates so the accept endpoint
// and the expiry sweep can race safely.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.RescheduleRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RescheduleRequest, error)
	FindPendingByJobID(ctx context.Context, jobID uuid.UUID) (*models.RescheduleRequest, error)
	FindJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	Accept(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error)
	Expire(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error)
	SetJobSchedule(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) error
	ReturnJobToPool(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) (bool, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.RescheduleRequest, error)
	ListNearDeadline(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.RescheduleRequest, error)
	MarkWarningSent(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reschedule repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.RescheduleRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RescheduleRequest, error) {
	var request models.RescheduleRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindPendingByJobID(ctx context.Context, jobID uuid.UUID) (*models.RescheduleRequest, error) {
	var request models.RescheduleRequest
	if err := r.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, enums.RescheduleStatusPending).
		First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repository) Accept(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RescheduleRequest{}).
		Where("id = ? AND status = ?", requestID, enums.RescheduleStatusPending).
		Updates(map[string]any{
			"status":       enums.RescheduleStatusAccepted,
			"responded_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Expire closes a pending request past its deadline. The respond_by guard
// keeps a late accept from being clobbered by a slow sweep.
func (r *repository) Expire(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RescheduleRequest{}).
		Where("id = ? AND status = ? AND respond_by < ?", requestID, enums.RescheduleStatusPending, now).
		Update("status", enums.RescheduleStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetJobSchedule(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Update("scheduled_at", scheduledAt).Error
}

// ReturnJobToPool unassigns the provider and reopens the search with the
// client's requested time.
func (r *repository) ReturnJobToPool(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", jobID, []enums.JobStatus{
			enums.JobStatusCompleted, enums.JobStatusCancelled,
		}).
		Updates(map[string]any{
			"provider_id":  nil,
			"status":       enums.JobStatusSearching,
			"scheduled_at": scheduledAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.RescheduleRequest, error) {
	if limit <= 0 {
		limit = 250
	}
	var requests []models.RescheduleRequest
	if err := r.db.WithContext(ctx).
		Where("status = ? AND respond_by < ?", enums.RescheduleStatusPending, now).
		Order("respond_by ASC").
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListNearDeadline(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.RescheduleRequest, error) {
	if limit <= 0 {
		limit = 250
	}
	var requests []models.RescheduleRequest
	if err := r.db.WithContext(ctx).
		Where("status = ? AND warning_sent_at IS NULL", enums.RescheduleStatusPending).
		Where("respond_by > ? AND respond_by <= ?", now, now.Add(window)).
		Order("respond_by ASC").
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) MarkWarningSent(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RescheduleRequest{}).
		Where("id = ? AND warning_sent_at IS NULL", requestID).
		Update("warning_sent_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
