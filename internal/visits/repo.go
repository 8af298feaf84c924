package visits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Repository persists the visit fee state machine on the jobs table. Every
// transition the sweeps or webhooks can race on is a conditional update;
// callers check the returned bool.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	FindUserRole(ctx context.Context, userID uuid.UUID) (enums.UserRole, error)
	SetAuthorization(ctx context.Context, jobID uuid.UUID, intentID string, feeCents int64) (bool, error)
	SetProviderConfirmed(ctx context.Context, jobID uuid.UUID, deadline *time.Time) (bool, error)
	SetClientConfirmed(ctx context.Context, jobID uuid.UUID) (bool, error)
	CaptureFee(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)
	SetDisputePending(ctx context.Context, jobID uuid.UUID) (bool, error)
	ClearAuthorization(ctx context.Context, jobID uuid.UUID) (bool, error)
	Escalate(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)
	ListEscalatable(ctx context.Context, deadlineBefore time.Time, limit int) ([]models.Job, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a visit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindUserRole(ctx context.Context, userID uuid.UUID) (enums.UserRole, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("role").First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return user.Role, nil
}

func (r *repository) SetAuthorization(ctx context.Context, jobID uuid.UUID, intentID string, feeCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND visit_fee_status <> ?", jobID, enums.VisitFeeStatusCaptured).
		Updates(map[string]any{
			"visit_payment_intent_id": intentID,
			"visit_fee_status":        enums.VisitFeeStatusAuthorized,
			"visit_fee_cents":         feeCents,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetProviderConfirmed(ctx context.Context, jobID uuid.UUID, deadline *time.Time) (bool, error) {
	updates := map[string]any{"provider_confirmed_visit": true}
	if deadline != nil {
		updates["visit_confirmation_deadline"] = *deadline
	}
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetClientConfirmed(ctx context.Context, jobID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Update("client_confirmed_visit", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CaptureFee flips the fee to captured and moves the job into servicing. The
// status guard keeps webhook redelivery and double clicks from re-capturing.
// A pending dispute is cleared since capture is how admins resolve one.
func (r *repository) CaptureFee(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND visit_fee_status = ?", jobID, enums.VisitFeeStatusAuthorized).
		Updates(map[string]any{
			"visit_fee_status":       enums.VisitFeeStatusCaptured,
			"client_confirmed_visit": true,
			"visit_dispute_status":   nil,
			"status":                 enums.JobStatusInProgress,
			"updated_at":             now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetDisputePending(ctx context.Context, jobID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND visit_dispute_status IS NULL", jobID).
		Update("visit_dispute_status", enums.VisitDisputeStatusPending)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearAuthorization voids the local reference after an admin releases the
// fee without capturing.
func (r *repository) ClearAuthorization(ctx context.Context, jobID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND visit_fee_status <> ?", jobID, enums.VisitFeeStatusCaptured).
		Updates(map[string]any{
			"visit_payment_intent_id": nil,
			"visit_fee_status":        enums.VisitFeeStatusNotAuthorized,
			"visit_dispute_status":    nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Escalate moves a stuck visit to pending_support. The WHERE guards make the
// sweep idempotent; a second run affects zero rows.
func (r *repository) Escalate(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Where("provider_confirmed_visit AND NOT client_confirmed_visit").
		Where("visit_dispute_status IS NULL").
		Where("visit_confirmation_deadline < ?", now).
		Update("visit_dispute_status", enums.VisitDisputeStatusPendingSupport)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListEscalatable(ctx context.Context, deadlineBefore time.Time, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 250
	}
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("provider_confirmed_visit AND NOT client_confirmed_visit").
		Where("visit_dispute_status IS NULL").
		Where("visit_confirmation_deadline < ?", deadlineBefore).
		Order("visit_confirmation_deadline ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
