package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Repository persists invoices and the payout rows the release flow writes.
// Lifecycle transitions are conditional updates; callers check the returned
// row count so webhook redelivery and overlapping sweeps stay safe.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) (*models.Invoice, error)

	SetCheckoutRef(ctx context.Context, invoiceID uuid.UUID, sessionID, intentID string) (bool, error)
	MarkPaid(ctx context.Context, invoiceID uuid.UUID, intentID string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, invoiceID uuid.UUID, reason string) (bool, error)
	MarkReadyToRelease(ctx context.Context, invoiceID uuid.UUID) (bool, error)
	MarkReleased(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error)

	FindJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	CompleteJobOnPayment(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)

	FindPayoutByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Payout, error)
	CreatePayout(ctx context.Context, payout *models.Payout) error
	MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID, transferID string, now time.Time) (bool, error)
	MarkPayoutFailed(ctx context.Context, payoutID uuid.UUID, notes string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByJobID(ctx context.Context, jobID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "job_id = ?", jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// SetCheckoutRef attaches the Checkout session to a draft invoice and moves it
// to pending. A second call for the same draft loses the WHERE race and
// reports false.
func (r *repository) SetCheckoutRef(ctx context.Context, invoiceID uuid.UUID, sessionID, intentID string) (bool, error) {
	updates := map[string]any{
		"status":                     enums.InvoiceStatusPending,
		"stripe_checkout_session_id": sessionID,
	}
	if intentID != "" {
		updates["stripe_payment_intent_id"] = intentID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoiceID, enums.InvoiceStatusDraft).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkPaid(ctx context.Context, invoiceID uuid.UUID, intentID string, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":  enums.InvoiceStatusPaid,
		"paid_at": now,
	}
	if intentID != "" {
		updates["stripe_payment_intent_id"] = intentID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoiceID, enums.InvoiceStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, invoiceID uuid.UUID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoiceID, enums.InvoiceStatusPending).
		Updates(map[string]any{
			"status":         enums.InvoiceStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkReadyToRelease(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoiceID, enums.InvoiceStatusPaid).
		Update("status", enums.InvoiceStatusReadyToRelease)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkReleased(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", invoiceID, []enums.InvoiceStatus{
			enums.InvoiceStatusPaid, enums.InvoiceStatusReadyToRelease,
		}).
		Updates(map[string]any{
			"status":      enums.InvoiceStatusReleased,
			"released_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
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

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CompleteJobOnPayment finalizes the job when its invoice is paid. Terminal
// states are left alone.
func (r *repository) CompleteJobOnPayment(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", jobID, []enums.JobStatus{
			enums.JobStatusCompleted, enums.JobStatusCancelled,
		}).
		Updates(map[string]any{
			"status":     enums.JobStatusCompleted,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindPayoutByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "invoice_id = ?", invoiceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID, transferID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":             enums.PayoutStatusPaid,
			"stripe_transfer_id": transferID,
			"paid_at":            now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkPayoutFailed(ctx context.Context, payoutID uuid.UUID, notes string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status": enums.PayoutStatusFailed,
			"notes":  notes,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
