package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Row is a payout joined with the names an operator needs to act on it.
type Row struct {
	models.Payout
	ProviderName string `gorm:"column:provider_name"`
	ClientName   string `gorm:"column:client_name"`
	JobTitle     string `gorm:"column:job_title"`
}

// Aggregates summarize the console list.
type Aggregates struct {
	PaidCents    int64 `gorm:"column:paid_cents" json:"paid_cents"`
	PendingCents int64 `gorm:"column:pending_cents" json:"pending_cents"`
	PaidCount    int64 `gorm:"column:paid_count" json:"paid_count"`
	PendingCount int64 `gorm:"column:pending_count" json:"pending_count"`
}

// UnreleasedInvoice is a paid invoice with no payout row yet.
type UnreleasedInvoice struct {
	models.Invoice
	ProviderName string `gorm:"column:provider_name"`
	JobTitle     string `gorm:"column:job_title"`
}

// Repository reads the payout console and writes manual payout records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]Row, error)
	Summarize(ctx context.Context) (*Aggregates, error)
	ListUnreleased(ctx context.Context) ([]UnreleasedInvoice, error)
	FindInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Payout, error)
	FindUserRole(ctx context.Context, userID uuid.UUID) (enums.UserRole, error)
	Create(ctx context.Context, payout *models.Payout) error
	MarkPaid(ctx context.Context, payoutID uuid.UUID, now time.Time) (bool, error)
	MarkInvoiceReleased(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]Row, error) {
	var rows []Row
	err := r.db.WithContext(ctx).
		Table("payouts").
		Select(`payouts.*,
			provider.first_name || ' ' || provider.last_name AS provider_name,
			client.first_name || ' ' || client.last_name AS client_name,
			jobs.title AS job_title`).
		Joins("JOIN invoices ON invoices.id = payouts.invoice_id").
		Joins("JOIN jobs ON jobs.id = invoices.job_id").
		Joins("JOIN users AS provider ON provider.id = payouts.provider_id").
		Joins("JOIN users AS client ON client.id = invoices.client_id").
		Order("payouts.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Summarize(ctx context.Context) (*Aggregates, error) {
	var agg Aggregates
	err := r.db.WithContext(ctx).
		Table("payouts").
		Select(`COALESCE(SUM(amount_cents) FILTER (WHERE status = 'paid'), 0) AS paid_cents,
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'pending'), 0) AS pending_cents,
			COUNT(*) FILTER (WHERE status = 'paid') AS paid_count,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_count`).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *repository) ListUnreleased(ctx context.Context) ([]UnreleasedInvoice, error) {
	var rows []UnreleasedInvoice
	err := r.db.WithContext(ctx).
		Table("invoices").
		Select(`invoices.*,
			provider.first_name || ' ' || provider.last_name AS provider_name,
			jobs.title AS job_title`).
		Joins("JOIN jobs ON jobs.id = invoices.job_id").
		Joins("JOIN users AS provider ON provider.id = invoices.provider_id").
		Joins("LEFT JOIN payouts ON payouts.invoice_id = invoices.id").
		Where("invoices.status IN ?", []enums.InvoiceStatus{
			enums.InvoiceStatusPaid, enums.InvoiceStatusReadyToRelease,
		}).
		Where("payouts.id IS NULL").
		Order("invoices.paid_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", payoutID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "invoice_id = ?", invoiceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindUserRole(ctx context.Context, userID uuid.UUID) (enums.UserRole, error) {
	var role enums.UserRole
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Pluck("role", &role).Error
	if err != nil {
		return "", err
	}
	return role, nil
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) MarkPaid(ctx context.Context, payoutID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":  enums.PayoutStatusPaid,
			"paid_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkInvoiceReleased(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error) {
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
