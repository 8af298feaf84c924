package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Payout tracks the provider transfer for a released invoice. The unique
// index on InvoiceID guarantees at most one payout per invoice.
type Payout struct {
	ID               uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID        uuid.UUID          `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex"`
	ProviderID       uuid.UUID          `gorm:"column:provider_id;type:uuid;not null;index"`
	AmountCents      int64              `gorm:"column:amount_cents;not null"`
	Currency         string             `gorm:"column:currency;not null;default:'mxn'"`
	Status           enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending';index"`
	StripeTransferID *string            `gorm:"column:stripe_transfer_id"`
	Notes            *string            `gorm:"column:notes;type:text"`
	PaidAt           *time.Time         `gorm:"column:paid_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
