package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Invoice is the final bill a provider issues against a job. Amounts are
// stored in cents with TotalCents = SubtotalCents + CommissionCents.
type Invoice struct {
	ID                      uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID                   uuid.UUID           `gorm:"column:job_id;type:uuid;not null;uniqueIndex"`
	ProviderID              uuid.UUID           `gorm:"column:provider_id;type:uuid;not null;index"`
	ClientID                uuid.UUID           `gorm:"column:client_id;type:uuid;not null;index"`
	Status                  enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'draft';index"`
	SubtotalCents           int64               `gorm:"column:subtotal_cents;not null"`
	CommissionCents         int64               `gorm:"column:commission_cents;not null"`
	TotalCents              int64               `gorm:"column:total_cents;not null"`
	Currency                string              `gorm:"column:currency;not null;default:'mxn'"`
	StripeCheckoutSessionID *string             `gorm:"column:stripe_checkout_session_id"`
	StripePaymentIntentID   *string             `gorm:"column:stripe_payment_intent_id"`
	FailureReason           *string             `gorm:"column:failure_reason"`
	PaidAt                  *time.Time          `gorm:"column:paid_at"`
	ReleasedAt              *time.Time          `gorm:"column:released_at"`
	Items                   []InvoiceItem       `gorm:"foreignKey:InvoiceID"`
	CreatedAt               time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// InvoiceItem is a single line on an invoice. TotalCents is computed
// server-side as UnitPriceCents x Quantity.
type InvoiceItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      uuid.UUID `gorm:"column:invoice_id;type:uuid;not null;index"`
	Description    string    `gorm:"column:description;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64     `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
