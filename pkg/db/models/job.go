package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// Job is a service request placed by a client. ProviderID stays nil while the
// job sits in the open pool; jobs are never hard-deleted.
type Job struct {
	ID                        uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID                  uuid.UUID                  `gorm:"column:client_id;type:uuid;not null;index"`
	ProviderID                *uuid.UUID                 `gorm:"column:provider_id;type:uuid;index"`
	Title                     string                     `gorm:"column:title;not null"`
	Category                  string                     `gorm:"column:category;not null"`
	Description               string                     `gorm:"column:description;type:text;not null"`
	Status                    enums.JobStatus            `gorm:"column:status;type:job_status;not null;default:'searching';index"`
	ScheduledAt               *time.Time                 `gorm:"column:scheduled_at"`
	VisitPaymentIntentID      *string                    `gorm:"column:visit_payment_intent_id"`
	VisitFeeStatus            enums.VisitFeeStatus       `gorm:"column:visit_fee_status;type:visit_fee_status;not null;default:'not_authorized'"`
	VisitFeeCents             int64                      `gorm:"column:visit_fee_cents;not null;default:0"`
	ProviderConfirmedVisit    bool                       `gorm:"column:provider_confirmed_visit;not null;default:false"`
	ClientConfirmedVisit      bool                       `gorm:"column:client_confirmed_visit;not null;default:false"`
	VisitConfirmationDeadline *time.Time                 `gorm:"column:visit_confirmation_deadline"`
	VisitDisputeStatus        *enums.VisitDisputeStatus  `gorm:"column:visit_dispute_status;type:visit_dispute_status"`
	CompletionStatus          *enums.CompletionStatus    `gorm:"column:completion_status;type:completion_status"`
	CompletionMarkedAt        *time.Time                 `gorm:"column:completion_marked_at"`
	CancelledAt               *time.Time                 `gorm:"column:cancelled_at"`
	CreatedAt                 time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
