package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// RescheduleRequest is a client proposal to move a job's scheduled time. The
// assigned provider must accept before RespondBy or the job returns to the
// open pool.
type RescheduleRequest struct {
	ID            uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID         uuid.UUID              `gorm:"column:job_id;type:uuid;not null;index"`
	ProviderID    uuid.UUID              `gorm:"column:provider_id;type:uuid;not null"`
	OriginalTime  time.Time              `gorm:"column:original_time;not null"`
	RequestedTime time.Time              `gorm:"column:requested_time;not null"`
	Status        enums.RescheduleStatus `gorm:"column:status;type:reschedule_status;not null;default:'pending';index"`
	RespondBy     time.Time              `gorm:"column:respond_by;not null"`
	WarningSentAt *time.Time             `gorm:"column:warning_sent_at"`
	RespondedAt   *time.Time             `gorm:"column:responded_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
