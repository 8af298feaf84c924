package models

import (
	"time"

	"github.com/google/uuid"
)

// JobMessage is a chat message on a job thread. SenderID is nil for
// system-generated messages such as the auto-complete notice.
type JobMessage struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID     uuid.UUID  `gorm:"column:job_id;type:uuid;not null;index"`
	SenderID  *uuid.UUID `gorm:"column:sender_id;type:uuid"`
	Body      string     `gorm:"column:body;type:text;not null"`
	System    bool       `gorm:"column:system;not null;default:false"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
