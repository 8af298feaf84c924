package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// User represents the canonical identity entity. Providers additionally carry
// the Stripe connected-account fields used for payouts.
type User struct {
	ID                  uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email               string                     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash        string                     `gorm:"column:password_hash;not null"`
	FirstName           string                     `gorm:"column:first_name;not null"`
	LastName            string                     `gorm:"column:last_name;not null"`
	Phone               *string                    `gorm:"column:phone"`
	Role                enums.UserRole             `gorm:"column:role;type:user_role;not null;default:'client'"`
	IsActive            bool                       `gorm:"column:is_active;not null;default:true"`
	StripeCustomerID    *string                    `gorm:"column:stripe_customer_id"`
	StripeAccountID     *string                    `gorm:"column:stripe_account_id"`
	PayoutAccountStatus *enums.PayoutAccountStatus `gorm:"column:payout_account_status;type:payout_account_status"`
	LastLoginAt         *time.Time                 `gorm:"column:last_login_at"`
	CreatedAt           time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
