package enums

import "fmt"

// PayoutAccountStatus reflects the provider's connected-account onboarding
// state. Only enabled accounts receive automatic transfers.
type PayoutAccountStatus string

const (
	PayoutAccountStatusOnboarding PayoutAccountStatus = "onboarding"
	PayoutAccountStatusEnabled    PayoutAccountStatus = "enabled"
)

var validPayoutAccountStatuses = []PayoutAccountStatus{
	PayoutAccountStatusOnboarding,
	PayoutAccountStatusEnabled,
}

// String implements fmt.Stringer.
func (s PayoutAccountStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PayoutAccountStatus) IsValid() bool {
	for _, candidate := range validPayoutAccountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutAccountStatus converts raw input into a PayoutAccountStatus.
func ParsePayoutAccountStatus(value string) (PayoutAccountStatus, error) {
	for _, candidate := range validPayoutAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout account status %q", value)
}
