package enums

import "fmt"

// RescheduleStatus tracks a reschedule request awaiting the client's answer.
type RescheduleStatus string

const (
	RescheduleStatusPending  RescheduleStatus = "pending"
	RescheduleStatusAccepted RescheduleStatus = "accepted"
	RescheduleStatusExpired  RescheduleStatus = "expired"
)

var validRescheduleStatuses = []RescheduleStatus{
	RescheduleStatusPending,
	RescheduleStatusAccepted,
	RescheduleStatusExpired,
}

// String implements fmt.Stringer.
func (s RescheduleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s RescheduleStatus) IsValid() bool {
	for _, candidate := range validRescheduleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRescheduleStatus converts raw input into a RescheduleStatus.
func ParseRescheduleStatus(value string) (RescheduleStatus, error) {
	for _, candidate := range validRescheduleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reschedule status %q", value)
}
