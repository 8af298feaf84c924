package enums

import "fmt"

// VisitFeeStatus is the derived display status of a job's visit fee.
type VisitFeeStatus string

const (
	VisitFeeStatusNotAuthorized VisitFeeStatus = "not_authorized"
	VisitFeeStatusAuthorized    VisitFeeStatus = "authorized"
	VisitFeeStatusCaptured      VisitFeeStatus = "captured"
)

// String implements fmt.Stringer.
func (s VisitFeeStatus) String() string {
	return string(s)
}

// VisitDisputeStatus marks a contested visit confirmation.
type VisitDisputeStatus string

const (
	// VisitDisputeStatusPending is set when the client actively disputes.
	VisitDisputeStatusPending VisitDisputeStatus = "pending"
	// VisitDisputeStatusPendingSupport is set by the escalation sweep when the
	// client neither confirmed nor disputed before the deadline.
	VisitDisputeStatusPendingSupport VisitDisputeStatus = "pending_support"
)

var validVisitDisputeStatuses = []VisitDisputeStatus{
	VisitDisputeStatusPending,
	VisitDisputeStatusPendingSupport,
}

// String implements fmt.Stringer.
func (s VisitDisputeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s VisitDisputeStatus) IsValid() bool {
	for _, candidate := range validVisitDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CompletionStatus records how a job reached completion.
type CompletionStatus string

const (
	CompletionStatusProviderMarkedDone CompletionStatus = "provider_marked_done"
	CompletionStatusAutoCompleted      CompletionStatus = "auto_completed"
)

var validCompletionStatuses = []CompletionStatus{
	CompletionStatusProviderMarkedDone,
	CompletionStatusAutoCompleted,
}

// String implements fmt.Stringer.
func (s CompletionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CompletionStatus) IsValid() bool {
	for _, candidate := range validCompletionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCompletionStatus converts raw input into a CompletionStatus.
func ParseCompletionStatus(value string) (CompletionStatus, error) {
	for _, candidate := range validCompletionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid completion status %q", value)
}
