package enums

import "fmt"

// JobStatus tracks a service job through its lifecycle. Jobs are never
// hard-deleted; terminal states are completed and cancelled.
type JobStatus string

const (
	JobStatusSearching  JobStatus = "searching"
	JobStatusAssigned   JobStatus = "assigned"
	JobStatusAccepted   JobStatus = "accepted"
	JobStatusConfirmed  JobStatus = "confirmed"
	JobStatusEnRoute    JobStatus = "en_route"
	JobStatusOnSite     JobStatus = "on_site"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

var validJobStatuses = []JobStatus{
	JobStatusSearching,
	JobStatusAssigned,
	JobStatusAccepted,
	JobStatusConfirmed,
	JobStatusEnRoute,
	JobStatusOnSite,
	JobStatusInProgress,
	JobStatusCompleted,
	JobStatusCancelled,
}

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job can no longer transition.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// ParseJobStatus converts raw input into a JobStatus.
func ParseJobStatus(value string) (JobStatus, error) {
	for _, candidate := range validJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", value)
}
