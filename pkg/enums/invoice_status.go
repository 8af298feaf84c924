package enums

import "fmt"

// InvoiceStatus mirrors the invoice lifecycle from provider draft through
// payment and escrow release.
type InvoiceStatus string

const (
	InvoiceStatusDraft          InvoiceStatus = "draft"
	InvoiceStatusPending        InvoiceStatus = "pending"
	InvoiceStatusPaid           InvoiceStatus = "paid"
	InvoiceStatusFailed         InvoiceStatus = "failed"
	InvoiceStatusReadyToRelease InvoiceStatus = "ready_to_release"
	InvoiceStatusReleased       InvoiceStatus = "released"
	InvoiceStatusAccepted       InvoiceStatus = "accepted"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusFailed,
	InvoiceStatusReadyToRelease,
	InvoiceStatusReleased,
	InvoiceStatusAccepted,
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
