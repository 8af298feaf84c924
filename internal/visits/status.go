package visits

import (
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

// ResolveVisitFeeStatus derives the visit fee state from the job row alone.
func ResolveVisitFeeStatus(job *models.Job) enums.VisitFeeStatus {
	if job == nil {
		return enums.VisitFeeStatusNotAuthorized
	}
	if job.VisitFeeStatus == enums.VisitFeeStatusCaptured {
		return enums.VisitFeeStatusCaptured
	}
	if job.VisitPaymentIntentID != nil && *job.VisitPaymentIntentID != "" {
		return enums.VisitFeeStatusAuthorized
	}
	return enums.VisitFeeStatusNotAuthorized
}

// InvoiceDisplayStatus is the closed set of invoice states the UI renders.
type InvoiceDisplayStatus string

const (
	InvoiceDisplayNone           InvoiceDisplayStatus = "none"
	InvoiceDisplayDraft          InvoiceDisplayStatus = "draft"
	InvoiceDisplayPending        InvoiceDisplayStatus = "pending"
	InvoiceDisplayPaid           InvoiceDisplayStatus = "paid"
	InvoiceDisplayFailed         InvoiceDisplayStatus = "failed"
	InvoiceDisplayReadyToRelease InvoiceDisplayStatus = "ready_to_release"
	InvoiceDisplayReleased       InvoiceDisplayStatus = "released"
	InvoiceDisplayAccepted       InvoiceDisplayStatus = "accepted"
	InvoiceDisplayUnknown        InvoiceDisplayStatus = "unknown"
)

// ResolveInvoiceStatus maps an invoice row (or its absence) onto the display
// enum. Unrecognized stored values map to unknown rather than leaking through.
func ResolveInvoiceStatus(invoice *models.Invoice) InvoiceDisplayStatus {
	if invoice == nil {
		return InvoiceDisplayNone
	}
	switch invoice.Status {
	case enums.InvoiceStatusDraft:
		return InvoiceDisplayDraft
	case enums.InvoiceStatusPending:
		return InvoiceDisplayPending
	case enums.InvoiceStatusPaid:
		return InvoiceDisplayPaid
	case enums.InvoiceStatusFailed:
		return InvoiceDisplayFailed
	case enums.InvoiceStatusReadyToRelease:
		return InvoiceDisplayReadyToRelease
	case enums.InvoiceStatusReleased:
		return InvoiceDisplayReleased
	case enums.InvoiceStatusAccepted:
		return InvoiceDisplayAccepted
	default:
		return InvoiceDisplayUnknown
	}
}

// Audience selects which party's wording InvoiceLabel returns.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceProvider Audience = "provider"
)

// InvoiceLabel returns the Spanish UI label for an invoice display status.
func InvoiceLabel(status InvoiceDisplayStatus, audience Audience) string {
	switch status {
	case InvoiceDisplayNone:
		return ""
	case InvoiceDisplayDraft:
		if audience == AudienceProvider {
			return "Factura en borrador"
		}
		return "Factura en preparación"
	case InvoiceDisplayPending:
		if audience == AudienceProvider {
			return "Esperando pago del cliente"
		}
		return "Factura pendiente de pago"
	case InvoiceDisplayPaid:
		if audience == AudienceProvider {
			return "Pago recibido"
		}
		return "Factura pagada"
	case InvoiceDisplayFailed:
		if audience == AudienceProvider {
			return "Pago del cliente fallido"
		}
		return "Pago fallido"
	case InvoiceDisplayReadyToRelease:
		if audience == AudienceProvider {
			return "Pago en camino"
		}
		return "Factura pagada"
	case InvoiceDisplayReleased:
		if audience == AudienceProvider {
			return "Pago liberado"
		}
		return "Factura pagada"
	case InvoiceDisplayAccepted:
		return "Factura aceptada"
	default:
		return "Estado desconocido"
	}
}
