package visits

import (
	"testing"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
)

func strPtr(v string) *string { return &v }

func TestResolveVisitFeeStatus(t *testing.T) {
	if got := ResolveVisitFeeStatus(nil); got != enums.VisitFeeStatusNotAuthorized {
		t.Fatalf("nil job: expected not_authorized got %s", got)
	}

	job := &models.Job{VisitFeeStatus: enums.VisitFeeStatusNotAuthorized}
	if got := ResolveVisitFeeStatus(job); got != enums.VisitFeeStatusNotAuthorized {
		t.Fatalf("bare job: expected not_authorized got %s", got)
	}

	job.VisitPaymentIntentID = strPtr("pi_123")
	if got := ResolveVisitFeeStatus(job); got != enums.VisitFeeStatusAuthorized {
		t.Fatalf("intent set: expected authorized got %s", got)
	}

	job.VisitFeeStatus = enums.VisitFeeStatusCaptured
	if got := ResolveVisitFeeStatus(job); got != enums.VisitFeeStatusCaptured {
		t.Fatalf("captured wins over intent presence, got %s", got)
	}
}

func TestResolveInvoiceStatus(t *testing.T) {
	if got := ResolveInvoiceStatus(nil); got != InvoiceDisplayNone {
		t.Fatalf("nil invoice: expected none got %s", got)
	}

	cases := map[enums.InvoiceStatus]InvoiceDisplayStatus{
		enums.InvoiceStatusDraft:          InvoiceDisplayDraft,
		enums.InvoiceStatusPending:        InvoiceDisplayPending,
		enums.InvoiceStatusPaid:           InvoiceDisplayPaid,
		enums.InvoiceStatusFailed:         InvoiceDisplayFailed,
		enums.InvoiceStatusReadyToRelease: InvoiceDisplayReadyToRelease,
		enums.InvoiceStatusReleased:       InvoiceDisplayReleased,
		enums.InvoiceStatusAccepted:       InvoiceDisplayAccepted,
	}
	for stored, want := range cases {
		if got := ResolveInvoiceStatus(&models.Invoice{Status: stored}); got != want {
			t.Errorf("status %s: expected %s got %s", stored, want, got)
		}
	}

	if got := ResolveInvoiceStatus(&models.Invoice{Status: enums.InvoiceStatus("garbage")}); got != InvoiceDisplayUnknown {
		t.Fatalf("unknown stored status should resolve to unknown, got %s", got)
	}
}

func TestInvoiceLabel(t *testing.T) {
	if got := InvoiceLabel(InvoiceDisplayPaid, AudienceCustomer); got != "Factura pagada" {
		t.Fatalf("expected 'Factura pagada' got %q", got)
	}
	if got := InvoiceLabel(InvoiceDisplayNone, AudienceCustomer); got != "" {
		t.Fatalf("none should render empty, got %q", got)
	}
	if got := InvoiceLabel(InvoiceDisplayNone, AudienceProvider); got != "" {
		t.Fatalf("none should render empty for providers too, got %q", got)
	}
	if got := InvoiceLabel(InvoiceDisplayPending, AudienceProvider); got != "Esperando pago del cliente" {
		t.Fatalf("unexpected provider pending label %q", got)
	}
	if got := InvoiceLabel(InvoiceDisplayStatus("???"), AudienceCustomer); got != "Estado desconocido" {
		t.Fatalf("unexpected fallback label %q", got)
	}
}
