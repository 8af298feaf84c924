package controllers

import (
	"net/http"

	"github.com/chamby-mx/chamby-backend/api/middleware"
	"github.com/chamby-mx/chamby-backend/api/responses"
	"github.com/chamby-mx/chamby-backend/api/validators"
	"github.com/chamby-mx/chamby-backend/internal/invoices"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

// CreateInvoiceBody carries the provider's line items for a finished job.
type CreateInvoiceBody struct {
	Items []InvoiceItemBody `json:"items" validate:"required,min=1,max=50,dive"`
}

type InvoiceItemBody struct {
	Description    string `json:"description" validate:"required,max=300"`
	Quantity       int64  `json:"quantity" validate:"required,min=1"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"required,min=1"`
}

// CreateInvoice persists the provider's invoice and opens the client checkout.
// A job with an existing invoice returns it with already_exists set.
func CreateInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		userID, role, err := middleware.Caller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		jobID, err := pathUUID(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body CreateInvoiceBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]invoices.ItemInput, 0, len(body.Items))
		for _, item := range body.Items {
			items = append(items, invoices.ItemInput{
				Description:    validators.SanitizeString(item.Description, 300),
				Quantity:       int(item.Quantity),
				UnitPriceCents: item.UnitPriceCents,
			})
		}

		actor := invoices.Actor{UserID: userID, Role: role}
		result, err := svc.Create(r.Context(), actor, jobID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.AlreadyExists {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func GetInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		userID, role, err := middleware.Caller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := invoices.Actor{UserID: userID, Role: role}
		invoice, err := svc.Get(r.Context(), actor, invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}
