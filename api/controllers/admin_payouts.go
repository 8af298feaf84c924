package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/api/middleware"
	"github.com/chamby-mx/chamby-backend/api/responses"
	"github.com/chamby-mx/chamby-backend/api/validators"
	"github.com/chamby-mx/chamby-backend/internal/payouts"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

// ListPayouts returns every payout with party names and paid/pending totals
// for the admin console.
func ListPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actor, err := payoutActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ListUnreleasedPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actor, err := payoutActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoices, err := svc.ListUnreleased(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoices)
	}
}

// CreatePayoutBody opens a manual payout against a released-pending invoice.
type CreatePayoutBody struct {
	InvoiceID   uuid.UUID `json:"invoice_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"required,min=1"`
	Notes       string    `json:"notes" validate:"max=1000"`
}

func CreatePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actor, err := payoutActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body CreatePayoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Create(r.Context(), actor, payouts.CreateInput{
			InvoiceID:   body.InvoiceID,
			AmountCents: body.AmountCents,
			Notes:       validators.SanitizeString(body.Notes, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

func MarkPayoutPaid(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actor, err := payoutActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := pathUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkPaid(r.Context(), actor, payoutID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "paid"})
	}
}

func payoutActor(r *http.Request) (payouts.Actor, error) {
	userID, role, err := middleware.Caller(r.Context())
	if err != nil {
		return payouts.Actor{}, err
	}
	return payouts.Actor{UserID: userID, Role: role}, nil
}
