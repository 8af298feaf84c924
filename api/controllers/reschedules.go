package controllers

import (
	"net/http"
	"time"

	"github.com/chamby-mx/chamby-backend/api/middleware"
	"github.com/chamby-mx/chamby-backend/api/responses"
	"github.com/chamby-mx/chamby-backend/api/validators"
	"github.com/chamby-mx/chamby-backend/internal/reschedule"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

// CreateRescheduleBody proposes a new time for an assigned job.
type CreateRescheduleBody struct {
	RequestedTime time.Time `json:"requested_time" validate:"required"`
}

func CreateReschedule(svc reschedule.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reschedule service unavailable"))
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

		var body CreateRescheduleBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := reschedule.Actor{UserID: userID, Role: role}
		request, err := svc.Create(r.Context(), actor, jobID, body.RequestedTime)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

func AcceptReschedule(svc reschedule.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reschedule service unavailable"))
			return
		}

		userID, role, err := middleware.Caller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := pathUUID(r, "rescheduleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := reschedule.Actor{UserID: userID, Role: role}
		if err := svc.Accept(r.Context(), actor, requestID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
