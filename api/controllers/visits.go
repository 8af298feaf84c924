package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/api/middleware"
	"github.com/chamby-mx/chamby-backend/api/responses"
	"github.com/chamby-mx/chamby-backend/api/validators"
	"github.com/chamby-mx/chamby-backend/internal/visits"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

// CreateVisitAuthorization places the visit-fee hold for a job. Repeating the
// call returns the live authorization instead of opening a second one.
func CreateVisitAuthorization(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "visits service unavailable"))
			return
		}

		actor, jobID, err := visitActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateAuthorization(r.Context(), actor, jobID)
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

func ProviderConfirmVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return visitAction(svc, logg, func(r *http.Request, actor visits.Actor, jobID uuid.UUID) error {
		return svc.ProviderConfirm(r.Context(), actor, jobID)
	})
}

func ClientConfirmVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return visitAction(svc, logg, func(r *http.Request, actor visits.Actor, jobID uuid.UUID) error {
		return svc.ClientConfirm(r.Context(), actor, jobID)
	})
}

func DisputeVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return visitAction(svc, logg, func(r *http.Request, actor visits.Actor, jobID uuid.UUID) error {
		return svc.Dispute(r.Context(), actor, jobID)
	})
}

// ResolveVisitBody selects the admin decision for a disputed or escalated visit.
type ResolveVisitBody struct {
	Resolution string `json:"resolution" validate:"required,oneof=capture release"`
}

func AdminResolveVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "visits service unavailable"))
			return
		}

		actor, jobID, err := visitActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body ResolveVisitBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resolution := visits.ResolutionCapture
		if body.Resolution == "release" {
			resolution = visits.ResolutionRelease
		}

		if err := svc.AdminResolve(r.Context(), actor, jobID, resolution); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"resolution": body.Resolution})
	}
}

func visitAction(svc visits.Service, logg *logger.Logger, fn func(*http.Request, visits.Actor, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "visits service unavailable"))
			return
		}

		actor, jobID, err := visitActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := fn(r, actor, jobID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func visitActor(r *http.Request) (visits.Actor, uuid.UUID, error) {
	userID, role, err := middleware.Caller(r.Context())
	if err != nil {
		return visits.Actor{}, uuid.Nil, err
	}
	jobID, err := pathUUID(r, "jobId")
	if err != nil {
		return visits.Actor{}, uuid.Nil, err
	}
	return visits.Actor{UserID: userID, Role: role}, jobID, nil
}
