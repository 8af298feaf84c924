package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/api/middleware"
	"github.com/chamby-mx/chamby-backend/api/responses"
	"github.com/chamby-mx/chamby-backend/api/validators"
	"github.com/chamby-mx/chamby-backend/internal/jobs"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

// CreateJobBody is the client booking request.
type CreateJobBody struct {
	Title       string     `json:"title" validate:"required,min=3,max=160"`
	Category    string     `json:"category" validate:"required,max=80"`
	Description string     `json:"description" validate:"max=4000"`
	ProviderID  *uuid.UUID `json:"provider_id,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

func CreateJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		userID, role, err := middleware.Caller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.UserRoleClient {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "solo los clientes pueden crear trabajos"))
			return
		}

		var body CreateJobBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Create(r.Context(), jobs.CreateInput{
			ClientID:    userID,
			ProviderID:  body.ProviderID,
			Title:       validators.SanitizeString(body.Title, 160),
			Category:    validators.SanitizeString(body.Category, 80),
			Description: validators.SanitizeString(body.Description, 4000),
			ScheduledAt: body.ScheduledAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, job)
	}
}

func GetJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		actor, jobID, err := jobActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), actor, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func AcceptJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		actor, jobID, err := jobActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Accept(r.Context(), actor, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, job)
	}
}

func MarkJobDone(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		actor, jobID, err := jobActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MarkDone(r.Context(), actor, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ConfirmJobCompletion(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		actor, jobID, err := jobActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ConfirmCompletion(r.Context(), actor, jobID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "completed"})
	}
}

func ListJobMessages(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		actor, jobID, err := jobActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		messages, err := svc.ListMessages(r.Context(), actor, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, messages)
	}
}

func jobActor(r *http.Request) (jobs.Actor, uuid.UUID, error) {
	userID, role, err := middleware.Caller(r.Context())
	if err != nil {
		return jobs.Actor{}, uuid.Nil, err
	}
	jobID, err := pathUUID(r, "jobId")
	if err != nil {
		return jobs.Actor{}, uuid.Nil, err
	}
	return jobs.Actor{UserID: userID, Role: role}, jobID, nil
}
