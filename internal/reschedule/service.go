package reschedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

// notifier is the slice of the notification service the reschedule flow uses.
// HasRecent backs the one-per-hour warning dedup.
type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
	HasRecent(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, window time.Duration) (bool, error)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service owns the reschedule request lifecycle and its two sweeps.
type Service interface {
	Create(ctx context.Context, actor Actor, jobID uuid.UUID, requestedTime time.Time) (*models.RescheduleRequest, error)
	Accept(ctx context.Context, actor Actor, requestID uuid.UUID) error
	ExpireOverdue(ctx context.Context) (int, error)
	WarnNearDeadline(ctx context.Context) (int, error)
}

// ServiceParams groups reschedule service dependencies.
type ServiceParams struct {
	Repo           Repository
	Notify         notifier
	Logger         *logger.Logger
	ResponseWindow time.Duration
	WarningWindow  time.Duration
	Now            func() time.Time
}

type service struct {
	repo           Repository
	notify         notifier
	logg           *logger.Logger
	responseWindow time.Duration
	warningWindow  time.Duration
	now            func() time.Time
}

// NewService builds the reschedule service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reschedule repository required")
	}
	responseWindow := params.ResponseWindow
	if responseWindow <= 0 {
		responseWindow = 24 * time.Hour
	}
	warningWindow := params.WarningWindow
	if warningWindow <= 0 {
		warningWindow = 35 * time.Minute
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:           params.Repo,
		notify:         params.Notify,
		logg:           params.Logger,
		responseWindow: responseWindow,
		warningWindow:  warningWindow,
		now:            now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, jobID uuid.UUID, requestedTime time.Time) (*models.RescheduleRequest, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id de trabajo requerido")
	}
	now := s.now()
	if !requestedTime.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "la nueva fecha debe ser futura")
	}

	job, err := s.repo.FindJob(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trabajo no encontrado")
	}
	if job.ClientID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "solo el cliente del trabajo puede reagendar")
	}
	if job.ProviderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo no tiene proveedor asignado")
	}
	if job.ScheduledAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo no tiene fecha agendada")
	}

	existing, err := s.repo.FindPendingByJobID(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending request")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ya hay una solicitud de reagenda pendiente")
	}

	request := &models.RescheduleRequest{
		JobID:         jobID,
		ProviderID:    *job.ProviderID,
		OriginalTime:  *job.ScheduledAt,
		RequestedTime: requestedTime,
		Status:        enums.RescheduleStatusPending,
		RespondBy:     now.Add(s.responseWindow),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reschedule request")
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  request.ProviderID,
			Type:    enums.NotificationTypeRescheduleRequest,
			Title:   "Solicitud de reagenda",
			Message: "El cliente propuso una nueva fecha para el trabajo. Responde antes del plazo.",
			Data: map[string]any{
				"job_id":     jobID.String(),
				"request_id": request.ID.String(),
				"respond_by": request.RespondBy.Format(time.RFC3339),
			},
		})
	}
	return request, nil
}

func (s *service) Accept(ctx context.Context, actor Actor, requestID uuid.UUID) error {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reschedule request")
	}
	if request == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "solicitud no encontrada")
	}
	if request.ProviderID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "solo el proveedor asignado puede aceptar la reagenda")
	}

	updated, err := s.repo.Accept(ctx, requestID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept reschedule request")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "la solicitud ya no está pendiente")
	}

	if err := s.repo.SetJobSchedule(ctx, request.JobID, request.RequestedTime); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job schedule")
	}

	if s.notify != nil {
		job, err := s.repo.FindJob(ctx, request.JobID)
		if err == nil && job != nil {
			_ = s.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  job.ClientID,
				Type:    enums.NotificationTypeRescheduleAccepted,
				Title:   "Reagenda aceptada",
				Message: "El proveedor aceptó la nueva fecha del trabajo.",
				Data:    map[string]any{"job_id": request.JobID.String()},
			})
		}
	}
	return nil
}

// ExpireOverdue closes pending requests past their deadline and returns the
// jobs to the open pool with the client's requested time. The conditional
// updates make overlapping runs and racing accepts safe; per-request failures
// are collected so the batch finishes.
func (s *service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	requests, err := s.repo.ListOverdue(ctx, now, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue requests")
	}

	var errs error
	expired := 0
	for _, request := range requests {
		updated, err := s.repo.Expire(ctx, request.ID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !updated {
			// Accepted in the meantime or another run got here first.
			continue
		}
		if _, err := s.repo.ReturnJobToPool(ctx, request.JobID, request.RequestedTime); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		expired++

		job, err := s.repo.FindJob(ctx, request.JobID)
		if err != nil || job == nil {
			continue
		}
		if s.notify != nil {
			data := map[string]any{"job_id": request.JobID.String()}
			_ = s.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  request.ProviderID,
				Type:    enums.NotificationTypeRescheduleExpired,
				Title:   "Reagenda vencida",
				Message: "No respondiste a la reagenda a tiempo. El trabajo fue reasignado.",
				Data:    data,
			})
			_ = s.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  job.ClientID,
				Type:    enums.NotificationTypeRescheduleExpired,
				Title:   "Buscando nuevo proveedor",
				Message: "El proveedor no respondió a la reagenda. Estamos buscando otro proveedor.",
				Data:    data,
			})
		}
	}
	return expired, errs
}

// WarnNearDeadline sends a single reminder to providers whose response window
// is about to close. warning_sent_at plus the HasRecent check keep redeliveries
// out even across row resets.
func (s *service) WarnNearDeadline(ctx context.Context) (int, error) {
	now := s.now()
	requests, err := s.repo.ListNearDeadline(ctx, now, s.warningWindow, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list near-deadline requests")
	}

	var errs error
	warned := 0
	for _, request := range requests {
		if s.notify != nil {
			recent, err := s.notify.HasRecent(ctx, request.ProviderID, enums.NotificationTypeRescheduleWarning, time.Hour)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if recent {
				continue
			}
		}

		updated, err := s.repo.MarkWarningSent(ctx, request.ID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !updated {
			continue
		}
		warned++

		if s.notify != nil {
			_ = s.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  request.ProviderID,
				Type:    enums.NotificationTypeRescheduleWarning,
				Title:   "Reagenda por vencer",
				Message: "Tu plazo para responder a la reagenda está por vencer.",
				Data: map[string]any{
					"job_id":     request.JobID.String(),
					"request_id": request.ID.String(),
					"respond_by": request.RespondBy.Format(time.RFC3339),
				},
			})
		}
	}
	return warned, errs
}
