package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/internal/visits"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
)

// notifier is the slice of the notifications service the job flow uses.
type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
}

// escrowReleaser attempts to release the escrowed invoice funds for a job.
// Implemented by the invoices service.
type escrowReleaser interface {
	ReleaseForJob(ctx context.Context, jobID uuid.UUID) error
}

// invoiceFinder resolves the job's invoice for status display.
type invoiceFinder interface {
	FindByJobID(ctx context.Context, jobID uuid.UUID) (*models.Invoice, error)
}

// Service defines job lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Job, error)
	Get(ctx context.Context, actor Actor, jobID uuid.UUID) (*JobView, error)
	Accept(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error)
	MarkDone(ctx context.Context, actor Actor, jobID uuid.UUID) (*MarkDoneResult, error)
	ConfirmCompletion(ctx context.Context, actor Actor, jobID uuid.UUID) error
	ListMessages(ctx context.Context, actor Actor, jobID uuid.UUID) ([]models.JobMessage, error)
}

// Actor is the authenticated caller, threaded explicitly instead of being
// read from ambient state.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateInput captures a client booking request.
type CreateInput struct {
	ClientID    uuid.UUID
	ProviderID  *uuid.UUID
	Title       string
	Category    string
	Description string
	ScheduledAt *time.Time
}

// JobView is a job enriched with derived payment statuses.
type JobView struct {
	Job            *models.Job                 `json:"job"`
	VisitFeeStatus enums.VisitFeeStatus        `json:"visit_fee_status"`
	InvoiceStatus  visits.InvoiceDisplayStatus `json:"invoice_status"`
	InvoiceLabel   string                      `json:"invoice_label"`
}

// MarkDoneResult reports whether the provider's mark-done was applied now or
// had already happened.
type MarkDoneResult struct {
	AlreadyCompleted bool `json:"already_completed"`
}

// ServiceParams groups job service dependencies.
type ServiceParams struct {
	Repo     Repository
	Invoices invoiceFinder
	Notify   notifier
	Releaser escrowReleaser
	Now      func() time.Time
}

type service struct {
	repo     Repository
	invoices invoiceFinder
	notify   notifier
	releaser escrowReleaser
	now      func() time.Time
}

// NewService builds the job service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jobs repository required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		invoices: params.Invoices,
		notify:   params.Notify,
		releaser: params.Releaser,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Job, error) {
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identidad del usuario requerida")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "el título es obligatorio")
	}
	if input.Category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "la categoría es obligatoria")
	}

	job := &models.Job{
		ClientID:    input.ClientID,
		ProviderID:  input.ProviderID,
		Title:       input.Title,
		Category:    input.Category,
		Description: input.Description,
		Status:      enums.JobStatusSearching,
		ScheduledAt: input.ScheduledAt,
	}
	if input.ProviderID != nil {
		job.Status = enums.JobStatusAssigned
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create job")
	}
	return job, nil
}

func (s *service) Get(ctx context.Context, actor Actor, jobID uuid.UUID) (*JobView, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(actor, job); err != nil {
		return nil, err
	}

	view := &JobView{
		Job:            job,
		VisitFeeStatus: visits.ResolveVisitFeeStatus(job),
	}

	var invoice *models.Invoice
	if s.invoices != nil {
		invoice, err = s.invoices.FindByJobID(ctx, jobID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
	}
	view.InvoiceStatus = visits.ResolveInvoiceStatus(invoice)

	audience := visits.AudienceCustomer
	if actor.UserID != job.ClientID {
		audience = visits.AudienceProvider
	}
	view.InvoiceLabel = visits.InvoiceLabel(view.InvoiceStatus, audience)

	return view, nil
}

func (s *service) Accept(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	if actor.Role != enums.UserRoleProvider {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "solo los proveedores pueden aceptar trabajos")
	}

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo ya no está disponible")
	}

	ok, err := s.repo.Accept(ctx, jobID, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept job")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo ya fue tomado por otro proveedor")
	}

	updated, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  updated.ClientID,
			Type:    enums.NotificationTypeJobCompleted,
			Title:   "Proveedor asignado",
			Message: "Un proveedor aceptó tu solicitud de servicio.",
			Data:    map[string]any{"job_id": jobID.String()},
		})
	}
	return updated, nil
}

func (s *service) MarkDone(ctx context.Context, actor Actor, jobID uuid.UUID) (*MarkDoneResult, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ProviderID == nil || *job.ProviderID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "solo el proveedor asignado puede marcar el trabajo como terminado")
	}

	// Retried client calls land here after the first transition succeeded.
	if job.CompletionStatus != nil {
		return &MarkDoneResult{AlreadyCompleted: true}, nil
	}

	ok, err := s.repo.MarkDone(ctx, jobID, actor.UserID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark job done")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo no está en progreso")
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  job.ClientID,
			Type:    enums.NotificationTypeJobCompleted,
			Title:   "Trabajo terminado",
			Message: "El proveedor marcó el trabajo como terminado. Confirma para liberar el pago.",
			Data:    map[string]any{"job_id": jobID.String()},
		})
	}
	return &MarkDoneResult{}, nil
}

func (s *service) ConfirmCompletion(ctx context.Context, actor Actor, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ClientID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "solo el cliente puede confirmar el trabajo")
	}

	ok, err := s.repo.ConfirmCompletion(ctx, jobID, actor.UserID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm completion")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo no está listo para confirmarse")
	}

	if s.notify != nil && job.ProviderID != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  *job.ProviderID,
			Type:    enums.NotificationTypeJobCompleted,
			Title:   "Trabajo confirmado",
			Message: "El cliente confirmó el trabajo como completado.",
			Data:    map[string]any{"job_id": jobID.String()},
		})
	}

	if s.releaser != nil {
		if err := s.releaser.ReleaseForJob(ctx, jobID); err != nil {
			// Release failures leave the invoice queued; the job transition stands.
			return nil
		}
	}
	return nil
}

func (s *service) ListMessages(ctx context.Context, actor Actor, jobID uuid.UUID) ([]models.JobMessage, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(actor, job); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list job messages")
	}
	return messages, nil
}

func (s *service) loadJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id de trabajo requerido")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trabajo no encontrado")
	}
	return job, nil
}

func requireParticipant(actor Actor, job *models.Job) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if actor.UserID == job.ClientID {
		return nil
	}
	if job.ProviderID != nil && actor.UserID == *job.ProviderID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "no tienes acceso a este trabajo")
}
