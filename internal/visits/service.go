package visits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	pkgstripe "github.com/chamby-mx/chamby-backend/pkg/stripe"
)

// gateway is the slice of the payment gateway the visit flow uses.
type gateway interface {
	CreateVisitAuthorization(ctx context.Context, amountCents int64, currency, jobID, clientID string) (*pkgstripe.VisitAuthorization, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
	NotifyAdmins(ctx context.Context, input notifications.NotifyInput) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Resolution is an admin's decision on a disputed or stuck visit fee.
type Resolution string

const (
	ResolutionCapture Resolution = "capture"
	ResolutionRelease Resolution = "release"
)

// AuthorizationResult reports the intent backing the visit fee. AlreadyExists
// is set when a live authorization was found instead of created.
type AuthorizationResult struct {
	IntentID      string `json:"intent_id"`
	ClientSecret  string `json:"client_secret"`
	AlreadyExists bool   `json:"already_exists"`
}

// Service drives the visit fee state machine.
type Service interface {
	CreateAuthorization(ctx context.Context, actor Actor, jobID uuid.UUID) (*AuthorizationResult, error)
	ProviderConfirm(ctx context.Context, actor Actor, jobID uuid.UUID) error
	ClientConfirm(ctx context.Context, actor Actor, jobID uuid.UUID) error
	Dispute(ctx context.Context, actor Actor, jobID uuid.UUID) error
	AdminResolve(ctx context.Context, actor Actor, jobID uuid.UUID, resolution Resolution) error
	EscalateOverdue(ctx context.Context) (int, error)
}

// ServiceParams groups visit service dependencies.
type ServiceParams struct {
	Repo               Repository
	Gateway            gateway
	Notify             notifier
	Logger             *logger.Logger
	VisitFeeCents      int64
	Currency           string
	ConfirmationWindow time.Duration
	Now                func() time.Time
}

type service struct {
	repo          Repository
	gateway       gateway
	notify        notifier
	logg          *logger.Logger
	visitFeeCents int64
	currency      string
	window        time.Duration
	now           func() time.Time
}

// NewService builds the visit service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "visits repository required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	if params.VisitFeeCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "visit fee must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = "mxn"
	}
	window := params.ConfirmationWindow
	if window <= 0 {
		window = 48 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:          params.Repo,
		gateway:       params.Gateway,
		notify:        params.Notify,
		logg:          params.Logger,
		visitFeeCents: params.VisitFeeCents,
		currency:      currency,
		window:        window,
		now:           now,
	}, nil
}

func (s *service) CreateAuthorization(ctx context.Context, actor Actor, jobID uuid.UUID) (*AuthorizationResult, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "solo el cliente del trabajo puede autorizar la cuota de visita")
	}
	if job.VisitFeeStatus == enums.VisitFeeStatusCaptured {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "la cuota de visita ya fue cobrada")
	}

	// Tolerate client retries: a live authorization is returned as-is.
	if job.VisitPaymentIntentID != nil && *job.VisitPaymentIntentID != "" {
		intent, err := s.gateway.RetrievePaymentIntent(ctx, *job.VisitPaymentIntentID)
		if err != nil {
			return nil, err
		}
		// A succeeded intent means the fee was already charged and a local
		// write was lost; record the capture instead of opening a second one.
		if intent.Status == stripe.PaymentIntentStatusSucceeded {
			if _, err := s.repo.CaptureFee(ctx, jobID, s.now()); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record visit capture")
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "la cuota de visita ya fue cobrada")
		}
		if intent.Status != stripe.PaymentIntentStatusCanceled {
			return &AuthorizationResult{
				IntentID:      intent.ID,
				ClientSecret:  intent.ClientSecret,
				AlreadyExists: true,
			}, nil
		}
	}

	auth, err := s.gateway.CreateVisitAuthorization(ctx, s.visitFeeCents, s.currency, jobID.String(), actor.UserID.String())
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.SetAuthorization(ctx, jobID, auth.IntentID, s.visitFeeCents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store visit authorization")
	}

	return &AuthorizationResult{
		IntentID:     auth.IntentID,
		ClientSecret: auth.ClientSecret,
	}, nil
}

func (s *service) ProviderConfirm(ctx context.Context, actor Actor, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ProviderID == nil || *job.ProviderID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "solo el proveedor asignado puede confirmar la visita")
	}
	if job.ProviderConfirmedVisit {
		return nil
	}

	// Start the 48h clock only while the client is silent.
	var deadline *time.Time
	if !job.ClientConfirmedVisit {
		d := s.now().Add(s.window)
		deadline = &d
	}
	if _, err := s.repo.SetProviderConfirmed(ctx, jobID, deadline); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm visit")
	}

	// The client may have confirmed first; this confirmation completes the
	// pair, so the capture runs here instead of waiting on anyone.
	if job.ClientConfirmedVisit {
		if job.VisitPaymentIntentID == nil || *job.VisitPaymentIntentID == "" {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "la cuota de visita no ha sido autorizada")
		}
		captured, err := s.captureVisitFee(ctx, job)
		if err != nil {
			return err
		}
		if captured && s.notify != nil {
			_ = s.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  job.ClientID,
				Type:    enums.NotificationTypeVisitCaptured,
				Title:   "Visita confirmada",
				Message: "Ambas partes confirmaron la visita. El trabajo está en progreso.",
				Data:    map[string]any{"job_id": jobID.String()},
			})
		}
		return nil
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  job.ClientID,
			Type:    enums.NotificationTypeVisitConfirmed,
			Title:   "Visita realizada",
			Message: "El proveedor confirmó la visita. Confirma para continuar con el servicio.",
			Data:    map[string]any{"job_id": jobID.String()},
		})
	}
	return nil
}

func (s *service) ClientConfirm(ctx context.Context, actor Actor, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ClientID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "solo el cliente puede confirmar la visita")
	}
	if job.VisitFeeStatus == enums.VisitFeeStatusCaptured {
		return nil
	}
	if job.VisitPaymentIntentID == nil || *job.VisitPaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "la cuota de visita no ha sido autorizada")
	}

	if !job.ProviderConfirmedVisit {
		if _, err := s.repo.SetClientConfirmed(ctx, jobID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm visit")
		}
		return nil
	}

	// Both sides confirmed: capture.
	updated, err := s.captureVisitFee(ctx, job)
	if err != nil {
		return err
	}
	if updated && s.notify != nil && job.ProviderID != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  *job.ProviderID,
			Type:    enums.NotificationTypeVisitCaptured,
			Title:   "Visita confirmada",
			Message: "El cliente confirmó la visita. El trabajo está en progreso.",
			Data:    map[string]any{"job_id": jobID.String()},
		})
	}
	return nil
}

func (s *service) Dispute(ctx context.Context, actor Actor, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ClientID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "solo el cliente puede disputar la visita")
	}

	updated, err := s.repo.SetDisputePending(ctx, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispute")
	}
	if !updated {
		// Already disputed or escalated; treat the retry as settled.
		return nil
	}

	s.fanOutDispute(ctx, job.ClientID, job.ProviderID, jobID, enums.NotificationTypeVisitDispute,
		"Visita en disputa", "El cliente disputó la confirmación de la visita.")
	return nil
}

func (s *service) AdminResolve(ctx context.Context, actor Actor, jobID uuid.UUID, resolution Resolution) error {
	// The stored role is checked here on purpose; middleware claims alone
	// are not trusted for money-moving admin actions.
	role, err := s.repo.FindUserRole(ctx, actor.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor role")
	}
	if role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "se requiere rol de administrador")
	}

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.VisitPaymentIntentID == nil || *job.VisitPaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo no tiene autorización de visita")
	}

	switch resolution {
	case ResolutionCapture:
		if _, err := s.captureVisitFee(ctx, job); err != nil {
			return err
		}
	case ResolutionRelease:
		if _, err := s.gateway.CancelPaymentIntent(ctx, *job.VisitPaymentIntentID); err != nil {
			return err
		}
		if _, err := s.repo.ClearAuthorization(ctx, jobID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear visit authorization")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "resolución inválida")
	}
	return nil
}

// EscalateOverdue moves visits past the confirmation deadline to
// pending_support and fans out notifications exactly once per job. Per-job
// failures are collected so one bad row never aborts the sweep.
func (s *service) EscalateOverdue(ctx context.Context) (int, error) {
	now := s.now()
	jobs, err := s.repo.ListEscalatable(ctx, now, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list escalatable visits")
	}

	var errs error
	escalated := 0
	for _, job := range jobs {
		updated, err := s.repo.Escalate(ctx, job.ID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !updated {
			// Another sweep run won the race; notifications already went out.
			continue
		}
		escalated++
		s.fanOutDispute(ctx, job.ClientID, job.ProviderID, job.ID, enums.NotificationTypeVisitEscalation,
			"Visita escalada a soporte", "El cliente no respondió a la confirmación de visita a tiempo.")
	}
	return escalated, errs
}

// captureVisitFee settles the fee at the processor and records it locally.
// Local state changes only after the processor reports the capture, never on
// error. An intent the processor already settled, left behind when a previous
// attempt lost the database write, is recorded rather than charged again.
func (s *service) captureVisitFee(ctx context.Context, job *models.Job) (bool, error) {
	intent, err := s.gateway.RetrievePaymentIntent(ctx, *job.VisitPaymentIntentID)
	if err != nil {
		return false, err
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		intent, err = s.gateway.CapturePaymentIntent(ctx, *job.VisitPaymentIntentID)
		if err != nil {
			return false, err
		}
		if intent.Status != stripe.PaymentIntentStatusSucceeded {
			return false, pkgerrors.New(pkgerrors.CodeDependency, "el cobro de la visita no fue confirmado por el procesador")
		}
	}

	updated, err := s.repo.CaptureFee(ctx, job.ID, s.now())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record visit capture")
	}
	return updated, nil
}

func (s *service) fanOutDispute(ctx context.Context, clientID uuid.UUID, providerID *uuid.UUID, jobID uuid.UUID, notificationType enums.NotificationType, title, message string) {
	if s.notify == nil {
		return
	}
	data := map[string]any{"job_id": jobID.String()}
	input := notifications.NotifyInput{Type: notificationType, Title: title, Message: message, Data: data}

	if err := s.notify.NotifyAdmins(ctx, input); err != nil && s.logg != nil {
		s.logg.Error(ctx, "notifying admins failed", err)
	}
	clientInput := input
	clientInput.UserID = clientID
	_ = s.notify.Notify(ctx, clientInput)
	if providerID != nil {
		providerInput := input
		providerInput.UserID = *providerID
		_ = s.notify.Notify(ctx, providerInput)
	}
}

func (s *service) loadJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id de trabajo requerido")
	}
	job, err := s.repo.FindJob(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trabajo no encontrado")
	}
	return job, nil
}
