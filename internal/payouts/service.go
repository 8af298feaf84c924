package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
)

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// ListResult is the console page: rows plus the money summary.
type ListResult struct {
	Payouts    []Row       `json:"payouts"`
	Aggregates *Aggregates `json:"aggregates"`
}

// CreateInput is a manual payout entered by an operator, typically after an
// out-of-band transfer for a queued invoice.
type CreateInput struct {
	InvoiceID   uuid.UUID `json:"invoice_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
	Notes       string    `json:"notes"`
}

// Service is the admin payout console.
type Service interface {
	List(ctx context.Context, actor Actor) (*ListResult, error)
	ListUnreleased(ctx context.Context, actor Actor) ([]UnreleasedInvoice, error)
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Payout, error)
	MarkPaid(ctx context.Context, actor Actor, payoutID uuid.UUID) error
}

// ServiceParams groups payout service dependencies.
type ServiceParams struct {
	Repo   Repository
	Notify notifier
	Now    func() time.Time
}

type service struct {
	repo   Repository
	notify notifier
	now    func() time.Time
}

// NewService builds the payout console service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payouts repository required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, notify: params.Notify, now: now}, nil
}

// requireAdmin checks the stored role, not just the token claims. Money
// actions do not trust middleware alone.
func (s *service) requireAdmin(ctx context.Context, actor Actor) error {
	role, err := s.repo.FindUserRole(ctx, actor.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor role")
	}
	if role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "se requiere rol de administrador")
	}
	return nil
}

func (s *service) List(ctx context.Context, actor Actor) (*ListResult, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	agg, err := s.repo.Summarize(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize payouts")
	}
	return &ListResult{Payouts: rows, Aggregates: agg}, nil
}

func (s *service) ListUnreleased(ctx context.Context, actor Actor) ([]UnreleasedInvoice, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListUnreleased(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unreleased invoices")
	}
	return rows, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Payout, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id de factura requerido")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "el monto debe ser positivo")
	}

	invoice, err := s.repo.FindInvoice(ctx, input.InvoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "factura no encontrada")
	}

	existing, err := s.repo.FindByInvoiceID(ctx, input.InvoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "la factura ya tiene un pago registrado")
	}

	payout := &models.Payout{
		InvoiceID:   input.InvoiceID,
		ProviderID:  invoice.ProviderID,
		AmountCents: input.AmountCents,
		Currency:    invoice.Currency,
		Status:      enums.PayoutStatusPending,
	}
	if input.Notes != "" {
		notes := input.Notes
		payout.Notes = &notes
	}
	if err := s.repo.Create(ctx, payout); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "la factura ya tiene un pago registrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
	}
	return payout, nil
}

func (s *service) MarkPaid(ctx context.Context, actor Actor, payoutID uuid.UUID) error {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return err
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pago no encontrado")
	}

	updated, err := s.repo.MarkPaid(ctx, payoutID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout paid")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "el pago no está pendiente")
	}

	// The manually settled payout closes out its invoice.
	if _, err := s.repo.MarkInvoiceReleased(ctx, payout.InvoiceID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release invoice")
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  payout.ProviderID,
			Type:    enums.NotificationTypePayoutReleased,
			Title:   "Depósito enviado",
			Message: "El pago de tu factura fue transferido a tu cuenta.",
			Data:    map[string]any{"invoice_id": payout.InvoiceID.String()},
		})
	}
	return nil
}
