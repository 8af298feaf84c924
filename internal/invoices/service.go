package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	pkgstripe "github.com/chamby-mx/chamby-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// gateway is the slice of the payment gateway the invoice flow uses.
type gateway interface {
	CreateInvoiceCheckout(ctx context.Context, input pkgstripe.InvoiceCheckoutInput) (*pkgstripe.InvoiceCheckout, error)
	CreateTransfer(ctx context.Context, amountCents int64, currency, destinationAccount string, metadata map[string]string) (string, error)
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// ItemInput is one line of a provider's invoice.
type ItemInput struct {
	Description    string `json:"description" validate:"required"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"required,gt=0"`
}

// CreateResult carries the invoice and, when a session was opened, the URL
// the client pays at. AlreadyExists is set when the job already had one.
type CreateResult struct {
	Invoice       *models.Invoice `json:"invoice"`
	CheckoutURL   string          `json:"checkout_url,omitempty"`
	AlreadyExists bool            `json:"already_exists"`
}

// Service owns the invoice lifecycle and the escrow release that follows
// payment.
type Service interface {
	Create(ctx context.Context, actor Actor, jobID uuid.UUID, items []ItemInput) (*CreateResult, error)
	Get(ctx context.Context, actor Actor, invoiceID uuid.UUID) (*models.Invoice, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) (*models.Invoice, error)
	HandlePaid(ctx context.Context, invoiceID uuid.UUID, intentID string) error
	HandleFailed(ctx context.Context, invoiceID uuid.UUID, reason string) error
	Release(ctx context.Context, invoiceID uuid.UUID) error
	ReleaseForJob(ctx context.Context, jobID uuid.UUID) error
}

// ServiceParams groups invoice service dependencies.
type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Gateway        gateway
	Notify         notifier
	Logger         *logger.Logger
	CommissionRate string
	Currency       string
	SuccessURL     string
	CancelURL      string
	Now            func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	gateway    gateway
	notify     notifier
	logg       *logger.Logger
	rate       decimal.Decimal
	currency   string
	successURL string
	cancelURL  string
	now        func() time.Time
}

// NewService builds the invoice service. The commission rate is parsed once
// here so a bad value fails at startup, not per request.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoices repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	rate, err := decimal.NewFromString(params.CommissionRate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parsing commission rate")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "commission rate must be in [0, 1)")
	}
	currency := params.Currency
	if currency == "" {
		currency = "mxn"
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		gateway:    params.Gateway,
		notify:     params.Notify,
		logg:       params.Logger,
		rate:       rate,
		currency:   currency,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		now:        now,
	}, nil
}

// commissionCents rounds half-up on the cent, matching how the platform
// quotes its take to providers.
func (s *service) commissionCents(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(s.rate).Round(0).IntPart()
}

func (s *service) Create(ctx context.Context, actor Actor, jobID uuid.UUID, items []ItemInput) (*CreateResult, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id de trabajo requerido")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "la factura requiere al menos un concepto")
	}
	for _, item := range items {
		if item.Description == "" || item.Quantity <= 0 || item.UnitPriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "concepto de factura inválido")
		}
	}

	job, err := s.repo.FindJob(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trabajo no encontrado")
	}
	if job.ProviderID == nil || *job.ProviderID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "solo el proveedor asignado puede facturar el trabajo")
	}
	if job.Status != enums.JobStatusInProgress && job.Status != enums.JobStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "el trabajo aún no está en etapa de facturación")
	}

	existing, err := s.repo.FindByJobID(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing invoice")
	}
	if existing != nil {
		// A draft means a previous checkout attempt failed; retry the session
		// for the same row instead of refusing.
		if existing.Status == enums.InvoiceStatusDraft {
			url, err := s.openCheckout(ctx, existing, job.ClientID)
			if err != nil {
				return nil, err
			}
			return &CreateResult{Invoice: existing, CheckoutURL: url, AlreadyExists: true}, nil
		}
		return &CreateResult{Invoice: existing, AlreadyExists: true}, nil
	}

	var subtotal int64
	invoiceItems := make([]models.InvoiceItem, 0, len(items))
	for _, item := range items {
		lineTotal := item.UnitPriceCents * int64(item.Quantity)
		subtotal += lineTotal
		invoiceItems = append(invoiceItems, models.InvoiceItem{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     lineTotal,
		})
	}
	commission := s.commissionCents(subtotal)

	invoice := &models.Invoice{
		JobID:           jobID,
		ProviderID:      actor.UserID,
		ClientID:        job.ClientID,
		Status:          enums.InvoiceStatusDraft,
		SubtotalCents:   subtotal,
		CommissionCents: commission,
		TotalCents:      subtotal + commission,
		Currency:        s.currency,
		Items:           invoiceItems,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, invoice)
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "el trabajo ya tiene una factura")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice")
	}

	url, err := s.openCheckout(ctx, invoice, job.ClientID)
	if err != nil {
		// The draft row stays; a retried create reuses it.
		return nil, err
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  job.ClientID,
			Type:    enums.NotificationTypeInvoiceCreated,
			Title:   "Nueva factura",
			Message: "El proveedor emitió la factura final del trabajo. Realiza el pago para continuar.",
			Data:    map[string]any{"job_id": jobID.String(), "invoice_id": invoice.ID.String()},
		})
	}
	return &CreateResult{Invoice: invoice, CheckoutURL: url}, nil
}

// openCheckout creates the Stripe session for a draft invoice and promotes it
// to pending once the reference is stored.
func (s *service) openCheckout(ctx context.Context, invoice *models.Invoice, clientID uuid.UUID) (string, error) {
	checkout, err := s.gateway.CreateInvoiceCheckout(ctx, pkgstripe.InvoiceCheckoutInput{
		InvoiceID:   invoice.ID.String(),
		JobID:       invoice.JobID.String(),
		ClientID:    clientID.String(),
		AmountCents: invoice.TotalCents,
		Currency:    invoice.Currency,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return "", err
	}
	if _, err := s.repo.SetCheckoutRef(ctx, invoice.ID, checkout.SessionID, checkout.IntentID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout reference")
	}
	invoice.Status = enums.InvoiceStatusPending
	invoice.StripeCheckoutSessionID = &checkout.SessionID
	if checkout.IntentID != "" {
		intentID := checkout.IntentID
		invoice.StripePaymentIntentID = &intentID
	}
	return checkout.URL, nil
}

func (s *service) Get(ctx context.Context, actor Actor, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "factura no encontrada")
	}
	if actor.Role != enums.UserRoleAdmin && invoice.ClientID != actor.UserID && invoice.ProviderID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no tienes acceso a esta factura")
	}
	return invoice, nil
}

func (s *service) FindByJobID(ctx context.Context, jobID uuid.UUID) (*models.Invoice, error) {
	return s.repo.FindByJobID(ctx, jobID)
}

// HandlePaid reacts to the gateway confirming payment. The pending→paid
// conditional update absorbs webhook redelivery; only the first delivery
// completes the job, notifies, and attempts the release.
func (s *service) HandlePaid(ctx context.Context, invoiceID uuid.UUID, intentID string) error {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "factura no encontrada")
	}

	var updated bool
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updated, err = repo.MarkPaid(ctx, invoiceID, intentID, s.now())
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}
		_, err = repo.CompleteJobOnPayment(ctx, invoice.JobID, s.now())
		return err
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record invoice payment")
	}
	if !updated {
		return nil
	}

	if s.notify != nil {
		data := map[string]any{"job_id": invoice.JobID.String(), "invoice_id": invoiceID.String()}
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  invoice.ClientID,
			Type:    enums.NotificationTypeInvoicePaid,
			Title:   "Factura pagada",
			Message: "Tu pago fue recibido. El trabajo ha sido completado.",
			Data:    data,
		})
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  invoice.ProviderID,
			Type:    enums.NotificationTypeInvoicePaid,
			Title:   "Factura pagada",
			Message: "El cliente pagó la factura. El depósito está en camino.",
			Data:    data,
		})
	}

	if err := s.Release(ctx, invoiceID); err != nil && s.logg != nil {
		// The invoice stays paid; the release queue or an admin picks it up.
		s.logg.Error(ctx, "escrow release after payment failed", err)
	}
	return nil
}

func (s *service) HandleFailed(ctx context.Context, invoiceID uuid.UUID, reason string) error {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "factura no encontrada")
	}

	updated, err := s.repo.MarkFailed(ctx, invoiceID, reason)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment failure")
	}
	if updated && s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  invoice.ClientID,
			Type:    enums.NotificationTypeInvoiceFailed,
			Title:   "Pago rechazado",
			Message: "El pago de la factura fue rechazado. Intenta nuevamente.",
			Data:    map[string]any{"job_id": invoice.JobID.String(), "invoice_id": invoiceID.String()},
		})
	}
	return nil
}

// Release moves the provider's share of a paid invoice. It is safe to call
// any number of times: an existing payout row, whatever its state, means the
// money question was already settled or handed to an admin.
func (s *service) Release(ctx context.Context, invoiceID uuid.UUID) error {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "factura no encontrada")
	}
	if invoice.Status != enums.InvoiceStatusPaid && invoice.Status != enums.InvoiceStatusReadyToRelease {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "la factura no está lista para liberar fondos")
	}

	existing, err := s.repo.FindPayoutByInvoiceID(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if existing != nil {
		return nil
	}

	provider, err := s.repo.FindUser(ctx, invoice.ProviderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load provider")
	}
	accountReady := provider != nil &&
		provider.StripeAccountID != nil && *provider.StripeAccountID != "" &&
		provider.PayoutAccountStatus != nil && *provider.PayoutAccountStatus == enums.PayoutAccountStatusEnabled
	if !accountReady {
		if _, err := s.repo.MarkReadyToRelease(ctx, invoiceID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue invoice for release")
		}
		if s.notify != nil {
			_ = s.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  invoice.ProviderID,
				Type:    enums.NotificationTypePayoutQueued,
				Title:   "Depósito en espera",
				Message: "Completa tu cuenta de depósitos para recibir el pago de la factura.",
				Data:    map[string]any{"invoice_id": invoiceID.String()},
			})
		}
		return nil
	}

	// The unique index on invoice_id makes the payout row the release lock;
	// a concurrent caller loses the insert and walks away.
	payout := &models.Payout{
		InvoiceID:   invoiceID,
		ProviderID:  invoice.ProviderID,
		AmountCents: invoice.SubtotalCents,
		Currency:    invoice.Currency,
		Status:      enums.PayoutStatusPending,
	}
	if err := s.repo.CreatePayout(ctx, payout); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
	}

	transferID, err := s.gateway.CreateTransfer(ctx, invoice.SubtotalCents, invoice.Currency, *provider.StripeAccountID, map[string]string{
		"invoice_id": invoiceID.String(),
		"job_id":     invoice.JobID.String(),
	})
	if err != nil {
		notes := fmt.Sprintf("transfer failed: %v", err)
		if _, ferr := s.repo.MarkPayoutFailed(ctx, payout.ID, notes); ferr != nil && s.logg != nil {
			s.logg.Error(ctx, "recording payout failure", ferr)
		}
		if _, qerr := s.repo.MarkReadyToRelease(ctx, invoiceID); qerr != nil && s.logg != nil {
			s.logg.Error(ctx, "queueing invoice after transfer failure", qerr)
		}
		return err
	}

	if _, err := s.repo.MarkPayoutPaid(ctx, payout.ID, transferID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout")
	}
	if _, err := s.repo.MarkReleased(ctx, invoiceID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release invoice")
	}

	if s.notify != nil {
		_ = s.notify.Notify(ctx, notifications.NotifyInput{
			UserID:  invoice.ProviderID,
			Type:    enums.NotificationTypePayoutReleased,
			Title:   "Depósito enviado",
			Message: "El pago de tu factura fue transferido a tu cuenta.",
			Data:    map[string]any{"invoice_id": invoiceID.String()},
		})
	}
	return nil
}

// ReleaseForJob releases by job id after manual or automatic completion. Jobs
// without a releasable invoice are a quiet no-op so completion never fails on
// billing state.
func (s *service) ReleaseForJob(ctx context.Context, jobID uuid.UUID) error {
	invoice, err := s.repo.FindByJobID(ctx, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil
	}
	if invoice.Status != enums.InvoiceStatusPaid && invoice.Status != enums.InvoiceStatusReadyToRelease {
		return nil
	}
	return s.Release(ctx, invoice.ID)
}
