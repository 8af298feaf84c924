package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	pkgstripe "github.com/chamby-mx/chamby-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

type invoiceHandler interface {
	HandlePaid(ctx context.Context, invoiceID uuid.UUID, intentID string) error
	HandleFailed(ctx context.Context, invoiceID uuid.UUID, reason string) error
}

// paymentMetadata is the tagged metadata written onto every PaymentIntent and
// Checkout Session the platform creates. The tag decides which service owns
// the money; nothing mutates state until the whole set decodes and validates.
type paymentMetadata struct {
	Type      string
	InvoiceID uuid.UUID
	JobID     uuid.UUID
	UserID    uuid.UUID
}

type ServiceParams struct {
	Invoices invoiceHandler
	Logger   *logger.Logger
}

type Service struct {
	invoices invoiceHandler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice handler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		invoices: params.Invoices,
		logg:     params.Logger,
	}, nil
}

// HandleEvent routes a verified Stripe event to the service that owns the
// payment. Events the platform does not react to are acknowledged so Stripe
// stops redelivering them; returning an error makes the controller drop the
// idempotency mark and lets Stripe retry the delivery.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		return s.handleIntentSucceeded(ctx, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		return s.handleIntentFailed(ctx, &intent)
	default:
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	meta, err := decodeMetadata(session.Metadata)
	if err != nil {
		return err
	}
	if meta.Type != pkgstripe.MetadataTypeInvoice {
		// Checkout is only used for invoices; anything else is not ours.
		s.logg.Info(ctx, fmt.Sprintf("checkout session %s ignored, type %q", session.ID, meta.Type))
		return nil
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}
	return s.invoices.HandlePaid(ctx, meta.InvoiceID, intentID)
}

func (s *Service) handleIntentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	meta, err := decodeMetadata(intent.Metadata)
	if err != nil {
		return err
	}

	switch meta.Type {
	case pkgstripe.MetadataTypeInvoice:
		return s.invoices.HandlePaid(ctx, meta.InvoiceID, intent.ID)
	case pkgstripe.MetadataTypeVisitFee:
		// Visit fees are captured synchronously by the visit confirmation
		// flow; by the time this event arrives the escrow state has already
		// moved. Acknowledge so Stripe stops redelivering.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"intent_id": intent.ID,
			"job_id":    meta.JobID.String(),
		})
		s.logg.Info(logCtx, "visit fee capture confirmed")
		return nil
	default:
		s.logg.Info(ctx, fmt.Sprintf("payment intent %s ignored, type %q", intent.ID, meta.Type))
		return nil
	}
}

func (s *Service) handleIntentFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	meta, err := decodeMetadata(intent.Metadata)
	if err != nil {
		return err
	}

	switch meta.Type {
	case pkgstripe.MetadataTypeInvoice:
		return s.invoices.HandleFailed(ctx, meta.InvoiceID, failureReason(intent))
	case pkgstripe.MetadataTypeVisitFee:
		// A failed visit authorization never held funds. The client retries
		// from the app, which issues a fresh PaymentIntent.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"intent_id": intent.ID,
			"job_id":    meta.JobID.String(),
		})
		s.logg.Info(logCtx, "visit fee authorization failed")
		return nil
	default:
		s.logg.Info(ctx, fmt.Sprintf("payment intent %s ignored, type %q", intent.ID, meta.Type))
		return nil
	}
}

// decodeMetadata validates the tagged union up front. A recognized tag with
// malformed identifiers is a hard error so the delivery gets retried instead
// of silently dropping a payment.
func decodeMetadata(metadata map[string]string) (*paymentMetadata, error) {
	meta := &paymentMetadata{Type: metadata["type"]}

	switch meta.Type {
	case pkgstripe.MetadataTypeInvoice:
		invoiceID, err := uuid.Parse(metadata["invoice_id"])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invoice metadata missing invoice_id")
		}
		meta.InvoiceID = invoiceID
	case pkgstripe.MetadataTypeVisitFee:
		jobID, err := uuid.Parse(metadata["job_id"])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "visit fee metadata missing job_id")
		}
		meta.JobID = jobID
	default:
		return meta, nil
	}

	if raw := metadata["job_id"]; raw != "" && meta.JobID == uuid.Nil {
		if jobID, err := uuid.Parse(raw); err == nil {
			meta.JobID = jobID
		}
	}
	if raw := metadata["user_id"]; raw != "" {
		if userID, err := uuid.Parse(raw); err == nil {
			meta.UserID = userID
		}
	}
	return meta, nil
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "el pago fue rechazado"
}
