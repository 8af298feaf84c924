package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/transfer"

	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
)

const (
	// MetadataTypeVisitFee tags PaymentIntents created for visit authorizations.
	MetadataTypeVisitFee = "visit_fee"
	// MetadataTypeInvoice tags Checkout payments created for invoices.
	MetadataTypeInvoice = "invoice"

	retrieveAttempts     = 3
	retrieveInitialDelay = 500 * time.Millisecond
)

// VisitAuthorization is the result of creating a manual-capture intent.
type VisitAuthorization struct {
	IntentID     string
	ClientSecret string
}

// InvoiceCheckout is the result of creating a Checkout Session for an invoice.
type InvoiceCheckout struct {
	SessionID string
	URL       string
	IntentID  string
}

// InvoiceCheckoutInput carries everything needed to build the invoice session.
type InvoiceCheckoutInput struct {
	InvoiceID   string
	JobID       string
	ClientID    string
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// Gateway is the payment surface services depend on. Implemented by
// PaymentGateway; test doubles implement it directly.
type Gateway interface {
	CreateVisitAuthorization(ctx context.Context, amountCents int64, currency, jobID, clientID string) (*VisitAuthorization, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CreateInvoiceCheckout(ctx context.Context, input InvoiceCheckoutInput) (*InvoiceCheckout, error)
	CreateTransfer(ctx context.Context, amountCents int64, currency, destinationAccount string, metadata map[string]string) (string, error)
}

// PaymentGateway implements Gateway on the shared Stripe client.
type PaymentGateway struct {
	client      *Client
	callTimeout time.Duration
}

// NewPaymentGateway wraps the initialized Stripe client.
func NewPaymentGateway(client *Client, callTimeout time.Duration) (*PaymentGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &PaymentGateway{client: client, callTimeout: callTimeout}, nil
}

// CreateVisitAuthorization opens a manual-capture PaymentIntent for the visit
// fee. The intent is not captured until the provider's visit is confirmed.
func (g *PaymentGateway) CreateVisitAuthorization(ctx context.Context, amountCents int64, currency, jobID, clientID string) (*VisitAuthorization, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "visit fee amount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("type", MetadataTypeVisitFee)
	params.AddMetadata("job_id", jobID)
	params.AddMetadata("user_id", clientID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating visit authorization intent")
	}
	return &VisitAuthorization{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// RetrievePaymentIntent reads the intent with a small bounded retry. Reads are
// idempotent so retrying on transient failures is safe; mutations are not
// retried anywhere in this gateway.
func (g *PaymentGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(retrieveAttempts-1, retry.NewExponential(retrieveInitialDelay))

	var intent *stripe.PaymentIntent
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		got, err := paymentintent.Get(intentID, params)
		if err != nil {
			return retry.RetryableError(err)
		}
		intent = got
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieving payment intent")
	}
	return intent, nil
}

// CapturePaymentIntent captures a previously authorized intent.
func (g *PaymentGateway) CapturePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	intent, err := paymentintent.Capture(intentID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capturing payment intent")
	}
	return intent, nil
}

// CancelPaymentIntent voids an uncaptured authorization.
func (g *PaymentGateway) CancelPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	intent, err := paymentintent.Cancel(intentID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling payment intent")
	}
	return intent, nil
}

// CreateInvoiceCheckout opens a Checkout Session that collects the invoice
// total from the client.
func (g *PaymentGateway) CreateInvoiceCheckout(ctx context.Context, input InvoiceCheckoutInput) (*InvoiceCheckout, error) {
	if input.InvoiceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice amount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	description := input.Description
	if description == "" {
		description = "Factura Chamby"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(input.Currency),
					UnitAmount: stripe.Int64(input.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"type":       MetadataTypeInvoice,
				"invoice_id": input.InvoiceID,
				"job_id":     input.JobID,
				"user_id":    input.ClientID,
			},
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating invoice checkout session")
	}

	checkout := &InvoiceCheckout{
		SessionID: sess.ID,
		URL:       sess.URL,
	}
	if sess.PaymentIntent != nil {
		checkout.IntentID = sess.PaymentIntent.ID
	}
	return checkout, nil
}

// CreateTransfer moves the provider share to their connected account.
func (g *PaymentGateway) CreateTransfer(ctx context.Context, amountCents int64, currency, destinationAccount string, metadata map[string]string) (string, error) {
	if amountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if destinationAccount == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "destination account is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(destinationAccount),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	tr, err := transfer.New(params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating provider transfer")
	}
	return tr.ID, nil
}
