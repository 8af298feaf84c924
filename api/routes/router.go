package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chamby-mx/chamby-backend/api/controllers"
	webhookcontrollers "github.com/chamby-mx/chamby-backend/api/controllers/webhooks"
	"github.com/chamby-mx/chamby-backend/api/middleware"
	"github.com/chamby-mx/chamby-backend/internal/invoices"
	"github.com/chamby-mx/chamby-backend/internal/jobs"
	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/internal/payouts"
	"github.com/chamby-mx/chamby-backend/internal/reschedule"
	"github.com/chamby-mx/chamby-backend/internal/visits"
	stripewebhook "github.com/chamby-mx/chamby-backend/internal/webhooks/stripe"
	"github.com/chamby-mx/chamby-backend/pkg/config"
	"github.com/chamby-mx/chamby-backend/pkg/db"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	"github.com/chamby-mx/chamby-backend/pkg/pubsub"
	"github.com/chamby-mx/chamby-backend/pkg/redis"
	"github.com/chamby-mx/chamby-backend/pkg/stripe"
)

// Deps carries everything the HTTP surface needs. Fields left nil disable
// the routes that depend on them only in tests; production wiring fills all
// of them.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB     db.Pinger
	Redis  *redis.Client
	Pubsub pubsub.Pinger

	Jobs          jobs.Service
	Visits        visits.Service
	Invoices      invoices.Service
	Reschedules   reschedule.Service
	Notifications notifications.Service
	Payouts       payouts.Service

	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// Endpoints that reach Stripe share one fixed-window budget.
	paymentPolicy := middleware.NewRateLimitPolicy(
		"payments",
		cfg.RateLimit.PaymentWindow,
		cfg.RateLimit.PaymentIPLimit,
		cfg.RateLimit.PaymentUserLimit,
	)
	paymentLimit := middleware.RateLimit(paymentPolicy, d.Redis, logg)

	var redisPing redis.Pinger
	if d.Redis != nil {
		redisPing = d.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadyDeps(d.DB, redisPing, d.Pubsub)))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhook, d.StripeClient, d.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", controllers.CreateJob(d.Jobs, logg))
			r.Route("/{jobId}", func(r chi.Router) {
				r.Get("/", controllers.GetJob(d.Jobs, logg))
				r.Post("/accept", controllers.AcceptJob(d.Jobs, logg))
				r.Post("/mark-done", controllers.MarkJobDone(d.Jobs, logg))
				r.Post("/confirm-completion", controllers.ConfirmJobCompletion(d.Jobs, logg))
				r.Get("/messages", controllers.ListJobMessages(d.Jobs, logg))

				r.With(paymentLimit).Post("/visit-authorization", controllers.CreateVisitAuthorization(d.Visits, logg))
				r.Route("/visit", func(r chi.Router) {
					r.Post("/provider-confirm", controllers.ProviderConfirmVisit(d.Visits, logg))
					r.Post("/client-confirm", controllers.ClientConfirmVisit(d.Visits, logg))
					r.Post("/dispute", controllers.DisputeVisit(d.Visits, logg))
				})

				r.With(paymentLimit).Post("/invoice", controllers.CreateInvoice(d.Invoices, logg))
				r.Post("/reschedule", controllers.CreateReschedule(d.Reschedules, logg))
			})
		})

		r.Get("/invoices/{invoiceId}", controllers.GetInvoice(d.Invoices, logg))
		r.Post("/reschedules/{rescheduleId}/accept", controllers.AcceptReschedule(d.Reschedules, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", controllers.ListPayouts(d.Payouts, logg))
			r.Get("/unreleased", controllers.ListUnreleasedPayouts(d.Payouts, logg))
			r.Post("/", controllers.CreatePayout(d.Payouts, logg))
			r.Post("/{payoutId}/mark-paid", controllers.MarkPayoutPaid(d.Payouts, logg))
		})
		r.Post("/jobs/{jobId}/visit/resolve", controllers.AdminResolveVisit(d.Visits, logg))
	})

	return r
}
