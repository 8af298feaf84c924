package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/chamby-mx/chamby-backend/api/routes"
	"github.com/chamby-mx/chamby-backend/internal/invoices"
	"github.com/chamby-mx/chamby-backend/internal/jobs"
	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/internal/payouts"
	"github.com/chamby-mx/chamby-backend/internal/reschedule"
	"github.com/chamby-mx/chamby-backend/internal/visits"
	stripewebhook "github.com/chamby-mx/chamby-backend/internal/webhooks/stripe"
	"github.com/chamby-mx/chamby-backend/pkg/config"
	"github.com/chamby-mx/chamby-backend/pkg/db"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	"github.com/chamby-mx/chamby-backend/pkg/migrate"
	"github.com/chamby-mx/chamby-backend/pkg/pubsub"
	"github.com/chamby-mx/chamby-backend/pkg/redis"
	"github.com/chamby-mx/chamby-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	paymentGateway, err := stripe.NewPaymentGateway(stripeClient, cfg.Stripe.CallTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	// Pub/Sub only carries push delivery; without it notifications stay in-app.
	var notificationPublisher notifications.EventPublisher
	var pubsubPinger pubsub.Pinger
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(context.Background(), "pub/sub unavailable, notifications limited to in-app delivery")
	} else {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pub/sub", err)
			}
		}()
		notificationPublisher = pubsubClient.NotificationPublisher()
		pubsubPinger = pubsubClient
	}

	notificationsSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:      notifications.NewRepository(dbClient.DB()),
		Publisher: notificationPublisher,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	invoicesSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:           invoices.NewRepository(dbClient.DB()),
		Tx:             dbClient,
		Gateway:        paymentGateway,
		Notify:         notificationsSvc,
		Logger:         logg,
		CommissionRate: cfg.Escrow.CommissionRate,
		Currency:       cfg.Escrow.Currency,
		SuccessURL:     cfg.Escrow.CheckoutSuccessURL,
		CancelURL:      cfg.Escrow.CheckoutCancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoices service", err)
		os.Exit(1)
	}

	visitsSvc, err := visits.NewService(visits.ServiceParams{
		Repo:               visits.NewRepository(dbClient.DB()),
		Gateway:            paymentGateway,
		Notify:             notificationsSvc,
		Logger:             logg,
		VisitFeeCents:      cfg.Escrow.VisitFeeCents,
		Currency:           cfg.Escrow.Currency,
		ConfirmationWindow: cfg.Cron.VisitConfirmationWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create visits service", err)
		os.Exit(1)
	}

	jobsSvc, err := jobs.NewService(jobs.ServiceParams{
		Repo:     jobs.NewRepository(dbClient.DB()),
		Invoices: invoicesSvc,
		Notify:   notificationsSvc,
		Releaser: invoicesSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create jobs service", err)
		os.Exit(1)
	}

	rescheduleSvc, err := reschedule.NewService(reschedule.ServiceParams{
		Repo:           reschedule.NewRepository(dbClient.DB()),
		Notify:         notificationsSvc,
		Logger:         logg,
		ResponseWindow: cfg.Cron.RescheduleResponseWindow,
		WarningWindow:  cfg.Cron.RescheduleWarningWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reschedule service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(payouts.ServiceParams{
		Repo:   payouts.NewRepository(dbClient.DB()),
		Notify: notificationsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Invoices: invoicesSvc,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Pubsub:        pubsubPinger,
			Jobs:          jobsSvc,
			Visits:        visitsSvc,
			Invoices:      invoicesSvc,
			Reschedules:   rescheduleSvc,
			Notifications: notificationsSvc,
			Payouts:       payoutsSvc,
			StripeClient:  stripeClient,
			StripeWebhook: webhookSvc,
			WebhookGuard:  webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
