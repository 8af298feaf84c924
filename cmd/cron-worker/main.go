package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chamby-mx/chamby-backend/internal/cron"
	"github.com/chamby-mx/chamby-backend/internal/invoices"
	"github.com/chamby-mx/chamby-backend/internal/jobs"
	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/internal/reschedule"
	"github.com/chamby-mx/chamby-backend/internal/visits"
	"github.com/chamby-mx/chamby-backend/pkg/config"
	"github.com/chamby-mx/chamby-backend/pkg/db"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	"github.com/chamby-mx/chamby-backend/pkg/metrics"
	"github.com/chamby-mx/chamby-backend/pkg/migrate"
	"github.com/chamby-mx/chamby-backend/pkg/redis"
	"github.com/chamby-mx/chamby-backend/pkg/stripe"
)

const lockKeyFormat = "chamby:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	// The sweeps write notification rows directly; push delivery stays with
	// the API process.
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notificationsSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:   notificationsRepo,
		Logger: logg,
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

	autoCompleteJob, err := cron.NewAutoCompleteJob(cron.AutoCompleteJobParams{
		Logger:   logg,
		Repo:     jobs.NewRepository(dbClient.DB()),
		Releaser: invoicesSvc,
		Notify:   notificationsSvc,
		After:    cfg.Cron.AutoCompleteAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-complete job", err)
		os.Exit(1)
	}
	rescheduleExpiryJob, err := cron.NewRescheduleExpiryJob(cron.RescheduleExpiryJobParams{
		Logger:  logg,
		Sweeper: rescheduleSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reschedule expiry job", err)
		os.Exit(1)
	}
	visitEscalationJob, err := cron.NewVisitEscalationJob(cron.VisitEscalationJobParams{
		Logger:    logg,
		Escalator: visitsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create visit escalation job", err)
		os.Exit(1)
	}
	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notificationsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(autoCompleteJob, rescheduleExpiryJob, visitEscalationJob, notificationCleanupJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
