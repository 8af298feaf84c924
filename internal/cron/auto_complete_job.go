package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

const defaultAutoCompleteAfter = 24 * time.Hour

type autoCompleteRepo interface {
	ListForAutoComplete(ctx context.Context, markedBefore time.Time, limit int) ([]models.Job, error)
	AutoComplete(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)
	CreateMessage(ctx context.Context, message *models.JobMessage) error
}

type escrowReleaser interface {
	ReleaseForJob(ctx context.Context, jobID uuid.UUID) error
}

type autoCompleteNotifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
}

// AutoCompleteJobParams configure the unconfirmed-completion sweep.
type AutoCompleteJobParams struct {
	Logger   *logger.Logger
	Repo     autoCompleteRepo
	Releaser escrowReleaser
	Notify   autoCompleteNotifier
	After    time.Duration
	Now      func() time.Time
}

// NewAutoCompleteJob builds the cron job that finalizes jobs whose client
// never confirmed the provider's completion.
func NewAutoCompleteJob(params AutoCompleteJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	if params.Releaser == nil {
		return nil, fmt.Errorf("escrow releaser required")
	}
	after := params.After
	if after <= 0 {
		after = defaultAutoCompleteAfter
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &autoCompleteJob{
		logg:     params.Logger,
		repo:     params.Repo,
		releaser: params.Releaser,
		notify:   params.Notify,
		after:    after,
		now:      now,
	}, nil
}

type autoCompleteJob struct {
	logg     *logger.Logger
	repo     autoCompleteRepo
	releaser escrowReleaser
	notify   autoCompleteNotifier
	after    time.Duration
	now      func() time.Time
}

func (j *autoCompleteJob) Name() string { return "auto-complete" }

// Run finalizes each stale job with a conditional update, so a racing client
// confirmation or a second worker loses cleanly. Per-job failures are
// collected and the batch continues.
func (j *autoCompleteJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.after)
	jobs, err := j.repo.ListForAutoComplete(ctx, cutoff, 0)
	if err != nil {
		return fmt.Errorf("query stale jobs: %w", err)
	}

	var errs error
	completed := 0
	for _, job := range jobs {
		updated, err := j.repo.AutoComplete(ctx, job.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("auto-complete job %s: %w", job.ID, err))
			continue
		}
		if !updated {
			continue
		}
		completed++

		message := &models.JobMessage{
			JobID:  job.ID,
			System: true,
			Body:   "El trabajo fue completado automáticamente al no recibir respuesta del cliente.",
		}
		if err := j.repo.CreateMessage(ctx, message); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("system message for job %s: %w", job.ID, err))
		}

		if j.notify != nil {
			data := map[string]any{"job_id": job.ID.String()}
			_ = j.notify.Notify(ctx, notifications.NotifyInput{
				UserID:  job.ClientID,
				Type:    enums.NotificationTypeJobAutoCompleted,
				Title:   "Trabajo completado",
				Message: "El trabajo se marcó como completado automáticamente.",
				Data:    data,
			})
			if job.ProviderID != nil {
				_ = j.notify.Notify(ctx, notifications.NotifyInput{
					UserID:  *job.ProviderID,
					Type:    enums.NotificationTypeJobAutoCompleted,
					Title:   "Trabajo completado",
					Message: "El trabajo se marcó como completado automáticamente.",
					Data:    data,
				})
			}
		}

		if err := j.releaser.ReleaseForJob(ctx, job.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release escrow for job %s: %w", job.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": completed})
	j.logg.Info(logCtx, "auto-complete sweep finished")
	return errs
}
