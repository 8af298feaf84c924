package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

type rescheduleSweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
	WarnNearDeadline(ctx context.Context) (int, error)
}

// RescheduleExpiryJobParams configure the reschedule deadline sweep.
type RescheduleExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper rescheduleSweeper
}

// NewRescheduleExpiryJob builds the cron job that warns near-deadline
// reschedule requests and expires the overdue ones.
func NewRescheduleExpiryJob(params RescheduleExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("reschedule service required")
	}
	return &rescheduleExpiryJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type rescheduleExpiryJob struct {
	logg    *logger.Logger
	sweeper rescheduleSweeper
}

func (j *rescheduleExpiryJob) Name() string { return "reschedule-expiry" }

// Run warns first, then expires, so a request crossing the deadline between
// the two passes is expired this cycle instead of warned about.
func (j *rescheduleExpiryJob) Run(ctx context.Context) error {
	var errs error

	warned, err := j.sweeper.WarnNearDeadline(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("warn near-deadline requests: %w", err))
	}
	expired, err := j.sweeper.ExpireOverdue(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("expire overdue requests: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"warned": warned, "expired": expired})
	j.logg.Info(logCtx, "reschedule sweep finished")
	return errs
}
