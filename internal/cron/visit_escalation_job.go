package cron

import (
	"context"
	"fmt"

	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

type visitEscalator interface {
	EscalateOverdue(ctx context.Context) (int, error)
}

// VisitEscalationJobParams configure the visit confirmation sweep.
type VisitEscalationJobParams struct {
	Logger    *logger.Logger
	Escalator visitEscalator
}

// NewVisitEscalationJob builds the cron job that hands overdue visit
// confirmations to support.
func NewVisitEscalationJob(params VisitEscalationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Escalator == nil {
		return nil, fmt.Errorf("visits service required")
	}
	return &visitEscalationJob{logg: params.Logger, escalator: params.Escalator}, nil
}

type visitEscalationJob struct {
	logg      *logger.Logger
	escalator visitEscalator
}

func (j *visitEscalationJob) Name() string { return "visit-escalation" }

func (j *visitEscalationJob) Run(ctx context.Context) error {
	escalated, err := j.escalator.EscalateOverdue(ctx)
	if err != nil {
		return fmt.Errorf("escalate overdue visits: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": escalated})
	j.logg.Info(logCtx, "visit escalation sweep finished")
	return nil
}
