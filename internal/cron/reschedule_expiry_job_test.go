package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

type fakeRescheduleSweeper struct {
	warned      int
	expired     int
	warnErr     error
	expireErr   error
	callTracker *[]string
}

func (f *fakeRescheduleSweeper) WarnNearDeadline(ctx context.Context) (int, error) {
	if f.callTracker != nil {
		*f.callTracker = append(*f.callTracker, "warn")
	}
	return f.warned, f.warnErr
}

func (f *fakeRescheduleSweeper) ExpireOverdue(ctx context.Context) (int, error) {
	if f.callTracker != nil {
		*f.callTracker = append(*f.callTracker, "expire")
	}
	return f.expired, f.expireErr
}

func newRescheduleJob(t *testing.T, sweeper *fakeRescheduleSweeper) Job {
	t.Helper()
	job, err := NewRescheduleExpiryJob(RescheduleExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewRescheduleExpiryJob: %v", err)
	}
	return job
}

func TestRescheduleExpiryJobWarnsBeforeExpiring(t *testing.T) {
	var calls []string
	sweeper := &fakeRescheduleSweeper{warned: 2, expired: 1, callTracker: &calls}
	job := newRescheduleJob(t, sweeper)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 2 || calls[0] != "warn" || calls[1] != "expire" {
		t.Fatalf("expected warn then expire, got %v", calls)
	}
}

func TestRescheduleExpiryJobRunsBothPassesDespiteWarnFailure(t *testing.T) {
	var calls []string
	sweeper := &fakeRescheduleSweeper{warnErr: errors.New("boom"), callTracker: &calls}
	job := newRescheduleJob(t, sweeper)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(calls) != 2 {
		t.Fatalf("expiry pass must still run, got %v", calls)
	}
}
