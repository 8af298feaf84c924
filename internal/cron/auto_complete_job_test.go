package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

type fakeAutoCompleteRepo struct {
	stale        []models.Job
	listErr      error
	lastCutoff   time.Time
	completed    []uuid.UUID
	completeOK   bool
	messages     []models.JobMessage
	messageErr   error
	completeErr  error
	completeSeen int
}

func (f *fakeAutoCompleteRepo) ListForAutoComplete(ctx context.Context, markedBefore time.Time, limit int) ([]models.Job, error) {
	f.lastCutoff = markedBefore
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stale, nil
}

func (f *fakeAutoCompleteRepo) AutoComplete(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	f.completeSeen++
	if f.completeErr != nil {
		return false, f.completeErr
	}
	if !f.completeOK {
		return false, nil
	}
	f.completed = append(f.completed, jobID)
	return true, nil
}

func (f *fakeAutoCompleteRepo) CreateMessage(ctx context.Context, message *models.JobMessage) error {
	if f.messageErr != nil {
		return f.messageErr
	}
	f.messages = append(f.messages, *message)
	return nil
}

type fakeEscrowReleaser struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeEscrowReleaser) ReleaseForJob(ctx context.Context, jobID uuid.UUID) error {
	f.calls = append(f.calls, jobID)
	return f.err
}

type fakeCronNotifier struct {
	inputs []notifications.NotifyInput
}

func (f *fakeCronNotifier) Notify(ctx context.Context, input notifications.NotifyInput) error {
	f.inputs = append(f.inputs, input)
	return nil
}

func newAutoCompleteJob(t *testing.T, repo *fakeAutoCompleteRepo, releaser *fakeEscrowReleaser, notify *fakeCronNotifier, now time.Time) Job {
	t.Helper()
	params := AutoCompleteJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Repo:     repo,
		Releaser: releaser,
		After:    24 * time.Hour,
		Now:      func() time.Time { return now },
	}
	if notify != nil {
		params.Notify = notify
	}
	job, err := NewAutoCompleteJob(params)
	if err != nil {
		t.Fatalf("NewAutoCompleteJob: %v", err)
	}
	return job
}

func TestAutoCompleteJobFinalizesStaleJobs(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	markedAt := now.Add(-25 * time.Hour)
	providerID := uuid.New()
	stale := models.Job{
		ID:                 uuid.New(),
		ClientID:           uuid.New(),
		ProviderID:         &providerID,
		Status:             enums.JobStatusInProgress,
		CompletionMarkedAt: &markedAt,
	}
	repo := &fakeAutoCompleteRepo{stale: []models.Job{stale}, completeOK: true}
	releaser := &fakeEscrowReleaser{}
	notify := &fakeCronNotifier{}
	job := newAutoCompleteJob(t, repo, releaser, notify, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !repo.lastCutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("expected 24h cutoff, got %s", repo.lastCutoff)
	}
	if len(repo.completed) != 1 || repo.completed[0] != stale.ID {
		t.Fatalf("expected the stale job completed, got %v", repo.completed)
	}
	if len(releaser.calls) != 1 || releaser.calls[0] != stale.ID {
		t.Fatalf("expected exactly one release attempt, got %v", releaser.calls)
	}
	if len(repo.messages) != 1 || !repo.messages[0].System || repo.messages[0].SenderID != nil {
		t.Fatalf("expected one system message, got %+v", repo.messages)
	}
	if len(notify.inputs) != 2 {
		t.Fatalf("expected both parties notified, got %d", len(notify.inputs))
	}
}

func TestAutoCompleteJobSkipsJobsLostToARace(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAutoCompleteRepo{
		stale:      []models.Job{{ID: uuid.New(), ClientID: uuid.New()}},
		completeOK: false,
	}
	releaser := &fakeEscrowReleaser{}
	job := newAutoCompleteJob(t, repo, releaser, nil, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(releaser.calls) != 0 {
		t.Fatalf("lost race must not release, got %v", releaser.calls)
	}
}

func TestAutoCompleteJobCollectsPerJobFailures(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAutoCompleteRepo{
		stale: []models.Job{
			{ID: uuid.New(), ClientID: uuid.New()},
			{ID: uuid.New(), ClientID: uuid.New()},
		},
		completeOK: true,
	}
	releaser := &fakeEscrowReleaser{err: errors.New("stripe down")}
	job := newAutoCompleteJob(t, repo, releaser, nil, now)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected collected errors")
	}
	// The batch keeps going after the first failure.
	if repo.completeSeen != 2 {
		t.Fatalf("expected both jobs attempted, got %d", repo.completeSeen)
	}
	if len(releaser.calls) != 2 {
		t.Fatalf("expected a release attempt per job, got %d", len(releaser.calls))
	}
}
