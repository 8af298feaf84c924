package reschedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/internal/notifications"
	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
)

type fakeRescheduleRepo struct {
	requests map[uuid.UUID]*models.RescheduleRequest
	jobs     map[uuid.UUID]*models.Job
}

func newFakeRescheduleRepo() *fakeRescheduleRepo {
	return &fakeRescheduleRepo{
		requests: map[uuid.UUID]*models.RescheduleRequest{},
		jobs:     map[uuid.UUID]*models.Job{},
	}
}

func (f *fakeRescheduleRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRescheduleRepo) Create(ctx context.Context, request *models.RescheduleRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	copied := *request
	f.requests[request.ID] = &copied
	return nil
}

func (f *fakeRescheduleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.RescheduleRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (f *fakeRescheduleRepo) FindPendingByJobID(ctx context.Context, jobID uuid.UUID) (*models.RescheduleRequest, error) {
	for _, request := range f.requests {
		if request.JobID == jobID && request.Status == enums.RescheduleStatusPending {
			copied := *request
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRescheduleRepo) FindJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (f *fakeRescheduleRepo) Accept(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error) {
	request := f.requests[requestID]
	if request == nil || request.Status != enums.RescheduleStatusPending {
		return false, nil
	}
	request.Status = enums.RescheduleStatusAccepted
	request.RespondedAt = &now
	return true, nil
}

func (f *fakeRescheduleRepo) Expire(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error) {
	request := f.requests[requestID]
	if request == nil || request.Status != enums.RescheduleStatusPending || !request.RespondBy.Before(now) {
		return false, nil
	}
	request.Status = enums.RescheduleStatusExpired
	return true, nil
}

func (f *fakeRescheduleRepo) SetJobSchedule(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) error {
	job := f.jobs[jobID]
	job.ScheduledAt = &scheduledAt
	return nil
}

func (f *fakeRescheduleRepo) ReturnJobToPool(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) (bool, error) {
	job := f.jobs[jobID]
	if job.Status == enums.JobStatusCompleted || job.Status == enums.JobStatusCancelled {
		return false, nil
	}
	job.ProviderID = nil
	job.Status = enums.JobStatusSearching
	job.ScheduledAt = &scheduledAt
	return true, nil
}

func (f *fakeRescheduleRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.RescheduleRequest, error) {
	var out []models.RescheduleRequest
	for _, request := range f.requests {
		if request.Status == enums.RescheduleStatusPending && request.RespondBy.Before(now) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRescheduleRepo) ListNearDeadline(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.RescheduleRequest, error) {
	var out []models.RescheduleRequest
	for _, request := range f.requests {
		if request.Status != enums.RescheduleStatusPending || request.WarningSentAt != nil {
			continue
		}
		if request.RespondBy.After(now) && !request.RespondBy.After(now.Add(window)) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRescheduleRepo) MarkWarningSent(ctx context.Context, requestID uuid.UUID, now time.Time) (bool, error) {
	request := f.requests[requestID]
	if request == nil || request.WarningSentAt != nil {
		return false, nil
	}
	request.WarningSentAt = &now
	return true, nil
}

type dedupNotifier struct {
	inputs    []notifications.NotifyInput
	hasRecent bool
}

func (d *dedupNotifier) Notify(ctx context.Context, input notifications.NotifyInput) error {
	d.inputs = append(d.inputs, input)
	return nil
}

func (d *dedupNotifier) HasRecent(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, window time.Duration) (bool, error) {
	return d.hasRecent, nil
}

func (d *dedupNotifier) countByType(t enums.NotificationType) int {
	n := 0
	for _, input := range d.inputs {
		if input.Type == t {
			n++
		}
	}
	return n
}

func rescheduleNow() time.Time {
	return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
}

func newRescheduleService(t *testing.T, repo *fakeRescheduleRepo, notify *dedupNotifier) Service {
	t.Helper()
	params := ServiceParams{
		Repo:           repo,
		ResponseWindow: 24 * time.Hour,
		WarningWindow:  35 * time.Minute,
		Now:            rescheduleNow,
	}
	if notify != nil {
		params.Notify = notify
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func seedScheduledJob(repo *fakeRescheduleRepo) *models.Job {
	providerID := uuid.New()
	scheduled := rescheduleNow().Add(72 * time.Hour)
	job := &models.Job{
		ID:          uuid.New(),
		ClientID:    uuid.New(),
		ProviderID:  &providerID,
		Status:      enums.JobStatusConfirmed,
		ScheduledAt: &scheduled,
	}
	repo.jobs[job.ID] = job
	return job
}

func TestCreate_SetsDeadlineAndNotifiesProvider(t *testing.T) {
	repo := newFakeRescheduleRepo()
	notify := &dedupNotifier{}
	svc := newRescheduleService(t, repo, notify)
	job := seedScheduledJob(repo)

	requested := rescheduleNow().Add(96 * time.Hour)
	request, err := svc.Create(context.Background(), Actor{UserID: job.ClientID, Role: enums.UserRoleClient}, job.ID, requested)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if request.Status != enums.RescheduleStatusPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if !request.RespondBy.Equal(rescheduleNow().Add(24 * time.Hour)) {
		t.Fatalf("unexpected respond_by %s", request.RespondBy)
	}
	if !request.OriginalTime.Equal(*job.ScheduledAt) {
		t.Fatal("original time must come from the job")
	}
	if len(notify.inputs) != 1 || notify.inputs[0].UserID != *job.ProviderID {
		t.Fatalf("expected one provider notification, got %+v", notify.inputs)
	}
}

func TestCreate_RejectsSecondPendingRequest(t *testing.T) {
	repo := newFakeRescheduleRepo()
	svc := newRescheduleService(t, repo, nil)
	job := seedScheduledJob(repo)
	actor := Actor{UserID: job.ClientID, Role: enums.UserRoleClient}
	requested := rescheduleNow().Add(96 * time.Hour)

	if _, err := svc.Create(context.Background(), actor, job.ID, requested); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.Create(context.Background(), actor, job.ID, requested.Add(time.Hour))
	if got := pkgerrors.As(err); got == nil || got.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAccept_MovesJobSchedule(t *testing.T) {
	repo := newFakeRescheduleRepo()
	notify := &dedupNotifier{}
	svc := newRescheduleService(t, repo, notify)
	job := seedScheduledJob(repo)

	requested := rescheduleNow().Add(96 * time.Hour)
	request, err := svc.Create(context.Background(), Actor{UserID: job.ClientID, Role: enums.UserRoleClient}, job.ID, requested)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.Accept(context.Background(), Actor{UserID: *job.ProviderID, Role: enums.UserRoleProvider}, request.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if repo.requests[request.ID].Status != enums.RescheduleStatusAccepted {
		t.Fatalf("expected accepted, got %s", repo.requests[request.ID].Status)
	}
	if !repo.jobs[job.ID].ScheduledAt.Equal(requested) {
		t.Fatalf("job schedule not updated, got %s", repo.jobs[job.ID].ScheduledAt)
	}
	if notify.countByType(enums.NotificationTypeRescheduleAccepted) != 1 {
		t.Fatal("expected client acceptance notification")
	}

	err = svc.Accept(context.Background(), Actor{UserID: *job.ProviderID, Role: enums.UserRoleProvider}, request.ID)
	if got := pkgerrors.As(err); got == nil || got.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on repeat accept, got %v", err)
	}
}

func TestAccept_OnlyAssignedProvider(t *testing.T) {
	repo := newFakeRescheduleRepo()
	svc := newRescheduleService(t, repo, nil)
	job := seedScheduledJob(repo)
	request, err := svc.Create(context.Background(), Actor{UserID: job.ClientID, Role: enums.UserRoleClient}, job.ID, rescheduleNow().Add(96*time.Hour))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = svc.Accept(context.Background(), Actor{UserID: uuid.New(), Role: enums.UserRoleProvider}, request.ID)
	if got := pkgerrors.As(err); got == nil || got.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestExpireOverdue_ReturnsJobToPool(t *testing.T) {
	repo := newFakeRescheduleRepo()
	notify := &dedupNotifier{}
	svc := newRescheduleService(t, repo, notify)
	job := seedScheduledJob(repo)

	requested := rescheduleNow().Add(96 * time.Hour)
	overdue := &models.RescheduleRequest{
		ID:            uuid.New(),
		JobID:         job.ID,
		ProviderID:    *job.ProviderID,
		OriginalTime:  *job.ScheduledAt,
		RequestedTime: requested,
		Status:        enums.RescheduleStatusPending,
		RespondBy:     rescheduleNow().Add(-time.Minute),
	}
	repo.requests[overdue.ID] = overdue

	count, err := svc.ExpireOverdue(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one expiry, got %d", count)
	}

	stored := repo.jobs[job.ID]
	if stored.ProviderID != nil {
		t.Fatal("expected cleared provider")
	}
	if stored.Status != enums.JobStatusSearching {
		t.Fatalf("expected searching, got %s", stored.Status)
	}
	if !stored.ScheduledAt.Equal(requested) {
		t.Fatal("job must carry the requested time back to the pool")
	}
	if repo.requests[overdue.ID].Status != enums.RescheduleStatusExpired {
		t.Fatalf("expected expired, got %s", repo.requests[overdue.ID].Status)
	}
	if notify.countByType(enums.NotificationTypeRescheduleExpired) != 2 {
		t.Fatalf("expected both parties notified, got %d", notify.countByType(enums.NotificationTypeRescheduleExpired))
	}

	count, err = svc.ExpireOverdue(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep must be a no-op, got %d", count)
	}
}

func TestWarnNearDeadline_OncePerRequest(t *testing.T) {
	repo := newFakeRescheduleRepo()
	notify := &dedupNotifier{}
	svc := newRescheduleService(t, repo, notify)
	job := seedScheduledJob(repo)

	nearDeadline := &models.RescheduleRequest{
		ID:            uuid.New(),
		JobID:         job.ID,
		ProviderID:    *job.ProviderID,
		OriginalTime:  *job.ScheduledAt,
		RequestedTime: rescheduleNow().Add(96 * time.Hour),
		Status:        enums.RescheduleStatusPending,
		RespondBy:     rescheduleNow().Add(20 * time.Minute),
	}
	repo.requests[nearDeadline.ID] = nearDeadline

	count, err := svc.WarnNearDeadline(context.Background())
	if err != nil {
		t.Fatalf("warning sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one warning, got %d", count)
	}
	if repo.requests[nearDeadline.ID].WarningSentAt == nil {
		t.Fatal("expected warning_sent_at")
	}

	count, err = svc.WarnNearDeadline(context.Background())
	if err != nil {
		t.Fatalf("second warning sweep failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep must not warn again, got %d", count)
	}
	if notify.countByType(enums.NotificationTypeRescheduleWarning) != 1 {
		t.Fatalf("expected one warning notification, got %d", notify.countByType(enums.NotificationTypeRescheduleWarning))
	}
}

func TestWarnNearDeadline_DedupedByRecentNotification(t *testing.T) {
	repo := newFakeRescheduleRepo()
	notify := &dedupNotifier{hasRecent: true}
	svc := newRescheduleService(t, repo, notify)
	job := seedScheduledJob(repo)

	repo.requests[uuid.New()] = &models.RescheduleRequest{
		ID:            uuid.New(),
		JobID:         job.ID,
		ProviderID:    *job.ProviderID,
		OriginalTime:  *job.ScheduledAt,
		RequestedTime: rescheduleNow().Add(96 * time.Hour),
		Status:        enums.RescheduleStatusPending,
		RespondBy:     rescheduleNow().Add(20 * time.Minute),
	}

	count, err := svc.WarnNearDeadline(context.Background())
	if err != nil {
		t.Fatalf("warning sweep failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("recent notification must suppress the warning, got %d", count)
	}
	if notify.countByType(enums.NotificationTypeRescheduleWarning) != 0 {
		t.Fatal("expected no warning notification")
	}
}
