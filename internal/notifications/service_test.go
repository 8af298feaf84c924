package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	paginationpkg "github.com/chamby-mx/chamby-backend/pkg/pagination"
)

type fakeRepository struct {
	created       []*models.Notification
	createErr     error
	adminIDs      []uuid.UUID
	hasRecent     bool
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeRepository) HasRecent(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, since time.Time) (bool, error) {
	return f.hasRecent, nil
}

func (f *fakeRepository) ListAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	return f.adminIDs, nil
}

func (f *fakeRepository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestService_NotifyCreatesRow(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(t, repo)

	userID := uuid.New()
	err := svc.Notify(context.Background(), NotifyInput{
		UserID:  userID,
		Type:    enums.NotificationTypeInvoicePaid,
		Title:   "Factura pagada",
		Message: "El cliente pagó tu factura.",
		Data:    map[string]any{"invoice_id": uuid.New().String()},
	})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.UserID != userID {
		t.Fatalf("unexpected user %s", row.UserID)
	}
	if row.Type != enums.NotificationTypeInvoicePaid {
		t.Fatalf("unexpected type %s", row.Type)
	}
	if len(row.Data) == 0 {
		t.Fatal("expected encoded data payload")
	}
}

func TestService_NotifyRejectsMissingUser(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})
	err := svc.Notify(context.Background(), NotifyInput{Title: "hi"})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_NotifyAdminsFansOut(t *testing.T) {
	admins := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &fakeRepository{adminIDs: admins}
	svc := newServiceWithRepo(t, repo)

	err := svc.NotifyAdmins(context.Background(), NotifyInput{
		Type:    enums.NotificationTypeVisitEscalation,
		Title:   "Visita escalada",
		Message: "Un cliente no respondió a la confirmación de visita.",
	})
	if err != nil {
		t.Fatalf("notify admins failed: %v", err)
	}
	if len(repo.created) != len(admins) {
		t.Fatalf("expected %d rows, got %d", len(admins), len(repo.created))
	}
	seen := map[uuid.UUID]bool{}
	for _, row := range repo.created {
		seen[row.UserID] = true
	}
	for _, id := range admins {
		if !seen[id] {
			t.Fatalf("admin %s missed", id)
		}
	}
}

func TestService_ListNotifications(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
			if params.Limit != paginationpkg.LimitWithBuffer(1) {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			return []models.Notification{first}, &paginationpkg.Cursor{CreatedAt: second.CreatedAt, ID: second.ID}, nil
		},
	}

	svc := newServiceWithRepo(t, repo)
	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected cursor for next page")
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded.ID != second.ID {
		t.Fatalf("cursor should point at the next row")
	}
}

func TestService_ListRejectsBadCursor(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "not-base64!!"})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)
	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_MarkAllReadPropagatesRepoError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	svc := newServiceWithRepo(t, repo)
	_, err := svc.MarkAllRead(context.Background(), uuid.New())
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
