package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valzamustafa/TourismHub-sub000/internal/models"
)

type stubNotificationStore struct {
	mu sync.Mutex

	createResult *models.Notification
	createErr    error
	getResult    *models.Notification
	getErr       error
	listResult   []models.Notification
	listTotal    int
	unreadCount  int
	sweepRemoved int64
	sweepErr     error

	lastCreateUserID int64
	lastCreateKind   models.NotificationKind
	lastListLimit    int
	lastListOffset   int
	markReadCalls    int
	markAllCalls     int
	deleteOneCalls   int
	deleteAllCalls   int
	sweepCalls       int
	lastSweepCutoff  time.Time
}

func (s *stubNotificationStore) Create(_ context.Context, userID int64, _ string, _ string, kind models.NotificationKind, _ *int64) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCreateUserID = userID
	s.lastCreateKind = kind
	return s.createResult, s.createErr
}

func (s *stubNotificationStore) GetByID(_ context.Context, _ int64) (*models.Notification, error) {
	return s.getResult, s.getErr
}

func (s *stubNotificationStore) MarkRead(_ context.Context, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markReadCalls++
	return nil
}

func (s *stubNotificationStore) MarkAllRead(_ context.Context, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markAllCalls++
	return nil
}

func (s *stubNotificationStore) UnreadCount(_ context.Context, _ int64) (int, error) {
	return s.unreadCount, nil
}

func (s *stubNotificationStore) List(_ context.Context, _ int64, limit int, offset int) ([]models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastListLimit = limit
	s.lastListOffset = offset
	return s.listResult, s.listTotal, nil
}

func (s *stubNotificationStore) DeleteOne(_ context.Context, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteOneCalls++
	return nil
}

func (s *stubNotificationStore) DeleteAllForUser(_ context.Context, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteAllCalls++
	return nil
}

func (s *stubNotificationStore) DeleteOldRead(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepCalls++
	s.lastSweepCutoff = cutoff
	return s.sweepRemoved, s.sweepErr
}

type recordedDispatch struct {
	userID  int64
	payload any
}

type stubDispatcher struct {
	mu         sync.Mutex
	dispatches []recordedDispatch
}

func (d *stubDispatcher) Dispatch(userID int64, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatches = append(d.dispatches, recordedDispatch{userID: userID, payload: payload})
}

func (d *stubDispatcher) recorded() []recordedDispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedDispatch(nil), d.dispatches...)
}

func TestNotificationCreatePersistsThenDispatches(t *testing.T) {
	created := &models.Notification{
		ID:        5,
		UserID:    42,
		Title:     "Booking confirmed",
		Message:   "Your kayak tour is booked",
		Kind:      models.KindBooking,
		CreatedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
	store := &stubNotificationStore{createResult: created}
	dispatcher := &stubDispatcher{}
	service := NewNotificationService(store, dispatcher)

	notification, err := service.Create(context.Background(), CreateNotificationInput{
		UserID:  42,
		Title:   "Booking confirmed",
		Message: "Your kayak tour is booked",
		Kind:    models.KindBooking,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if notification.ID != 5 {
		t.Fatalf("expected notification id 5, got %d", notification.ID)
	}

	dispatches := dispatcher.recorded()
	if len(dispatches) != 1 || dispatches[0].userID != 42 {
		t.Fatalf("expected one dispatch to user 42, got %+v", dispatches)
	}
	payload, ok := dispatches[0].payload.(NotificationPayload)
	if !ok {
		t.Fatalf("expected NotificationPayload, got %T", dispatches[0].payload)
	}
	if payload.ID != 5 || payload.Kind != models.KindBooking {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestNotificationCreateStoreFailureSkipsDispatch(t *testing.T) {
	store := &stubNotificationStore{createErr: errors.New("insert failed")}
	dispatcher := &stubDispatcher{}
	service := NewNotificationService(store, dispatcher)

	_, err := service.Create(context.Background(), CreateNotificationInput{
		UserID:  42,
		Title:   "t",
		Message: "m",
		Kind:    models.KindSystem,
	})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if len(dispatcher.recorded()) != 0 {
		t.Fatal("dispatch must never happen without a durable record")
	}
}

func TestNotificationCreateClampsUnknownKind(t *testing.T) {
	store := &stubNotificationStore{createResult: &models.Notification{ID: 1, UserID: 2}}
	service := NewNotificationService(store, nil)

	if _, err := service.Create(context.Background(), CreateNotificationInput{
		UserID:  2,
		Title:   "t",
		Message: "m",
		Kind:    models.NotificationKind(77),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if store.lastCreateKind != models.KindSystem {
		t.Fatalf("expected unknown kind stored as system, got %v", store.lastCreateKind)
	}
}

func TestNotificationCreateRejectsInvalidInput(t *testing.T) {
	service := NewNotificationService(&stubNotificationStore{}, nil)

	cases := []CreateNotificationInput{
		{UserID: 0, Title: "t", Message: "m"},
		{UserID: 1, Title: "  ", Message: "m"},
		{UserID: 1, Title: "t", Message: ""},
	}
	for _, input := range cases {
		if _, err := service.Create(context.Background(), input); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Create(%+v) error = %v, want ErrInvalidInput", input, err)
		}
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	store := &stubNotificationStore{
		getResult: &models.Notification{ID: 9, UserID: 42, IsRead: false},
	}
	service := NewNotificationService(store, nil)

	if err := service.MarkRead(context.Background(), 42, 9); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if store.markReadCalls != 1 {
		t.Fatalf("expected one store update, got %d", store.markReadCalls)
	}

	// Already read: a repeat call is a no-op success, never a revert.
	store.getResult = &models.Notification{ID: 9, UserID: 42, IsRead: true}
	for i := 0; i < 3; i++ {
		if err := service.MarkRead(context.Background(), 42, 9); err != nil {
			t.Fatalf("repeat MarkRead: %v", err)
		}
	}
	if store.markReadCalls != 1 {
		t.Fatalf("expected no further store updates, got %d", store.markReadCalls)
	}
}

func TestMarkReadEnforcesOwnership(t *testing.T) {
	store := &stubNotificationStore{
		getResult: &models.Notification{ID: 9, UserID: 42},
	}
	service := NewNotificationService(store, nil)

	if err := service.MarkRead(context.Background(), 7, 9); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	store.getResult = nil
	store.getErr = pgx.ErrNoRows
	err := service.MarkRead(context.Background(), 7, 9)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListTranslatesPageToOffset(t *testing.T) {
	store := &stubNotificationStore{}
	service := NewNotificationService(store, nil)

	if _, _, err := service.List(context.Background(), 42, 3, 20); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastListLimit != 20 || store.lastListOffset != 40 {
		t.Fatalf("expected limit 20 offset 40, got %d %d", store.lastListLimit, store.lastListOffset)
	}
}

func TestRetentionSweepRunsUntilCancelled(t *testing.T) {
	store := &stubNotificationStore{sweepRemoved: 2}
	service := NewNotificationService(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		service.RunRetentionSweep(ctx, 5*time.Millisecond, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		calls := store.sweepCalls
		store.mu.Unlock()
		if calls >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweep never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not stop on cancellation")
	}

	store.mu.Lock()
	cutoff := store.lastSweepCutoff
	store.mu.Unlock()
	if time.Since(cutoff) < 55*time.Minute {
		t.Fatalf("cutoff should trail now by the max age, got %v", cutoff)
	}
}
