package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valzamustafa/TourismHub-sub000/internal/models"
)

type notificationStore interface {
	Create(ctx context.Context, userID int64, title string, message string, kind models.NotificationKind, relatedID *int64) (*models.Notification, error)
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	UnreadCount(ctx context.Context, userID int64) (int, error)
	List(ctx context.Context, userID int64, limit int, offset int) ([]models.Notification, int, error)
	DeleteOne(ctx context.Context, id int64) error
	DeleteAllForUser(ctx context.Context, userID int64) error
	DeleteOldRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationService is the single source of truth for notification
// existence and read state. Domain producers (booking confirmations, payment
// receipts, chat) call Create; the live push is best-effort on top of the
// persisted record.
type NotificationService struct {
	store      notificationStore
	dispatcher pushDispatcher
}

func NewNotificationService(store notificationStore, dispatcher pushDispatcher) *NotificationService {
	return &NotificationService{
		store:      store,
		dispatcher: dispatcher,
	}
}

type CreateNotificationInput struct {
	UserID    int64
	Title     string
	Message   string
	Kind      models.NotificationKind
	RelatedID *int64
}

func (s *NotificationService) Create(
	ctx context.Context,
	input CreateNotificationInput,
) (*models.Notification, error) {
	if input.UserID <= 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	if title == "" || message == "" {
		return nil, ErrInvalidInput
	}

	kind := input.Kind
	if !kind.Valid() {
		kind = models.KindSystem
	}

	notification, err := s.store.Create(ctx, input.UserID, title, message, kind, input.RelatedID)
	if err != nil {
		return nil, err
	}

	// Dispatch happens strictly after the write commits and never fails the
	// create; a user with no open channels picks the record up on next fetch.
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(notification.UserID, notificationPayload(notification))
	}

	return notification, nil
}

// MarkRead is idempotent: marking an already-read notification is a no-op
// success, and the flag never transitions back to unread.
func (s *NotificationService) MarkRead(ctx context.Context, actorID int64, notificationID int64) error {
	if actorID <= 0 || notificationID <= 0 {
		return ErrInvalidInput
	}

	notification, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != actorID {
		return ErrForbidden
	}
	if notification.IsRead {
		return nil
	}

	return s.store.MarkRead(ctx, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actorID int64) error {
	if actorID <= 0 {
		return ErrInvalidInput
	}

	return s.store.MarkAllRead(ctx, actorID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, actorID int64) (int, error) {
	if actorID <= 0 {
		return 0, ErrInvalidInput
	}

	return s.store.UnreadCount(ctx, actorID)
}

func (s *NotificationService) List(
	ctx context.Context,
	actorID int64,
	page int,
	limit int,
) ([]models.Notification, int, error) {
	if actorID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	return s.store.List(ctx, actorID, limit, (page-1)*limit)
}

func (s *NotificationService) DeleteOne(ctx context.Context, actorID int64, notificationID int64) error {
	if actorID <= 0 || notificationID <= 0 {
		return ErrInvalidInput
	}

	notification, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != actorID {
		return ErrForbidden
	}

	return s.store.DeleteOne(ctx, notificationID)
}

func (s *NotificationService) DeleteAll(ctx context.Context, actorID int64) error {
	if actorID <= 0 {
		return ErrInvalidInput
	}

	return s.store.DeleteAllForUser(ctx, actorID)
}

// RunRetentionSweep deletes read notifications older than maxAge on each
// tick until ctx is cancelled. Intended to run as a goroutine from main.
func (s *NotificationService) RunRetentionSweep(
	ctx context.Context,
	interval time.Duration,
	maxAge time.Duration,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.DeleteOldRead(ctx, time.Now().Add(-maxAge))
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("notification retention sweep: %v", err)
				}
				continue
			}
			if removed > 0 {
				log.Printf("notification retention sweep removed %d records", removed)
			}
		}
	}
}

// IsNotFound reports whether err is the store's missing-row error. Handlers
// use it to map lookups to 404s.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
