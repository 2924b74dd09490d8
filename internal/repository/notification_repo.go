package repository

import (
	"context"
	"time"

	"github.com/valzamustafa/TourismHub-sub000/internal/models"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(
	ctx context.Context,
	userID int64,
	title string,
	message string,
	kind models.NotificationKind,
	relatedID *int64,
) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, title, message, kind, related_id, is_read)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id, user_id, title, message, kind, related_id, is_read, created_at
	`

	var notification models.Notification
	err := r.db.QueryRow(ctx, query, userID, title, message, int(kind), relatedID).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Title,
		&notification.Message,
		&notification.Kind,
		&notification.RelatedID,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &notification, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := `
		SELECT id, user_id, title, message, kind, related_id, is_read, created_at
		FROM notifications
		WHERE id = $1
	`

	var notification models.Notification
	err := r.db.QueryRow(ctx, query, id).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Title,
		&notification.Message,
		&notification.Kind,
		&notification.RelatedID,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &notification, nil
}

// MarkRead flips is_read once; repeating the call matches zero rows, which is
// still success, so the transition stays idempotent and monotonic.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1
		  AND is_read = FALSE
	`, id)
	return err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1
		  AND is_read = FALSE
	`, userID)
	return err
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1
		  AND is_read = FALSE
	`, userID).Scan(&count)
	return count, err
}

// List pages the user's notifications newest first, with unread records
// ordered ahead of read ones so fresh items stay visible on revisit.
func (r *NotificationRepository) List(
	ctx context.Context,
	userID int64,
	limit int,
	offset int,
) ([]models.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, title, message, kind, related_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY is_read ASC, created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Title,
			&notification.Message,
			&notification.Kind,
			&notification.RelatedID,
			&notification.IsRead,
			&notification.CreatedAt,
		); err != nil {
			return nil, 0, err
		}

		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *NotificationRepository) DeleteOne(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE id = $1
	`, id)
	return err
}

func (r *NotificationRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE user_id = $1
	`, userID)
	return err
}

// DeleteOldRead removes already-read notifications created before the cutoff.
// Unread records are never swept.
func (r *NotificationRepository) DeleteOldRead(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE is_read = TRUE
		  AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
