package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

var notificationColumns = []string{
	"id", "recipient_id", "event_id", "kind", "task_id", "task_title", "is_unread", "created_at",
}

// NotificationRepository stores per-recipient notification records.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Event.EventID,
		&n.Event.Kind,
		&n.Event.TaskID,
		&n.Event.TaskTitle,
		&n.IsUnread,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, domain.StoreError("scan notification", err)
	}
	return &n, nil
}

// Create inserts an unread notification for the recipient. Creating the same
// (recipient, event) pair again returns the existing record.
func (r *NotificationRepository) Create(ctx context.Context, recipientID string, ref domain.EventRef) (*domain.Notification, error) {
	if recipientID == "" {
		return nil, domain.ErrMissingRecipient
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	query, args, err := psql.
		Insert("notifications").
		Columns("recipient_id", "event_id", "kind", "task_id", "task_title").
		Values(recipientID, ref.EventID, ref.Kind, ref.TaskID, ref.TaskTitle).
		Suffix("ON CONFLICT (recipient_id, event_id) DO NOTHING RETURNING " + strings.Join(notificationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build Create query for notification", err)
	}

	n, err := scanNotification(r.pool.QueryRow(ctx, query, args...))
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, domain.ErrNotificationNotFound):
		// Conflict: this recipient already has a record for the event.
		return r.getByEvent(ctx, recipientID, ref.EventID)
	default:
		return nil, classifyWriteError(err, recipientID)
	}
}

func (r *NotificationRepository) getByEvent(ctx context.Context, recipientID, eventID string) (*domain.Notification, error) {
	query, args, err := psql.
		Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID, "event_id": eventID}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build getByEvent query for notification", err)
	}

	return scanNotification(r.pool.QueryRow(ctx, query, args...))
}

// ListForRecipient returns every notification of the recipient, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string) ([]*domain.Notification, error) {
	if recipientID == "" {
		return nil, domain.ErrMissingRecipient
	}

	query, args, err := psql.
		Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build ListForRecipient query", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyWriteError(domain.StoreError("query notifications", err), recipientID)
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate notification rows", err)
	}

	return notifications, nil
}

// CountUnread returns how many of the recipient's notifications are unread.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	if recipientID == "" {
		return 0, domain.ErrMissingRecipient
	}

	query, args, err := psql.
		Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID, "is_unread": true}).
		ToSql()
	if err != nil {
		return 0, domain.StoreError("build CountUnread query", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, classifyWriteError(domain.StoreError("count unread notifications", err), recipientID)
	}
	return count, nil
}

// MarkAllRead clears the unread flag on every notification of the recipient.
// Calling it again is a no-op.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	if recipientID == "" {
		return domain.ErrMissingRecipient
	}

	query, args, err := psql.
		Update("notifications").
		Set("is_unread", false).
		Where(sq.Eq{"recipient_id": recipientID, "is_unread": true}).
		ToSql()
	if err != nil {
		return domain.StoreError("build MarkAllRead query", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return classifyWriteError(domain.StoreError("mark notifications read", err), recipientID)
	}
	return nil
}

// MarkOneRead clears the unread flag of a single notification owned by
// requesterID. A record owned by someone else is left untouched.
func (r *NotificationRepository) MarkOneRead(ctx context.Context, notificationID, requesterID string) error {
	if requesterID == "" {
		return domain.ErrMissingRecipient
	}

	query, args, err := psql.
		Update("notifications").
		Set("is_unread", false).
		Where(sq.Eq{"id": notificationID, "recipient_id": requesterID}).
		ToSql()
	if err != nil {
		return domain.StoreError("build MarkOneRead query", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return classifyWriteError(domain.StoreError("mark notification read", err), requesterID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: tell a missing record apart from a foreign one.
	n, err := r.getByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if !n.IsOwnedBy(requesterID) {
		return fmt.Errorf("%w: notification %s", domain.ErrNotNotificationOwner, notificationID)
	}
	return nil
}

func (r *NotificationRepository) getByID(ctx context.Context, notificationID string) (*domain.Notification, error) {
	query, args, err := psql.
		Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"id": notificationID}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build getByID query for notification", err)
	}

	return scanNotification(r.pool.QueryRow(ctx, query, args...))
}

// classifyWriteError turns constraint and input errors into validation
// errors and leaves everything else as a store error.
func classifyWriteError(err error, recipientID string) error {
	switch code, message := pgErrorCode(err); code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: recipient %s does not exist", domain.ErrValidation, recipientID)
	case pgInvalidTextValue:
		return fmt.Errorf("%w: %s", domain.ErrValidation, message)
	}
	if errors.Is(err, domain.ErrTransientStore) {
		return err
	}
	return domain.StoreError("write notification", err)
}
