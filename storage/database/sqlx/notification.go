package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Data      []byte    `db:"data"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) notification() (notification.Notification, error) {
	n := notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &n.Data); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding notification data")
		}
	}
	return n, nil
}

type notificationRepository struct {
	base
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) notification.Repository {
	return &notificationRepository{base{exec: exec}}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	n.ID = uuid.New().String()
	if n.Data == nil {
		n.Data = map[string]interface{}{}
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "encoding notification data")
	}

	_, err = repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO notification (id, user_id, type, title, message, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, string(data), n.IsRead, n.CreatedAt.UTC(),
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) scanAll(rows []notificationRow) ([]notification.Notification, error) {
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.notification()
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter, exec ...core.DBExecutor) ([]notification.Notification, error) {
	var rows []notificationRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `
		SELECT * FROM notification
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC`, filter.UserID, filter.UnreadOnly)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return repo.scanAll(rows)
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID, id string, exec ...core.DBExecutor) (notification.Notification, error) {
	var rows []notificationRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `
		UPDATE notification SET is_read = true
		WHERE id = $1 AND user_id = $2
		RETURNING *`, id, userID)
	if err != nil {
		return notification.Notification{}, trapNotFound(err, notification.ErrNotFound, "marking notification read")
	}
	if len(rows) == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return rows[0].notification()
}
