package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification, _ ...core.DBExecutor) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n.ID = newID()
	repo.db.data.notifications[n.ID] = n
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter, _ ...core.DBExecutor) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.data.notifications {
		if filter.UserID != "" && n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		notifs = append(notifs, n)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID, id string, _ ...core.DBExecutor) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.data.notifications[id]
	if !ok || n.UserID != userID {
		return notification.Notification{}, notification.ErrNotFound
	}
	n.IsRead = true
	repo.db.data.notifications[id] = n
	return n, nil
}
