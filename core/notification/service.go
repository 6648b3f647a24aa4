package notification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		QueryNotifications(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Notification, error)
		// MarkRead flags the user's notification as read. Returns ErrNotFound if the user does not own it.
		MarkRead(ctx context.Context, userID, id string, exec ...core.DBExecutor) (Notification, error)
	}

	Service interface {
		Query(ctx context.Context, filter QueryFilter) ([]Notification, error)
		MarkRead(ctx context.Context, userID, id string) (Notification, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, filter)
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	return svc.repo.MarkRead(ctx, userID, id)
}
