package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.NewDB()
	users := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewNotificationRepository(db)
	svc := notification.NewService(repo)

	alice := testutil.CreateUser(t, users, "Alice", "alice", "alice@example.com", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, users, "Bob", "bobby", "bob@example.com", "", []string{user.RoleStudent}, true)

	now := time.Now().UTC()
	older, err := repo.CreateNotification(ctx, notification.Notification{UserID: alice.ID, Type: notification.TypeQuizPassed, Title: "1", CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	newer, err := repo.CreateNotification(ctx, notification.Notification{UserID: alice.ID, Type: notification.TypeQuizPassed, Title: "2", CreatedAt: now})
	require.NoError(t, err)

	notifs, err := svc.Query(ctx, notification.QueryFilter{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, notifs, 2)
	assert.Equal(t, newer.ID, notifs[0].ID, "latest first")

	_, err = svc.MarkRead(ctx, bob.ID, older.ID)
	assert.Equal(t, notification.ErrNotFound, errors.Cause(err), "users can only read their own notifications")

	read, err := svc.MarkRead(ctx, alice.ID, older.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	notifs, err = svc.Query(ctx, notification.QueryFilter{UserID: alice.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, newer.ID, notifs[0].ID)

	notifs, err = svc.Query(ctx, notification.QueryFilter{UserID: bob.ID})
	require.NoError(t, err)
	assert.Empty(t, notifs)
}
