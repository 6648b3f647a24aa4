package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/quiz"
	"github.com/trezcool/academia/core/user"
)

type tables struct {
	users         map[string]user.User
	courses       map[string]course.Course
	enrollments   map[string]course.Enrollment
	quizzes       map[string]quiz.Quiz
	attempts      map[string]quiz.Attempt
	answers       map[string]quiz.UserAnswer
	notifications map[string]notification.Notification
}

func newTables() tables {
	return tables{
		users:         make(map[string]user.User),
		courses:       make(map[string]course.Course),
		enrollments:   make(map[string]course.Enrollment),
		quizzes:       make(map[string]quiz.Quiz),
		attempts:      make(map[string]quiz.Attempt),
		answers:       make(map[string]quiz.UserAnswer),
		notifications: make(map[string]notification.Notification),
	}
}

func (t tables) copy() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = v
	}
	for k, v := range t.answers {
		c.answers[k] = v
	}
	for k, v := range t.notifications {
		c.notifications[k] = v
	}
	return c
}

// DB is an in-memory database, used for tests & local development.
// Transactions are serialized and rolled back by restoring a snapshot of every table.
type DB struct {
	mu   sync.RWMutex // guards data
	txMu sync.Mutex   // one transaction at a time
	data tables
}

var _ core.TxRunner = (*DB)(nil)

func NewDB() *DB {
	return &DB{data: newTables()}
}

func (db *DB) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.RLock()
	snapshot := db.data.copy()
	db.mu.RUnlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.data = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Reset drops all data.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data = newTables()
}

func newID() string {
	return uuid.New().String()
}
