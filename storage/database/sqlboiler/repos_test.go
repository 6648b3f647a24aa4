package boiledrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/quiz"
	"github.com/trezcool/academia/core/user"
	boiledrepos "github.com/trezcool/academia/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	testutil "github.com/trezcool/academia/tests"
)

const testPwd = "Zq7#vT9!mw"

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := boiledrepos.NewUserRepository(testutil.PrepareDB(t))

	usr := testutil.CreateUser(t, repo, "Jane", "jane", "jane@test.cd", testPwd, []string{user.RoleTeacher, user.RoleAdmin}, true)

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "jane@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.ElementsMatch(t, []string{user.RoleTeacher, user.RoleAdmin}, got.Roles)
	assert.NoError(t, got.CheckPassword(testPwd))
	assert.True(t, got.LastLogin.IsZero())

	_, err = repo.GetUser(ctx, user.GetFilter{Username: "lol"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	err = repo.CheckUsernameUniqueness(ctx, "jane", "", nil)
	assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))
	err = repo.CheckUsernameUniqueness(ctx, "", "jane@test.cd", nil)
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "jane", "jane@test.cd", []user.User{usr}))

	dup := user.User{Name: "Other", Username: "jane", Email: "other@test.cd", PasswordHash: usr.PasswordHash}
	_, err = repo.CreateUser(ctx, dup)
	assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))

	require.NoError(t, repo.AddPoints(ctx, usr.ID, 7))
	require.NoError(t, repo.AddPoints(ctx, usr.ID, 3))
	got, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, got.Points)

	got.Name = "Jane Doe"
	got.LastLogin = time.Now().UTC()
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, user.GetFilter{Username: "jane"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.False(t, got.LastLogin.IsZero())
	assert.Equal(t, 10, got.Points)
}

func TestStatsRepository_QuizStats(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	users := boiledrepos.NewUserRepository(db)
	courses := sqlxrepos.NewCourseRepository(db)
	quizzes := sqlxrepos.NewQuizRepository(db)
	stats := boiledrepos.NewStatsRepository(db)

	teacher := testutil.CreateUser(t, users, "Teacher", "teacher", "teacher@example.com", testPwd, []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, courses, teacher, "Go 101")

	nq := testutil.SampleQuiz(60, 0)
	qz := quiz.Quiz{CourseID: crs.ID, Title: nq.Title, PassingScore: nq.PassingScore, CreatedAt: time.Now().UTC()}
	qz.UpdatedAt = qz.CreatedAt
	for pos, q := range nq.Questions {
		qz.Questions = append(qz.Questions, quiz.Question{ID: uuid.New().String(), Type: q.Type, Text: q.Text, Points: q.Points, Position: pos})
	}
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	qz, err = quizzes.CreateQuiz(ctx, qz, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	empty, err := stats.QuizStats(ctx, qz)
	require.NoError(t, err)
	assert.Zero(t, empty.Attempts)
	assert.Zero(t, empty.AverageScore)
	assert.Len(t, empty.Questions, len(qz.Questions))

	// learner 1 gets everything right, learner 2 only the first question,
	// and learner 3 never finishes.
	record := func(name string, score int, firstOnly, finalize bool) {
		usr := testutil.CreateUser(t, users, name, name, name+"@example.com", testPwd, []string{user.RoleStudent}, true)
		a, err := quizzes.CreateAttempt(ctx, quiz.Attempt{UserID: usr.ID, QuizID: qz.ID, StartedAt: time.Now().UTC(), TotalPoints: 10})
		require.NoError(t, err)
		for i, q := range qz.Questions {
			_, err = quizzes.CreateUserAnswer(ctx, quiz.UserAnswer{
				AttemptID:  a.ID,
				QuestionID: q.ID,
				Answer:     []byte(`"x"`),
				IsCorrect:  !firstOnly || i == 0,
			})
			require.NoError(t, err)
		}
		if !finalize {
			return
		}
		completed := time.Now().UTC()
		passed := score >= qz.PassingScore
		a.CompletedAt, a.Score, a.Passed = &completed, &score, &passed
		_, err = quizzes.FinalizeAttempt(ctx, a)
		require.NoError(t, err)
	}
	record("learner1", 100, false, true)
	record("learner2", 20, true, true)
	record("learner3", 0, true, false)

	got, err := stats.QuizStats(ctx, qz)
	require.NoError(t, err)
	assert.Equal(t, qz.ID, got.QuizID)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, 2, got.Learners)
	assert.InDelta(t, 60, got.AverageScore, 0.001)
	assert.InDelta(t, 0.5, got.PassRate, 0.001)

	require.Len(t, got.Questions, len(qz.Questions))
	for i, qs := range got.Questions {
		assert.Equal(t, qz.Questions[i].ID, qs.QuestionID)
		assert.Equal(t, 2, qs.Answered, "open attempts are ignored")
		if i == 0 {
			assert.Equal(t, 2, qs.Correct)
			assert.InDelta(t, 1, qs.CorrectRate, 0.001)
		} else {
			assert.Equal(t, 1, qs.Correct)
			assert.InDelta(t, 0.5, qs.CorrectRate, 0.001)
		}
	}
}
