package quiz_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/quiz"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	eventsvc "github.com/trezcool/academia/services/events"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

var now = time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ctx      context.Context
	db       *inmemdb.DB
	users    user.Repository
	courses  course.Repository
	quizzes  quiz.Repository
	notifs   notification.Repository
	events   *eventsvc.PublisherMock
	mail     *emailsvc.ConsoleServiceMock
	svc      quiz.Service
	teacher  user.User
	learner  user.User
	outsider user.User
	crs      course.Course
}

func newFixture(t *testing.T, notifRepo ...notification.Repository) *fixture {
	conf := core.NewTestConfig()
	logger := &testutil.NopLogger{}
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	f := &fixture{
		ctx:     context.Background(),
		db:      db,
		users:   inmemdb.NewUserRepository(db),
		courses: inmemdb.NewCourseRepository(db),
		quizzes: inmemdb.NewQuizRepository(db),
		notifs:  inmemdb.NewNotificationRepository(db),
		events:  eventsvc.NewPublisherMock(),
		mail:    emailsvc.NewConsoleServiceMock(conf, logger),
	}
	notifs := f.notifs
	if len(notifRepo) > 0 {
		notifs = notifRepo[0]
	}
	f.svc = quiz.NewService(quiz.ServiceDeps{
		Conf:       conf,
		Logger:     logger,
		DB:         db,
		Repo:       f.quizzes,
		StatsRepo:  inmemdb.NewStatsRepository(db),
		CourseRepo: f.courses,
		UserRepo:   f.users,
		NotifRepo:  notifs,
		MailSvc:    f.mail,
		Events:     f.events,
	})
	quiz.SetClock(f.svc, func() time.Time { return now })

	f.teacher = testutil.CreateUser(t, f.users, "Teacher", "teacher", "teacher@example.com", "", []string{user.RoleTeacher}, true)
	f.learner = testutil.CreateUser(t, f.users, "Learner", "learner", "learner@example.com", "", []string{user.RoleStudent}, true)
	f.outsider = testutil.CreateUser(t, f.users, "Outsider", "outsider", "outsider@example.com", "", []string{user.RoleStudent}, true)
	f.crs = testutil.CreateCourse(t, f.courses, f.teacher, "Go 101")
	testutil.Enroll(t, f.courses, f.learner, f.crs)
	return f
}

func (f *fixture) createQuiz(t *testing.T, passingScore, attemptsAllowed int) quiz.Quiz {
	qz, err := f.svc.Create(f.ctx, f.teacher, f.crs.ID, testutil.SampleQuiz(passingScore, attemptsAllowed))
	require.NoError(t, err)
	return qz
}

func (f *fixture) points(t *testing.T, usr user.User) int {
	u, err := f.users.GetUser(f.ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	return u.Points
}

func (f *fixture) attemptCount(t *testing.T, usr user.User, qz quiz.Quiz) int {
	count, err := f.quizzes.CountFinalizedAttempts(f.ctx, usr.ID, qz.ID)
	require.NoError(t, err)
	return count
}

func TestNewService(t *testing.T) {
	conf := core.NewTestConfig()
	logger := &testutil.NopLogger{}
	db := inmemdb.NewDB()
	deps := quiz.ServiceDeps{
		Conf:       conf,
		Logger:     logger,
		DB:         db,
		Repo:       inmemdb.NewQuizRepository(db),
		StatsRepo:  inmemdb.NewStatsRepository(db),
		CourseRepo: inmemdb.NewCourseRepository(db),
		UserRepo:   inmemdb.NewUserRepository(db),
		NotifRepo:  &failingNotifRepo{},
		MailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		Events:     eventsvc.NewPublisherMock(),
	}
	assert.NotPanics(t, func() { quiz.NewService(deps) })

	deps.Events = nil
	assert.Panics(t, func() { quiz.NewService(deps) }, "missing dependency")
}

func TestService_Submit_allCorrect(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)

	res, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)})
	require.NoError(t, err)

	assert.NotEmpty(t, res.QuizAttemptID)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 10, res.TotalPoints)
	assert.Equal(t, 10, res.EarnedPoints)
	assert.Equal(t, 5, res.CorrectCount)
	assert.Equal(t, 5, res.TotalQuestions)
	assert.True(t, res.IsPassed)
	assert.True(t, res.FirstPass)
	assert.Equal(t, now, res.CompletedAt)
	assert.Len(t, res.UserAnswers, 5)
	for _, ua := range res.UserAnswers {
		assert.True(t, ua.IsCorrect)
	}

	attempt, err := f.quizzes.GetAttempt(f.ctx, res.QuizAttemptID)
	require.NoError(t, err)
	assert.True(t, attempt.IsFinalized())
	assert.True(t, attempt.IsPassed())
	assert.Equal(t, 100, *attempt.Score)
	assert.Len(t, attempt.Answers, 5)

	assert.Equal(t, 10, f.points(t, f.learner))

	notifs, err := f.notifs.QueryNotifications(f.ctx, notification.QueryFilter{UserID: f.learner.ID})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.TypeQuizPassed, notifs[0].Type)
	assert.Equal(t, qz.ID, notifs[0].Data["quizId"])
	assert.Equal(t, res.QuizAttemptID, notifs[0].Data["attemptId"])

	assert.Equal(t, []string{quiz.EventAttemptFinalized, quiz.EventQuizPassed}, f.events.Types())

	sent := f.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, f.learner.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, `passed "Go basics" with a score of 100%`)
	assert.Contains(t, sent[0].HTMLContent, "Go basics")
}

func TestService_Submit_firstPassOnly(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 50, 0)

	for i := 0; i < 2; i++ {
		res, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)})
		require.NoError(t, err)
		assert.True(t, res.IsPassed)
		assert.Equal(t, i == 0, res.FirstPass)
	}

	assert.Equal(t, 2, f.attemptCount(t, f.learner, qz))
	assert.Equal(t, 10, f.points(t, f.learner), "points are awarded once")
	notifs, err := f.notifs.QueryNotifications(f.ctx, notification.QueryFilter{UserID: f.learner.ID})
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
	assert.Equal(t, []string{quiz.EventAttemptFinalized, quiz.EventQuizPassed, quiz.EventAttemptFinalized}, f.events.Types())
	assert.Len(t, f.mail.SentMessages(), 1)
}

func TestService_Submit_failing(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)

	res, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, false)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.EarnedPoints)
	assert.Equal(t, 0, res.CorrectCount)
	assert.False(t, res.IsPassed)
	assert.False(t, res.FirstPass)

	assert.Equal(t, 1, f.attemptCount(t, f.learner, qz))
	assert.Equal(t, 0, f.points(t, f.learner))
	assert.Equal(t, []string{quiz.EventAttemptFinalized}, f.events.Types())
	assert.Empty(t, f.mail.SentMessages())
}

func TestService_Submit_partial(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)

	all := testutil.SampleAnswers(t, qz, true)
	// multiple choice (2 points) & fill blank (2 points) only
	res, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: []quiz.SubmittedAnswer{all[0], all[2]}})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Score)
	assert.Equal(t, 4, res.EarnedPoints)
	assert.Equal(t, 10, res.TotalPoints)
	assert.Equal(t, 5, res.TotalQuestions)
	assert.Len(t, res.UserAnswers, 2)
	assert.False(t, res.IsPassed)

	res, err = f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: []quiz.SubmittedAnswer{}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Empty(t, res.UserAnswers)
}

func TestService_Submit_maxAttempts(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 2)
	sub := quiz.Submission{Answers: testutil.SampleAnswers(t, qz, false)}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, sub)
		require.NoError(t, err)
	}
	_, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, sub)
	assert.Equal(t, quiz.ErrMaxAttemptsReached, errors.Cause(err))
	assert.Equal(t, 2, f.attemptCount(t, f.learner, qz))
}

func TestService_Submit_access(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)
	sub := quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)}

	otherCourse := testutil.CreateCourse(t, f.courses, f.teacher, "Rust 101")
	otherQuiz, err := f.svc.Create(f.ctx, f.teacher, otherCourse.ID, testutil.SampleQuiz(50, 0))
	require.NoError(t, err)

	tests := []struct {
		name     string
		usr      user.User
		courseID string
		quizID   string
		wantErr  error
	}{
		{name: "not enrolled", usr: f.outsider, courseID: f.crs.ID, quizID: qz.ID, wantErr: quiz.ErrNotEnrolled},
		{name: "not enrolled & unknown quiz", usr: f.outsider, courseID: f.crs.ID, quizID: "unknown", wantErr: quiz.ErrNotEnrolled},
		{name: "unknown course", usr: f.learner, courseID: "unknown", quizID: qz.ID, wantErr: quiz.ErrNotEnrolled},
		{name: "unknown quiz", usr: f.learner, courseID: f.crs.ID, quizID: "unknown", wantErr: quiz.ErrQuizNotFound},
		{name: "quiz of another course", usr: f.learner, courseID: f.crs.ID, quizID: otherQuiz.ID, wantErr: quiz.ErrQuizNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(f.ctx, tt.usr, tt.courseID, tt.quizID, sub)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
	assert.Empty(t, f.events.Types())
}

func TestService_Submit_invalidAnswers(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)
	valid := testutil.SampleAnswers(t, qz, true)

	tests := []struct {
		name      string
		answers   []quiz.SubmittedAnswer
		wantField string
	}{
		{
			name:      "unknown question",
			answers:   append([]quiz.SubmittedAnswer{{QuestionID: "unknown", Answer: json.RawMessage(`true`)}}, valid...),
			wantField: "answers[0].questionId",
		},
		{
			name:      "duplicate question",
			answers:   append(append([]quiz.SubmittedAnswer{}, valid...), valid[1]),
			wantField: "answers[5].questionId",
		},
		{
			name: "wrong shape",
			answers: []quiz.SubmittedAnswer{
				valid[0],
				{QuestionID: valid[1].QuestionID, Answer: json.RawMessage(`"yes"`)},
			},
			wantField: "answers[1].answer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: tt.answers})
			require.Error(t, err)
			verr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "unexpected error: %v", err)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}
	assert.Equal(t, 0, f.attemptCount(t, f.learner, qz))
	assert.Empty(t, f.events.Types())
}

type failingNotifRepo struct {
	notification.Repository
}

func (failingNotifRepo) CreateNotification(context.Context, notification.Notification, ...core.DBExecutor) (notification.Notification, error) {
	return notification.Notification{}, errors.New("disk full")
}

func TestService_Submit_rollback(t *testing.T) {
	f := newFixture(t, &failingNotifRepo{})
	qz := f.createQuiz(t, 70, 0)

	_, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)})
	require.Error(t, err)

	assert.Equal(t, 0, f.attemptCount(t, f.learner, qz))
	assert.Equal(t, 0, f.points(t, f.learner))
	attempts, err := f.quizzes.QueryAttempts(f.ctx, quiz.AttemptFilter{UserID: f.learner.ID, QuizID: qz.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.Empty(t, f.events.Types())
	assert.Empty(t, f.mail.SentMessages())
}

func TestService_Submit_sideEffectFailures(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)
	f.events.Err = errors.New("broker down")

	res, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)})
	require.NoError(t, err)
	assert.True(t, res.FirstPass)
	assert.Equal(t, 10, f.points(t, f.learner))
	assert.Len(t, f.mail.SentMessages(), 1)
}

func TestService_Submit_startedAt(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 70, 0)

	ptr := func(t time.Time) *time.Time { return &t }
	tests := []struct {
		name      string
		startedAt *time.Time
		wantTaken int64
	}{
		{name: "not provided", wantTaken: 0},
		{name: "10 minutes ago", startedAt: ptr(now.Add(-10 * time.Minute)), wantTaken: 600},
		{name: "in the future", startedAt: ptr(now.Add(time.Hour)), wantTaken: 0},
		{name: "too long ago", startedAt: ptr(now.Add(-48 * time.Hour)), wantTaken: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{
				Answers:   testutil.SampleAnswers(t, qz, false),
				StartedAt: tt.startedAt,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTaken, res.TimeTakenSeconds)
			assert.False(t, res.CompletedAt.Before(res.StartedAt))
		})
	}
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, f.learner, f.crs.ID, testutil.SampleQuiz(50, 0))
	assert.Equal(t, quiz.ErrForbidden, errors.Cause(err))

	_, err = f.svc.Create(f.ctx, f.teacher, "unknown", testutil.SampleQuiz(50, 0))
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))

	qz := f.createQuiz(t, 50, 0)
	quizzes, err := f.svc.Query(f.ctx, f.learner, f.crs.ID)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, qz.ID, quizzes[0].ID)

	_, err = f.svc.Query(f.ctx, f.outsider, f.crs.ID)
	assert.Equal(t, quiz.ErrNotEnrolled, errors.Cause(err))
}

func TestService_Get(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 50, 0)

	got, err := f.svc.Get(f.ctx, f.learner, f.crs.ID, qz.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 5)
	for _, q := range got.Questions {
		assert.Empty(t, q.CorrectAnswers, "learners must not see the correct answers")
	}

	got, err = f.svc.Get(f.ctx, f.teacher, f.crs.ID, qz.ID)
	require.NoError(t, err)
	for _, q := range got.Questions {
		if q.Type != quiz.TrueFalse {
			assert.NotEmpty(t, q.CorrectAnswers)
		}
	}

	_, err = f.svc.Get(f.ctx, f.outsider, f.crs.ID, qz.ID)
	assert.Equal(t, quiz.ErrNotEnrolled, errors.Cause(err))
}

func TestService_attempts(t *testing.T) {
	f := newFixture(t)
	qz := f.createQuiz(t, 50, 0)
	other := testutil.CreateUser(t, f.users, "Other", "other", "other@example.com", "", []string{user.RoleStudent}, true)
	testutil.Enroll(t, f.courses, other, f.crs)

	first, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, false)})
	require.NoError(t, err)
	quiz.SetClock(f.svc, func() time.Time { return now.Add(time.Minute) })
	second, err := f.svc.Submit(f.ctx, f.learner, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)})
	require.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, other, f.crs.ID, qz.ID, quiz.Submission{Answers: testutil.SampleAnswers(t, qz, true)})
	require.NoError(t, err)

	attempts, err := f.svc.QueryAttempts(f.ctx, f.learner, f.crs.ID, qz.ID, nil)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, second.QuizAttemptID, attempts[0].ID, "latest first by default")

	attempts, err = f.svc.QueryAttempts(f.ctx, f.learner, f.crs.ID, qz.ID, []core.DBOrdering{{Field: "score", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, first.QuizAttemptID, attempts[0].ID)

	attempt, err := f.svc.GetAttempt(f.ctx, f.learner, f.crs.ID, qz.ID, first.QuizAttemptID)
	require.NoError(t, err)
	assert.Len(t, attempt.Answers, 5)

	_, err = f.svc.GetAttempt(f.ctx, other, f.crs.ID, qz.ID, first.QuizAttemptID)
	assert.Equal(t, quiz.ErrAttemptNotFound, errors.Cause(err))

	_, err = f.svc.GetAttempt(f.ctx, f.teacher, f.crs.ID, qz.ID, first.QuizAttemptID)
	assert.NoError(t, err)

	_, err = f.svc.Stats(f.ctx, f.learner, f.crs.ID, qz.ID)
	assert.Equal(t, quiz.ErrForbidden, errors.Cause(err))

	stats, err := f.svc.Stats(f.ctx, f.teacher, f.crs.ID, qz.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Attempts)
	assert.Equal(t, 2, stats.Learners)
	assert.InDelta(t, 200.0/3, stats.AverageScore, 0.001)
	assert.InDelta(t, 2.0/3, stats.PassRate, 0.001)
	require.Len(t, stats.Questions, 5)
	for _, qs := range stats.Questions {
		assert.Equal(t, 3, qs.Answered)
		assert.Equal(t, 2, qs.Correct)
	}
}
