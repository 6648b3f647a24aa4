package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrNotEnrolled        = course.ErrNotEnrolled
	ErrMaxAttemptsReached = errors.New("max attempts reached")
	ErrForbidden          = errors.New("permission denied")
	ErrCacheMiss          = errors.New("quiz not cached")
)

// Domain events
const (
	EventAttemptFinalized = "quiz.attempt.finalized"
	EventQuizPassed       = "quiz.passed"
)

type (
	Repository interface {
		// CreateQuiz saves the quiz with its questions, options and correct answers.
		CreateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		// GetQuiz returns the quiz with its questions, options and correct answers.
		GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		// QueryQuizzes returns the course quizzes, without questions.
		QueryQuizzes(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Quiz, error)

		CountFinalizedAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) (int, error)
		HasPassedAttempt(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) (bool, error)
		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		CreateUserAnswer(ctx context.Context, ua UserAnswer, exec ...core.DBExecutor) (UserAnswer, error)
		// FinalizeAttempt sets the completion time, score, passed & points of an attempt.
		FinalizeAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		// GetAttempt returns the attempt with its answers.
		GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (Attempt, error)
		QueryAttempts(ctx context.Context, filter AttemptFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Attempt, error)
	}

	StatsRepository interface {
		QuizStats(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Stats, error)
	}

	// Cache is a read-through cache of quiz definitions.
	Cache interface {
		// GetQuiz returns ErrCacheMiss if the quiz is not cached.
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		SetQuiz(ctx context.Context, qz Quiz) error
	}

	Service interface {
		Create(ctx context.Context, usr user.User, courseID string, nq NewQuiz) (Quiz, error)
		Query(ctx context.Context, usr user.User, courseID string) ([]Quiz, error)
		Get(ctx context.Context, usr user.User, courseID, quizID string) (Quiz, error)
		Submit(ctx context.Context, usr user.User, courseID, quizID string, sub Submission) (Result, error)
		QueryAttempts(ctx context.Context, usr user.User, courseID, quizID string, ordering []core.DBOrdering) ([]Attempt, error)
		GetAttempt(ctx context.Context, usr user.User, courseID, quizID, attemptID string) (Attempt, error)
		Stats(ctx context.Context, usr user.User, courseID, quizID string) (Stats, error)
	}

	ServiceDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		DB         core.TxRunner
		Repo       Repository
		StatsRepo  StatsRepository
		CourseRepo course.Repository
		UserRepo   user.Repository
		NotifRepo  notification.Repository
		Cache      Cache // optional
		MailSvc    core.EmailService
		Events     core.EventPublisher
	}

	service struct {
		ServiceDeps
		now     func() time.Time
		shuffle func(n int, swap func(i, j int))
	}
)

var _ Service = (*service)(nil)

func NewService(deps ServiceDeps) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.DB, "DB"),
		vala.IsNotNil(deps.Repo, "Repo"),
		vala.IsNotNil(deps.StatsRepo, "StatsRepo"),
		vala.IsNotNil(deps.CourseRepo, "CourseRepo"),
		vala.IsNotNil(deps.UserRepo, "UserRepo"),
		vala.IsNotNil(deps.NotifRepo, "NotifRepo"),
		vala.IsNotNil(deps.MailSvc, "MailSvc"),
		vala.IsNotNil(deps.Events, "Events"),
	).CheckAndPanic()

	return &service{
		ServiceDeps: deps,
		now:         func() time.Time { return time.Now().UTC() },
		shuffle:     rand.Shuffle,
	}
}

// Submission is a learner's answer set for one attempt.
type Submission struct {
	Answers []SubmittedAnswer `json:"answers" validate:"required,dive"`
	// StartedAt is when the learner opened the quiz. It is ignored if it lies
	// in the future or further back than the maximum attempt duration.
	StartedAt *time.Time `json:"startedAt"`
}

type SubmittedAnswer struct {
	QuestionID string          `json:"questionId" validate:"required"`
	Answer     json.RawMessage `json:"answer" validate:"required"`
}

// Result is the outcome of a graded submission.
type Result struct {
	QuizAttemptID    string         `json:"quizAttemptId"`
	Score            int            `json:"score"`
	TotalPoints      int            `json:"totalPoints"`
	EarnedPoints     int            `json:"earnedPoints"`
	CorrectCount     int            `json:"correctCount"`
	TotalQuestions   int            `json:"totalQuestions"`
	IsPassed         bool           `json:"isPassed"`
	FirstPass        bool           `json:"firstPass"`
	StartedAt        time.Time      `json:"startedAt"`
	CompletedAt      time.Time      `json:"completedAt"`
	TimeTakenSeconds int64          `json:"timeTakenSeconds"`
	UserAnswers      []AnswerResult `json:"userAnswers"`
}

type AnswerResult struct {
	QuestionID   string          `json:"questionId"`
	UserAnswer   json.RawMessage `json:"userAnswer"`
	IsCorrect    bool            `json:"isCorrect"`
	PointsEarned int             `json:"pointsEarned"`
}

// AttemptEvent is the payload of the quiz domain events.
type AttemptEvent struct {
	AttemptID    string    `json:"attemptId"`
	QuizID       string    `json:"quizId"`
	CourseID     string    `json:"courseId"`
	UserID       string    `json:"userId"`
	Score        int       `json:"score"`
	EarnedPoints int       `json:"earnedPoints"`
	TotalPoints  int       `json:"totalPoints"`
	Passed       bool      `json:"passed"`
	CompletedAt  time.Time `json:"completedAt"`
}

type quizPassedMailData struct {
	Name      string
	QuizTitle string
	Score     int
	Points    int
}

// getQuiz reads the quiz through the cache and checks that it belongs to the course.
func (svc *service) getQuiz(ctx context.Context, courseID, quizID string, exec ...core.DBExecutor) (Quiz, error) {
	var qz Quiz
	var err error
	cached := false

	if svc.Cache != nil {
		if qz, err = svc.Cache.GetQuiz(ctx, quizID); err == nil {
			cached = true
		} else if errors.Cause(err) != ErrCacheMiss {
			svc.Logger.Warn(fmt.Sprintf("reading quiz cache: %v", err), err)
		}
	}
	if !cached {
		if qz, err = svc.Repo.GetQuiz(ctx, quizID, exec...); err != nil {
			return Quiz{}, err
		}
		if svc.Cache != nil {
			if err = svc.Cache.SetQuiz(ctx, qz); err != nil {
				svc.Logger.Warn(fmt.Sprintf("writing quiz cache: %v", err), err)
			}
		}
	}

	if qz.CourseID != courseID {
		return Quiz{}, ErrQuizNotFound
	}
	return qz, nil
}

// canManage tells whether usr may author & review the course.
func (svc *service) canManage(ctx context.Context, usr user.User, courseID string) (bool, error) {
	crs, err := svc.CourseRepo.GetCourse(ctx, courseID)
	if err != nil {
		return false, err
	}
	return usr.IsAdmin() || crs.InstructorID == usr.ID, nil
}

// checkAccess returns whether usr manages the course, failing with ErrNotEnrolled
// if they neither manage it nor are enrolled in it.
func (svc *service) checkAccess(ctx context.Context, usr user.User, courseID string) (bool, error) {
	manager, err := svc.canManage(ctx, usr, courseID)
	if err != nil || manager {
		return manager, err
	}
	if _, err = svc.CourseRepo.GetEnrollment(ctx, usr.ID, courseID); err != nil {
		return false, err
	}
	return false, nil
}

func (svc *service) Create(ctx context.Context, usr user.User, courseID string, nq NewQuiz) (Quiz, error) {
	manager, err := svc.canManage(ctx, usr, courseID)
	if err != nil {
		return Quiz{}, err
	}
	if !manager {
		return Quiz{}, ErrForbidden
	}

	qz := nq.build(courseID, svc.now(), svc.shuffle)
	err = svc.DB.RunInTx(ctx, func(exec core.DBExecutor) error {
		var txErr error
		qz, txErr = svc.Repo.CreateQuiz(ctx, qz, exec)
		return txErr
	})
	if err != nil {
		return Quiz{}, errors.Wrap(err, "creating quiz")
	}
	return qz, nil
}

func (svc *service) Query(ctx context.Context, usr user.User, courseID string) ([]Quiz, error) {
	if _, err := svc.checkAccess(ctx, usr, courseID); err != nil {
		return nil, err
	}
	return svc.Repo.QueryQuizzes(ctx, courseID)
}

// Get returns the quiz; correct answers are only shown to the course managers.
func (svc *service) Get(ctx context.Context, usr user.User, courseID, quizID string) (Quiz, error) {
	manager, err := svc.checkAccess(ctx, usr, courseID)
	if err != nil {
		return Quiz{}, err
	}
	qz, err := svc.getQuiz(ctx, courseID, quizID)
	if err != nil {
		return Quiz{}, err
	}
	if manager {
		return qz, nil
	}
	return qz.LearnerView(), nil
}

// decodeAnswers maps each submitted answer to its question, rejecting unknown & duplicate questions.
func decodeAnswers(qz Quiz, answers []SubmittedAnswer) (map[string]Answer, error) {
	decoded := make(map[string]Answer, len(answers))
	for i, sa := range answers {
		field := fmt.Sprintf("answers[%d]", i)
		q, ok := qz.Question(sa.QuestionID)
		if !ok {
			return nil, core.NewValidationError(ErrInvalidAnswer, core.FieldError{
				Field: field + ".questionId", Error: "question not found in this quiz",
			})
		}
		if _, dup := decoded[q.ID]; dup {
			return nil, core.NewValidationError(ErrInvalidAnswer, core.FieldError{
				Field: field + ".questionId", Error: "question answered more than once",
			})
		}
		ans, err := DecodeAnswer(q.Type, sa.Answer)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: field + ".answer", Error: err.Error()})
		}
		decoded[q.ID] = ans
	}
	return decoded, nil
}

func (svc *service) startedAt(sub Submission, receivedAt time.Time) time.Time {
	if sub.StartedAt == nil {
		return receivedAt
	}
	started := sub.StartedAt.UTC()
	if started.After(receivedAt) || receivedAt.Sub(started) > svc.Conf.Quiz.MaxAttemptDuration {
		return receivedAt
	}
	return started
}

// Submit grades a learner's submission & records the attempt.
// Everything but the notification delivery runs in one transaction, which
// is serialized per learner & course by locking the enrollment.
func (svc *service) Submit(ctx context.Context, usr user.User, courseID, quizID string, sub Submission) (Result, error) {
	receivedAt := svc.now()
	var (
		qz        Quiz
		res       Result
		firstPass bool
	)

	err := svc.DB.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.CourseRepo.LockEnrollment(ctx, usr.ID, courseID, exec); err != nil {
			return err
		}

		var err error
		if qz, err = svc.getQuiz(ctx, courseID, quizID, exec); err != nil {
			return err
		}

		if qz.AttemptsAllowed > 0 {
			count, err := svc.Repo.CountFinalizedAttempts(ctx, usr.ID, qz.ID, exec)
			if err != nil {
				return errors.Wrap(err, "counting attempts")
			}
			if count >= qz.AttemptsAllowed {
				return ErrMaxAttemptsReached
			}
		}

		answers, err := decodeAnswers(qz, sub.Answers)
		if err != nil {
			return err
		}

		passedBefore, err := svc.Repo.HasPassedAttempt(ctx, usr.ID, qz.ID, exec)
		if err != nil {
			return errors.Wrap(err, "checking passed attempts")
		}

		attempt, err := svc.Repo.CreateAttempt(ctx, Attempt{
			ID:          newID(),
			UserID:      usr.ID,
			QuizID:      qz.ID,
			StartedAt:   svc.startedAt(sub, receivedAt),
			TotalPoints: qz.TotalPoints(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating attempt")
		}

		res = Result{
			QuizAttemptID:  attempt.ID,
			TotalPoints:    attempt.TotalPoints,
			TotalQuestions: len(qz.Questions),
			UserAnswers:    make([]AnswerResult, 0, len(answers)),
		}
		for _, q := range qz.Questions {
			ans, ok := answers[q.ID]
			if !ok {
				continue // unanswered: no points, no row
			}
			correct, err := Grade(q, ans)
			if err != nil {
				return errors.Wrapf(err, "grading question %s", q.ID)
			}
			ua := UserAnswer{
				ID:         newID(),
				AttemptID:  attempt.ID,
				QuestionID: q.ID,
				Answer:     submittedAnswer(sub.Answers, q.ID),
				IsCorrect:  correct,
			}
			if correct {
				ua.PointsEarned = q.Points
				res.CorrectCount++
			}
			if _, err = svc.Repo.CreateUserAnswer(ctx, ua, exec); err != nil {
				return errors.Wrap(err, "saving answer")
			}
			res.EarnedPoints += ua.PointsEarned
			res.UserAnswers = append(res.UserAnswers, AnswerResult{
				QuestionID:   ua.QuestionID,
				UserAnswer:   ua.Answer,
				IsCorrect:    ua.IsCorrect,
				PointsEarned: ua.PointsEarned,
			})
		}

		res.Score = Score(res.EarnedPoints, res.TotalPoints)
		res.IsPassed = IsPassing(res.Score, qz.PassingScore)
		completedAt := svc.now()
		if completedAt.Before(attempt.StartedAt) {
			completedAt = attempt.StartedAt
		}
		attempt.CompletedAt = &completedAt
		attempt.Score = &res.Score
		attempt.Passed = &res.IsPassed
		attempt.EarnedPoints = res.EarnedPoints
		if attempt, err = svc.Repo.FinalizeAttempt(ctx, attempt, exec); err != nil {
			return errors.Wrap(err, "finalizing attempt")
		}
		res.StartedAt = attempt.StartedAt
		res.CompletedAt = *attempt.CompletedAt
		res.TimeTakenSeconds = int64(attempt.TimeTaken() / time.Second)

		firstPass = res.IsPassed && !passedBefore
		if !firstPass {
			return nil
		}
		res.FirstPass = true
		if err = svc.UserRepo.AddPoints(ctx, usr.ID, res.TotalPoints, exec); err != nil {
			return errors.Wrap(err, "awarding points")
		}
		_, err = svc.NotifRepo.CreateNotification(ctx, notification.Notification{
			UserID:  usr.ID,
			Type:    notification.TypeQuizPassed,
			Title:   "Quiz passed",
			Message: fmt.Sprintf("You passed %q with a score of %d%%.", qz.Title, res.Score),
			Data: map[string]interface{}{
				"quizId":    qz.ID,
				"courseId":  courseID,
				"attemptId": attempt.ID,
				"score":     res.Score,
			},
			CreatedAt: completedAt,
		}, exec)
		return errors.Wrap(err, "creating notification")
	})
	if err != nil {
		return Result{}, err
	}

	svc.afterSubmit(ctx, usr, qz, res)
	return res, nil
}

// afterSubmit delivers the notifications of a committed submission. Failures are only logged.
func (svc *service) afterSubmit(ctx context.Context, usr user.User, qz Quiz, res Result) {
	evt := AttemptEvent{
		AttemptID:    res.QuizAttemptID,
		QuizID:       qz.ID,
		CourseID:     qz.CourseID,
		UserID:       usr.ID,
		Score:        res.Score,
		EarnedPoints: res.EarnedPoints,
		TotalPoints:  res.TotalPoints,
		Passed:       res.IsPassed,
		CompletedAt:  res.CompletedAt,
	}
	if err := svc.Events.Publish(ctx, EventAttemptFinalized, evt); err != nil {
		svc.Logger.Error(fmt.Sprintf("publishing %s: %v", EventAttemptFinalized, err), err, usr)
	}
	if !res.FirstPass {
		return
	}
	if err := svc.Events.Publish(ctx, EventQuizPassed, evt); err != nil {
		svc.Logger.Error(fmt.Sprintf("publishing %s: %v", EventQuizPassed, err), err, usr)
	}

	if to, ok := usr.EmailAddress(); ok {
		svc.MailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{to},
			Subject:      "Quiz passed: " + qz.Title,
			TemplateName: "quiz_passed",
			TemplateData: quizPassedMailData{
				Name:      usr.Name,
				QuizTitle: qz.Title,
				Score:     res.Score,
				Points:    res.TotalPoints,
			},
		})
	}
}

func submittedAnswer(answers []SubmittedAnswer, questionID string) json.RawMessage {
	for _, sa := range answers {
		if sa.QuestionID == questionID {
			return sa.Answer
		}
	}
	return nil
}

func (svc *service) QueryAttempts(ctx context.Context, usr user.User, courseID, quizID string, ordering []core.DBOrdering) ([]Attempt, error) {
	if _, err := svc.checkAccess(ctx, usr, courseID); err != nil {
		return nil, err
	}
	if _, err := svc.getQuiz(ctx, courseID, quizID); err != nil {
		return nil, err
	}
	return svc.Repo.QueryAttempts(ctx, AttemptFilter{UserID: usr.ID, QuizID: quizID}, ordering)
}

// GetAttempt returns an attempt to its owner or to the course managers.
func (svc *service) GetAttempt(ctx context.Context, usr user.User, courseID, quizID, attemptID string) (Attempt, error) {
	manager, err := svc.checkAccess(ctx, usr, courseID)
	if err != nil {
		return Attempt{}, err
	}
	if _, err = svc.getQuiz(ctx, courseID, quizID); err != nil {
		return Attempt{}, err
	}
	attempt, err := svc.Repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if attempt.QuizID != quizID || !(manager || attempt.UserID == usr.ID) {
		return Attempt{}, ErrAttemptNotFound
	}
	return attempt, nil
}

func (svc *service) Stats(ctx context.Context, usr user.User, courseID, quizID string) (Stats, error) {
	manager, err := svc.canManage(ctx, usr, courseID)
	if err != nil {
		return Stats{}, err
	}
	if !manager {
		return Stats{}, ErrForbidden
	}
	qz, err := svc.getQuiz(ctx, courseID, quizID)
	if err != nil {
		return Stats{}, err
	}
	return svc.StatsRepo.QuizStats(ctx, qz)
}
