package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/quiz"
)

// attemptOrderColumns are the columns attempts can be ordered by.
var attemptOrderColumns = []string{"started_at", "completed_at", "score"}

type (
	quizRow struct {
		ID              string    `db:"id"`
		CourseID        string    `db:"course_id"`
		Title           string    `db:"title"`
		Description     string    `db:"description"`
		PassingScore    int       `db:"passing_score"`
		AttemptsAllowed int       `db:"attempts_allowed"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
	}

	questionRow struct {
		ID       string `db:"id"`
		QuizID   string `db:"quiz_id"`
		Type     string `db:"type"`
		Text     string `db:"text"`
		Points   int    `db:"points"`
		Position int    `db:"position"`
	}

	optionRow struct {
		ID         string `db:"id"`
		QuestionID string `db:"question_id"`
		Kind       string `db:"kind"`
		Text       string `db:"text"`
		Position   int    `db:"position"`
	}

	correctAnswerRow struct {
		ID         string      `db:"id"`
		QuestionID string      `db:"question_id"`
		OptionID   null.String `db:"option_id"`
		MatchID    null.String `db:"match_id"`
		Text       null.String `db:"text"`
	}

	attemptRow struct {
		ID           string    `db:"id"`
		UserID       string    `db:"user_id"`
		QuizID       string    `db:"quiz_id"`
		StartedAt    time.Time `db:"started_at"`
		CompletedAt  null.Time `db:"completed_at"`
		Score        null.Int  `db:"score"`
		Passed       null.Bool `db:"passed"`
		EarnedPoints int       `db:"earned_points"`
		TotalPoints  int       `db:"total_points"`
	}

	userAnswerRow struct {
		ID           string `db:"id"`
		AttemptID    string `db:"attempt_id"`
		QuestionID   string `db:"question_id"`
		Answer       []byte `db:"answer"`
		IsCorrect    bool   `db:"is_correct"`
		PointsEarned int    `db:"points_earned"`
	}
)

func newQuizRow(qz quiz.Quiz) quizRow {
	return quizRow{
		ID:              qz.ID,
		CourseID:        qz.CourseID,
		Title:           qz.Title,
		Description:     qz.Description,
		PassingScore:    qz.PassingScore,
		AttemptsAllowed: qz.AttemptsAllowed,
		CreatedAt:       qz.CreatedAt.UTC(),
		UpdatedAt:       qz.UpdatedAt.UTC(),
	}
}

func (r quizRow) quiz() quiz.Quiz {
	return quiz.Quiz{
		ID:              r.ID,
		CourseID:        r.CourseID,
		Title:           r.Title,
		Description:     r.Description,
		PassingScore:    r.PassingScore,
		AttemptsAllowed: r.AttemptsAllowed,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func newAttemptRow(a quiz.Attempt) attemptRow {
	return attemptRow{
		ID:           a.ID,
		UserID:       a.UserID,
		QuizID:       a.QuizID,
		StartedAt:    a.StartedAt.UTC(),
		CompletedAt:  null.TimeFromPtr(a.CompletedAt),
		Score:        null.IntFromPtr(a.Score),
		Passed:       null.BoolFromPtr(a.Passed),
		EarnedPoints: a.EarnedPoints,
		TotalPoints:  a.TotalPoints,
	}
}

func (r attemptRow) attempt() quiz.Attempt {
	a := quiz.Attempt{
		ID:           r.ID,
		UserID:       r.UserID,
		QuizID:       r.QuizID,
		StartedAt:    r.StartedAt.UTC(),
		Score:        r.Score.Ptr(),
		Passed:       r.Passed.Ptr(),
		EarnedPoints: r.EarnedPoints,
		TotalPoints:  r.TotalPoints,
	}
	if r.CompletedAt.Valid {
		completed := r.CompletedAt.Time.UTC()
		a.CompletedAt = &completed
	}
	return a
}

func (r userAnswerRow) userAnswer() quiz.UserAnswer {
	return quiz.UserAnswer{
		ID:           r.ID,
		AttemptID:    r.AttemptID,
		QuestionID:   r.QuestionID,
		Answer:       json.RawMessage(r.Answer),
		IsCorrect:    r.IsCorrect,
		PointsEarned: r.PointsEarned,
	}
}

type quizRepository struct {
	base
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) quiz.Repository {
	return &quizRepository{base{exec: exec}}
}

// CreateQuiz must run in a transaction.
func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	db := repo.getExec(exec)
	if qz.ID == "" {
		qz.ID = uuid.New().String()
	}

	_, err := namedExec(ctx, db, `
		INSERT INTO quiz (id, course_id, title, description, passing_score, attempts_allowed, created_at, updated_at)
		VALUES (:id, :course_id, :title, :description, :passing_score, :attempts_allowed, :created_at, :updated_at)`,
		newQuizRow(qz))
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}

	for _, q := range qz.Questions {
		_, err = namedExec(ctx, db, `
			INSERT INTO question (id, quiz_id, type, text, points, position)
			VALUES (:id, :quiz_id, :type, :text, :points, :position)`,
			questionRow{ID: q.ID, QuizID: qz.ID, Type: string(q.Type), Text: q.Text, Points: q.Points, Position: q.Position})
		if err != nil {
			return quiz.Quiz{}, errors.Wrap(err, "inserting question")
		}

		for _, opt := range q.Options {
			_, err = namedExec(ctx, db, `
				INSERT INTO question_option (id, question_id, kind, text, position)
				VALUES (:id, :question_id, :kind, :text, :position)`,
				optionRow{ID: opt.ID, QuestionID: q.ID, Kind: opt.Kind, Text: opt.Text, Position: opt.Position})
			if err != nil {
				return quiz.Quiz{}, errors.Wrap(err, "inserting option")
			}
		}

		for _, ca := range q.CorrectAnswers {
			_, err = namedExec(ctx, db, `
				INSERT INTO correct_answer (id, question_id, option_id, match_id, text)
				VALUES (:id, :question_id, :option_id, :match_id, :text)`,
				correctAnswerRow{
					ID:         ca.ID,
					QuestionID: q.ID,
					OptionID:   null.NewString(ca.OptionID, ca.OptionID != ""),
					MatchID:    null.NewString(ca.MatchID, ca.MatchID != ""),
					Text:       null.NewString(ca.Text, ca.Text != ""),
				})
			if err != nil {
				return quiz.Quiz{}, errors.Wrap(err, "inserting correct answer")
			}
		}
	}
	return qz, nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	db := repo.getExec(exec)

	var quizzes []quizRow
	if err := selectAll(ctx, db, &quizzes, `SELECT * FROM quiz WHERE id = $1`, id); err != nil {
		return quiz.Quiz{}, trapNotFound(err, quiz.ErrQuizNotFound, "getting quiz")
	}
	if len(quizzes) == 0 {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	qz := quizzes[0].quiz()

	var questions []questionRow
	if err := selectAll(ctx, db, &questions, `SELECT * FROM question WHERE quiz_id = $1 ORDER BY position`, id); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "getting questions")
	}
	qz.Questions = make([]quiz.Question, 0, len(questions))
	if len(questions) == 0 {
		return qz, nil
	}

	ids := make([]string, 0, len(questions))
	index := make(map[string]int, len(questions))
	for i, r := range questions {
		ids = append(ids, r.ID)
		index[r.ID] = i
		qz.Questions = append(qz.Questions, quiz.Question{
			ID:       r.ID,
			QuizID:   r.QuizID,
			Type:     quiz.QuestionType(r.Type),
			Text:     r.Text,
			Points:   r.Points,
			Position: r.Position,
			Options:  []quiz.Option{},
		})
	}

	var options []optionRow
	if err := selectIn(ctx, db, &options, `SELECT * FROM question_option WHERE question_id IN (?)`, ids); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "getting options")
	}
	for _, r := range options {
		q := &qz.Questions[index[r.QuestionID]]
		q.Options = append(q.Options, quiz.Option{
			ID: r.ID, QuestionID: r.QuestionID, Kind: r.Kind, Text: r.Text, Position: r.Position,
		})
	}

	var answers []correctAnswerRow
	if err := selectIn(ctx, db, &answers, `SELECT * FROM correct_answer WHERE question_id IN (?)`, ids); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "getting correct answers")
	}
	for _, r := range answers {
		q := &qz.Questions[index[r.QuestionID]]
		q.CorrectAnswers = append(q.CorrectAnswers, quiz.CorrectAnswer{
			ID:         r.ID,
			QuestionID: r.QuestionID,
			OptionID:   r.OptionID.String,
			MatchID:    r.MatchID.String,
			Text:       r.Text.String,
		})
	}

	qz.Sort()
	return qz, nil
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	var rows []quizRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		`SELECT * FROM quiz WHERE course_id = $1 ORDER BY created_at`, courseID)
	if err != nil {
		if pgCode(err) == pgInvalidText {
			return []quiz.Quiz{}, nil
		}
		return nil, errors.Wrap(err, "querying quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.quiz())
	}
	return quizzes, nil
}

func (repo *quizRepository) CountFinalizedAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) (int, error) {
	var count int
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM quiz_attempt
		WHERE user_id = $1 AND quiz_id = $2 AND completed_at IS NOT NULL`, userID, quizID,
	).Scan(&count)
	return count, errors.Wrap(err, "counting attempts")
}

func (repo *quizRepository) HasPassedAttempt(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) (bool, error) {
	var passed bool
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM quiz_attempt
			WHERE user_id = $1 AND quiz_id = $2 AND completed_at IS NOT NULL AND passed
		)`, userID, quizID,
	).Scan(&passed)
	return passed, errors.Wrap(err, "checking passed attempts")
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	row := newAttemptRow(a)
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO quiz_attempt (id, user_id, quiz_id, started_at, completed_at, score, passed, earned_points, total_points)
		VALUES (:id, :user_id, :quiz_id, :started_at, :completed_at, :score, :passed, :earned_points, :total_points)`, row)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return row.attempt(), nil
}

func (repo *quizRepository) CreateUserAnswer(ctx context.Context, ua quiz.UserAnswer, exec ...core.DBExecutor) (quiz.UserAnswer, error) {
	if ua.ID == "" {
		ua.ID = uuid.New().String()
	}
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO user_answer (id, attempt_id, question_id, answer, is_correct, points_earned)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		ua.ID, ua.AttemptID, ua.QuestionID, string(ua.Answer), ua.IsCorrect, ua.PointsEarned,
	)
	if err != nil {
		return quiz.UserAnswer{}, errors.Wrap(err, "inserting answer")
	}
	return ua, nil
}

func (repo *quizRepository) FinalizeAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	row := newAttemptRow(a)
	var rows []attemptRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `
		UPDATE quiz_attempt SET completed_at = $2, score = $3, passed = $4, earned_points = $5
		WHERE id = $1
		RETURNING *`,
		row.ID, row.CompletedAt, row.Score, row.Passed, row.EarnedPoints,
	)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "finalizing attempt")
	}
	if len(rows) == 0 {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return rows[0].attempt(), nil
}

func (repo *quizRepository) GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	db := repo.getExec(exec)

	var rows []attemptRow
	if err := selectAll(ctx, db, &rows, `SELECT * FROM quiz_attempt WHERE id = $1`, id); err != nil {
		return quiz.Attempt{}, trapNotFound(err, quiz.ErrAttemptNotFound, "getting attempt")
	}
	if len(rows) == 0 {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	a := rows[0].attempt()

	var answers []userAnswerRow
	err := selectAll(ctx, db, &answers, `
		SELECT ua.* FROM user_answer ua
		JOIN question q ON q.id = ua.question_id
		WHERE ua.attempt_id = $1
		ORDER BY q.position`, id)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "getting answers")
	}
	a.Answers = make([]quiz.UserAnswer, 0, len(answers))
	for _, r := range answers {
		a.Answers = append(a.Answers, r.userAnswer())
	}
	return a, nil
}

func orderBy(ordering []core.DBOrdering, allowed []string, fallback string) string {
	clauses := make([]string, 0, len(ordering))
	for _, o := range ordering {
		if strmangle.SetInclude(o.Field, allowed) {
			clauses = append(clauses, o.String())
		}
	}
	if len(clauses) == 0 {
		return fallback
	}
	return strings.Join(clauses, ", ")
}

func (repo *quizRepository) QueryAttempts(ctx context.Context, filter quiz.AttemptFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]quiz.Attempt, error) {
	var rows []attemptRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `
		SELECT * FROM quiz_attempt
		WHERE user_id = $1 AND quiz_id = $2
		ORDER BY `+orderBy(ordering, attemptOrderColumns, "started_at DESC"), filter.UserID, filter.QuizID)
	if err != nil {
		if pgCode(err) == pgInvalidText {
			return []quiz.Attempt{}, nil
		}
		return nil, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, r.attempt())
	}
	return attempts, nil
}
