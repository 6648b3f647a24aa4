package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/quiz"
)

type quizRepository struct {
	db *DB
}

var (
	// interface compliance checks
	_ quiz.Repository      = (*quizRepository)(nil)
	_ quiz.StatsRepository = (*quizRepository)(nil)
)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func NewStatsRepository(db *DB) quiz.StatsRepository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuiz(_ context.Context, qz quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if qz.ID == "" {
		qz.ID = newID()
	}
	repo.db.data.quizzes[qz.ID] = copyQuiz(qz)
	return qz, nil
}

// copyQuiz copies the questions of qz so that the stored quiz never shares them with callers.
func copyQuiz(qz quiz.Quiz) quiz.Quiz {
	if qz.Questions == nil {
		return qz
	}
	questions := make([]quiz.Question, len(qz.Questions))
	for i, q := range qz.Questions {
		if q.Options != nil {
			q.Options = append([]quiz.Option(nil), q.Options...)
		}
		if q.CorrectAnswers != nil {
			q.CorrectAnswers = append([]quiz.CorrectAnswer(nil), q.CorrectAnswers...)
		}
		questions[i] = q
	}
	qz.Questions = questions
	return qz
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qz, ok := repo.db.data.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	qz = copyQuiz(qz)
	qz.Sort()
	return qz, nil
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, courseID string, _ ...core.DBExecutor) ([]quiz.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.data.quizzes {
		if qz.CourseID == courseID {
			qz.Questions = nil
			quizzes = append(quizzes, qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) userAttempts(userID, quizID string) []quiz.Attempt {
	attempts := make([]quiz.Attempt, 0)
	for _, a := range repo.db.data.attempts {
		if (userID == "" || a.UserID == userID) && (quizID == "" || a.QuizID == quizID) {
			attempts = append(attempts, a)
		}
	}
	return attempts
}

func (repo *quizRepository) CountFinalizedAttempts(_ context.Context, userID, quizID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, a := range repo.userAttempts(userID, quizID) {
		if a.IsFinalized() {
			count++
		}
	}
	return count, nil
}

func (repo *quizRepository) HasPassedAttempt(_ context.Context, userID, quizID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, a := range repo.userAttempts(userID, quizID) {
		if a.IsFinalized() && a.IsPassed() {
			return true, nil
		}
	}
	return false, nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if a.ID == "" {
		a.ID = newID()
	}
	a.Answers = nil
	repo.db.data.attempts[a.ID] = a
	return a, nil
}

func (repo *quizRepository) CreateUserAnswer(_ context.Context, ua quiz.UserAnswer, _ ...core.DBExecutor) (quiz.UserAnswer, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.attempts[ua.AttemptID]; !ok {
		return quiz.UserAnswer{}, quiz.ErrAttemptNotFound
	}
	if ua.ID == "" {
		ua.ID = newID()
	}
	repo.db.data.answers[ua.ID] = ua
	return ua, nil
}

func (repo *quizRepository) FinalizeAttempt(_ context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.data.attempts[a.ID]
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	stored.CompletedAt = a.CompletedAt
	stored.Score = a.Score
	stored.Passed = a.Passed
	stored.EarnedPoints = a.EarnedPoints
	repo.db.data.attempts[a.ID] = stored
	return stored, nil
}

func (repo *quizRepository) GetAttempt(_ context.Context, id string, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	a, ok := repo.db.data.attempts[id]
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	a.Answers = make([]quiz.UserAnswer, 0)
	for _, ua := range repo.db.data.answers {
		if ua.AttemptID == id {
			a.Answers = append(a.Answers, ua)
		}
	}
	sort.Slice(a.Answers, func(i, j int) bool { return a.Answers[i].QuestionID < a.Answers[j].QuestionID })
	return a, nil
}

func (repo *quizRepository) QueryAttempts(_ context.Context, filter quiz.AttemptFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]quiz.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := repo.userAttempts(filter.UserID, filter.QuizID)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "started_at"}}
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		for _, o := range ordering {
			c := compareAttempts(attempts[i], attempts[j], o.Field)
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return attempts, nil
}

// compareAttempts compares a & b on a column, nil values first.
func compareAttempts(a, b quiz.Attempt, field string) int {
	switch field {
	case "started_at":
		return compareTime(a.StartedAt.UnixNano(), b.StartedAt.UnixNano())
	case "completed_at":
		var ta, tb int64 = -1, -1
		if a.CompletedAt != nil {
			ta = a.CompletedAt.UnixNano()
		}
		if b.CompletedAt != nil {
			tb = b.CompletedAt.UnixNano()
		}
		return compareTime(ta, tb)
	case "score":
		sa, sb := -1, -1
		if a.Score != nil {
			sa = *a.Score
		}
		if b.Score != nil {
			sb = *b.Score
		}
		return compareTime(int64(sa), int64(sb))
	}
	return 0
}

func compareTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *quizRepository) QuizStats(_ context.Context, qz quiz.Quiz, _ ...core.DBExecutor) (quiz.Stats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stats := quiz.Stats{QuizID: qz.ID, Questions: make([]quiz.QuestionStats, 0, len(qz.Questions))}
	learners := make(map[string]struct{})
	attemptIDs := make(map[string]struct{})
	var totalScore, passed int
	for _, a := range repo.userAttempts("", qz.ID) {
		if !a.IsFinalized() {
			continue
		}
		stats.Attempts++
		learners[a.UserID] = struct{}{}
		attemptIDs[a.ID] = struct{}{}
		if a.Score != nil {
			totalScore += *a.Score
		}
		if a.IsPassed() {
			passed++
		}
	}
	stats.Learners = len(learners)
	if stats.Attempts > 0 {
		stats.AverageScore = float64(totalScore) / float64(stats.Attempts)
		stats.PassRate = float64(passed) / float64(stats.Attempts)
	}

	perQuestion := make(map[string]*quiz.QuestionStats, len(qz.Questions))
	for _, q := range qz.Questions {
		stats.Questions = append(stats.Questions, quiz.QuestionStats{QuestionID: q.ID})
		perQuestion[q.ID] = &stats.Questions[len(stats.Questions)-1]
	}
	for _, ua := range repo.db.data.answers {
		if _, ok := attemptIDs[ua.AttemptID]; !ok {
			continue
		}
		if qs, ok := perQuestion[ua.QuestionID]; ok {
			qs.Answered++
			if ua.IsCorrect {
				qs.Correct++
			}
		}
	}
	for i := range stats.Questions {
		if qs := &stats.Questions[i]; qs.Answered > 0 {
			qs.CorrectRate = float64(qs.Correct) / float64(qs.Answered)
		}
	}
	return stats, nil
}
