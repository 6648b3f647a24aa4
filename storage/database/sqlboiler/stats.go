package boiledrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/quiz"
)

type statsRepository struct {
	exec core.DBExecutor
}

var _ quiz.StatsRepository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) quiz.StatsRepository {
	return &statsRepository{exec: exec}
}

func (repo statsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// QuizStats aggregates the finalized attempts of a quiz.
func (repo statsRepository) QuizStats(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Stats, error) {
	var totals struct {
		Attempts     int          `boil:"attempts"`
		Learners     int          `boil:"learners"`
		AverageScore null.Float64 `boil:"average_score"`
		PassRate     null.Float64 `boil:"pass_rate"`
	}
	err := queries.Raw(`
		SELECT COUNT(*) AS attempts,
			COUNT(DISTINCT user_id) AS learners,
			AVG(score)::float8 AS average_score,
			AVG(CASE WHEN passed THEN 1 ELSE 0 END)::float8 AS pass_rate
		FROM quiz_attempt
		WHERE quiz_id = $1 AND completed_at IS NOT NULL`, qz.ID,
	).Bind(ctx, repo.getExec(exec), &totals)
	if err != nil {
		return quiz.Stats{}, errors.Wrap(err, "aggregating attempts")
	}

	var perQuestion []struct {
		QuestionID string `boil:"question_id"`
		Answered   int    `boil:"answered"`
		Correct    int    `boil:"correct"`
	}
	err = queries.Raw(`
		SELECT ua.question_id::text AS question_id,
			COUNT(*) AS answered,
			COUNT(*) FILTER (WHERE ua.is_correct) AS correct
		FROM user_answer ua
		JOIN quiz_attempt qa ON qa.id = ua.attempt_id
		WHERE qa.quiz_id = $1 AND qa.completed_at IS NOT NULL
		GROUP BY ua.question_id`, qz.ID,
	).Bind(ctx, repo.getExec(exec), &perQuestion)
	if err != nil {
		return quiz.Stats{}, errors.Wrap(err, "aggregating answers")
	}

	stats := quiz.Stats{
		QuizID:       qz.ID,
		Attempts:     totals.Attempts,
		Learners:     totals.Learners,
		AverageScore: totals.AverageScore.Float64,
		PassRate:     totals.PassRate.Float64,
		Questions:    make([]quiz.QuestionStats, 0, len(qz.Questions)),
	}
	byQuestion := make(map[string]quiz.QuestionStats, len(perQuestion))
	for _, pq := range perQuestion {
		qs := quiz.QuestionStats{QuestionID: pq.QuestionID, Answered: pq.Answered, Correct: pq.Correct}
		if qs.Answered > 0 {
			qs.CorrectRate = float64(qs.Correct) / float64(qs.Answered)
		}
		byQuestion[pq.QuestionID] = qs
	}
	for _, q := range qz.Questions {
		qs, ok := byQuestion[q.ID]
		if !ok {
			qs = quiz.QuestionStats{QuestionID: q.ID}
		}
		stats.Questions = append(stats.Questions, qs)
	}
	return stats, nil
}
