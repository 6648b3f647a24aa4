package inmemdb

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/quiz"
)

func TestQuizRepository_GetQuiz_copies(t *testing.T) {
	ctx := context.Background()
	repo := NewQuizRepository(NewDB())

	in := quiz.Quiz{
		CourseID: "crs",
		Title:    "Ordering",
		Questions: []quiz.Question{
			{ID: "q2", Type: quiz.MultipleChoice, Position: 2, Points: 1, Options: []quiz.Option{
				{ID: "o2", Text: "b", Position: 2},
				{ID: "o1", Text: "a", Position: 1},
			}},
			{ID: "q1", Type: quiz.TrueFalse, Position: 1, Points: 1},
		},
	}
	created, err := repo.CreateQuiz(ctx, in)
	require.NoError(t, err)
	in.Questions[0].Text = "changed after create"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qz, err := repo.GetQuiz(ctx, created.ID)
			if assert.NoError(t, err) {
				qz.Questions[0].Text = "changed by reader"
			}
		}()
	}
	wg.Wait()

	qz, err := repo.GetQuiz(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, qz.Questions, 2)
	assert.Equal(t, "q1", qz.Questions[0].ID, "sorted by position")
	assert.Empty(t, qz.Questions[0].Text)
	assert.Empty(t, qz.Questions[1].Text)
	assert.Equal(t, "o1", qz.Questions[1].Options[0].ID)

	stored := repo.(*quizRepository).db.data.quizzes[created.ID]
	assert.Equal(t, "q2", stored.Questions[0].ID, "stored order is untouched")
	assert.Equal(t, "o2", stored.Questions[0].Options[0].ID)
}
