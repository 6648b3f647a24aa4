package quiz

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func newValidator() *validator.Validate {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func failedTags(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "unexpected error: %v", err)
	tags := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		tags = append(tags, fe.Tag())
	}
	return tags
}

func truePtr() *bool {
	b := true
	return &b
}

func TestNewQuiz_Validate(t *testing.T) {
	validate := newValidator()
	valid := func() NewQuiz {
		return NewQuiz{
			Title:        " Quiz ",
			PassingScore: 50,
			Questions:    []NewQuestion{{Type: TrueFalse, Text: "Go is compiled", Points: 1, Answer: truePtr()}},
		}
	}

	tests := []struct {
		name     string
		mutate   func(nq *NewQuiz)
		wantTags []string
	}{
		{name: "valid", mutate: func(nq *NewQuiz) {}},
		{name: "type is case-insensitive", mutate: func(nq *NewQuiz) { nq.Questions[0].Type = " TRUE_FALSE " }},
		{name: "blank title", mutate: func(nq *NewQuiz) { nq.Title = "   " }, wantTags: []string{"required"}},
		{name: "passing score > 100", mutate: func(nq *NewQuiz) { nq.PassingScore = 101 }, wantTags: []string{"max"}},
		{name: "negative attempts", mutate: func(nq *NewQuiz) { nq.AttemptsAllowed = -1 }, wantTags: []string{"min"}},
		{name: "no questions", mutate: func(nq *NewQuiz) { nq.Questions = nil }, wantTags: []string{"required"}},
		{name: "unknown type", mutate: func(nq *NewQuiz) { nq.Questions[0].Type = "essay" }, wantTags: []string{questionTypeTag}},
		{name: "zero points", mutate: func(nq *NewQuiz) { nq.Questions[0].Points = 0 }, wantTags: []string{"min"}},
		{name: "true/false without answer", mutate: func(nq *NewQuiz) { nq.Questions[0].Answer = nil }, wantTags: []string{tfAnswerTag}},
		{
			name: "choice with one option",
			mutate: func(nq *NewQuiz) {
				nq.Questions[0] = NewQuestion{Type: MultipleChoice, Text: "?", Points: 1, Options: []NewOption{{Text: "a", IsCorrect: true}}}
			},
			wantTags: []string{choiceOptionsTag},
		},
		{
			name: "choice without correct option",
			mutate: func(nq *NewQuiz) {
				nq.Questions[0] = NewQuestion{Type: MultipleChoice, Text: "?", Points: 1, Options: []NewOption{{Text: "a"}, {Text: "b"}}}
			},
			wantTags: []string{choiceCorrectTag},
		},
		{
			name:     "fill blank without answers",
			mutate:   func(nq *NewQuiz) { nq.Questions[0] = NewQuestion{Type: FillBlank, Text: "?", Points: 1} },
			wantTags: []string{textAnswersTag},
		},
		{
			name: "matching with one pair",
			mutate: func(nq *NewQuiz) {
				nq.Questions[0] = NewQuestion{Type: Matching, Text: "?", Points: 1, Pairs: []NewPair{{Item: "a", Match: "1"}}}
			},
			wantTags: []string{matchPairsTag},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nq := valid()
			tt.mutate(&nq)
			err := nq.Validate(validate)
			assert.ElementsMatch(t, tt.wantTags, failedTags(t, err))
		})
	}
}

func TestNewQuiz_build(t *testing.T) {
	nq := NewQuiz{
		Title:        "Quiz",
		PassingScore: 60,
		Questions: []NewQuestion{
			{Type: MultipleChoice, Text: "pick", Points: 2, Options: []NewOption{{Text: "a"}, {Text: "b", IsCorrect: true}}},
			{Type: TrueFalse, Text: "yes?", Points: 1, Answer: truePtr()},
			{Type: TrueFalse, Text: "no?", Points: 1, Answer: new(bool)},
			{Type: Matching, Text: "match", Points: 3, Pairs: []NewPair{{Item: "x", Match: "1"}, {Item: "y", Match: "2"}}},
		},
	}
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	now := time.Now().UTC()
	qz := nq.build("crs", now, reverse)

	assert.NotEmpty(t, qz.ID)
	assert.Equal(t, "crs", qz.CourseID)
	assert.Equal(t, now, qz.CreatedAt)
	assert.Equal(t, 7, qz.TotalPoints())
	require.Len(t, qz.Questions, 4)
	for i, q := range qz.Questions {
		assert.Equal(t, i, q.Position)
		assert.Equal(t, qz.ID, q.QuizID)
	}

	mc := qz.Questions[0]
	require.Len(t, mc.CorrectAnswers, 1)
	assert.Equal(t, mc.Options[1].ID, mc.CorrectAnswers[0].OptionID)

	assert.Len(t, qz.Questions[1].CorrectAnswers, 1)
	assert.Empty(t, qz.Questions[2].CorrectAnswers)

	m := qz.Questions[3]
	require.Len(t, m.Options, 4)
	assert.Equal(t, OptionItem, m.Options[0].Kind)
	assert.Equal(t, OptionMatch, m.Options[2].Kind)
	assert.Equal(t, "2", m.Options[2].Text, "match column is shuffled")
	assert.Equal(t, 0, m.Options[2].Position)

	texts := make(map[string]string)
	for _, opt := range m.Options {
		texts[opt.ID] = opt.Text
	}
	require.Len(t, m.CorrectAnswers, 2)
	assert.Equal(t, "1", texts[m.CorrectAnswers[0].MatchID])
	assert.Equal(t, "x", texts[m.CorrectAnswers[0].OptionID])

	ok, err := Grade(m, MatchAnswer{
		{ItemID: m.Options[0].ID, MatchID: m.Options[3].ID},
		{ItemID: m.Options[1].ID, MatchID: m.Options[2].ID},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}
