package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
)

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	Title           string        `json:"title" validate:"required,notblank,max=200"`
	Description     string        `json:"description" validate:"max=5000"`
	PassingScore    int           `json:"passingScore" validate:"min=0,max=100"`
	AttemptsAllowed int           `json:"attemptsAllowed" validate:"min=0"`
	Questions       []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

// NewQuestion describes a question and its correct answers. Which fields are used depends on Type:
//  - multiple_choice: Options, at least one being correct
//  - true_false: Answer
//  - fill_blank, short_answer: CorrectAnswers
//  - matching: Pairs
type NewQuestion struct {
	Type           QuestionType `json:"type" validate:"required,questiontype"`
	Text           string       `json:"text" validate:"required,notblank"`
	Points         int          `json:"points" validate:"min=1"`
	Options        []NewOption  `json:"options" validate:"omitempty,dive"`
	Answer         *bool        `json:"answer"`
	CorrectAnswers []string     `json:"correctAnswers" validate:"omitempty,dive,notblank"`
	Pairs          []NewPair    `json:"pairs" validate:"omitempty,dive"`
}

type NewOption struct {
	Text      string `json:"text" validate:"required,notblank"`
	IsCorrect bool   `json:"isCorrect"`
}

type NewPair struct {
	Item  string `json:"item" validate:"required,notblank"`
	Match string `json:"match" validate:"required,notblank"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	for i := range nq.Questions {
		q := &nq.Questions[i]
		q.Type = QuestionType(core.CleanString(string(q.Type), true /* lower */))
		q.Text = core.CleanString(q.Text)
		for j := range q.Options {
			q.Options[j].Text = core.CleanString(q.Options[j].Text)
		}
		for j := range q.CorrectAnswers {
			q.CorrectAnswers[j] = core.CleanString(q.CorrectAnswers[j])
		}
		for j := range q.Pairs {
			q.Pairs[j].Item = core.CleanString(q.Pairs[j].Item)
			q.Pairs[j].Match = core.CleanString(q.Pairs[j].Match)
		}
	}
	return validate.Struct(nq)
}

func newID() string {
	return uuid.New().String()
}

// build turns a validated NewQuiz into a Quiz with all IDs set.
// shuffle reorders the match column of matching questions.
func (nq NewQuiz) build(courseID string, now time.Time, shuffle func(n int, swap func(i, j int))) Quiz {
	qz := Quiz{
		ID:              newID(),
		CourseID:        courseID,
		Title:           nq.Title,
		Description:     nq.Description,
		PassingScore:    nq.PassingScore,
		AttemptsAllowed: nq.AttemptsAllowed,
		CreatedAt:       now,
		UpdatedAt:       now,
		Questions:       make([]Question, 0, len(nq.Questions)),
	}

	for pos, nqs := range nq.Questions {
		q := Question{
			ID:       newID(),
			QuizID:   qz.ID,
			Type:     nqs.Type,
			Text:     nqs.Text,
			Points:   nqs.Points,
			Position: pos,
			Options:  []Option{},
		}
		addAnswer := func(ca CorrectAnswer) {
			ca.ID = newID()
			ca.QuestionID = q.ID
			q.CorrectAnswers = append(q.CorrectAnswers, ca)
		}

		switch nqs.Type {
		case MultipleChoice:
			for i, no := range nqs.Options {
				opt := Option{ID: newID(), QuestionID: q.ID, Kind: OptionChoice, Text: no.Text, Position: i}
				q.Options = append(q.Options, opt)
				if no.IsCorrect {
					addAnswer(CorrectAnswer{OptionID: opt.ID})
				}
			}
		case TrueFalse:
			if nqs.Answer != nil && *nqs.Answer {
				addAnswer(CorrectAnswer{Text: "true"})
			}
		case FillBlank, ShortAnswer:
			for _, text := range nqs.CorrectAnswers {
				addAnswer(CorrectAnswer{Text: text})
			}
		case Matching:
			matches := make([]Option, 0, len(nqs.Pairs))
			for i, np := range nqs.Pairs {
				item := Option{ID: newID(), QuestionID: q.ID, Kind: OptionItem, Text: np.Item, Position: i}
				match := Option{ID: newID(), QuestionID: q.ID, Kind: OptionMatch, Text: np.Match}
				q.Options = append(q.Options, item)
				matches = append(matches, match)
				addAnswer(CorrectAnswer{OptionID: item.ID, MatchID: match.ID})
			}
			shuffle(len(matches), func(i, j int) { matches[i], matches[j] = matches[j], matches[i] })
			for i := range matches {
				matches[i].Position = i
			}
			q.Options = append(q.Options, matches...)
		}
		qz.Questions = append(qz.Questions, q)
	}
	return qz
}
