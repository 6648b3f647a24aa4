package quiz

import (
	"encoding/json"
	"sort"
	"time"
)

type QuestionType string

// Question types
const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillBlank      QuestionType = "fill_blank"
	ShortAnswer    QuestionType = "short_answer"
	Matching       QuestionType = "matching"
)

var QuestionTypes = []QuestionType{MultipleChoice, TrueFalse, FillBlank, ShortAnswer, Matching}

func (t QuestionType) IsValid() bool {
	for _, qt := range QuestionTypes {
		if t == qt {
			return true
		}
	}
	return false
}

// Option kinds
const (
	OptionChoice = ""      // multiple_choice option
	OptionItem   = "item"  // matching, left column
	OptionMatch  = "match" // matching, right column
)

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"-"`
	Kind       string `json:"kind,omitempty"`
	Text       string `json:"text"`
	Position   int    `json:"position"`
}

// CorrectAnswer references an option (multiple_choice), an item/match pair (matching)
// or holds a literal text (fill_blank, short_answer, true_false).
// A true_false question is true iff it has at least one CorrectAnswer.
type CorrectAnswer struct {
	ID         string `json:"id"`
	QuestionID string `json:"-"`
	OptionID   string `json:"optionId,omitempty"`
	MatchID    string `json:"matchId,omitempty"`
	Text       string `json:"text,omitempty"`
}

type Question struct {
	ID             string          `json:"id"`
	QuizID         string          `json:"-"`
	Type           QuestionType    `json:"type"`
	Text           string          `json:"text"`
	Points         int             `json:"points"`
	Position       int             `json:"position"`
	Options        []Option        `json:"options"`
	CorrectAnswers []CorrectAnswer `json:"correctAnswers,omitempty"`
}

type Quiz struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"courseId"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	PassingScore    int        `json:"passingScore"`    // percentage
	AttemptsAllowed int        `json:"attemptsAllowed"` // 0 = unlimited
	CreatedAt       time.Time  `json:"createdAt"`       // UTC
	UpdatedAt       time.Time  `json:"updatedAt"`       // UTC
	Questions       []Question `json:"questions,omitempty"`
}

// TotalPoints is the sum of all question points.
func (qz Quiz) TotalPoints() int {
	var total int
	for _, q := range qz.Questions {
		total += q.Points
	}
	return total
}

func (qz Quiz) Question(id string) (Question, bool) {
	for _, q := range qz.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Sort orders questions and options by position.
func (qz *Quiz) Sort() {
	sort.SliceStable(qz.Questions, func(i, j int) bool { return qz.Questions[i].Position < qz.Questions[j].Position })
	for i := range qz.Questions {
		opts := qz.Questions[i].Options
		sort.SliceStable(opts, func(i, j int) bool {
			if opts[i].Kind != opts[j].Kind {
				return opts[i].Kind < opts[j].Kind
			}
			return opts[i].Position < opts[j].Position
		})
	}
}

// LearnerView returns a copy of the quiz without the correct answers.
func (qz Quiz) LearnerView() Quiz {
	view := qz
	view.Questions = make([]Question, len(qz.Questions))
	for i, q := range qz.Questions {
		q.CorrectAnswers = nil
		if q.Options == nil {
			q.Options = []Option{}
		}
		view.Questions[i] = q
	}
	return view
}

type Attempt struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	QuizID       string       `json:"quizId"`
	StartedAt    time.Time    `json:"startedAt"`   // UTC
	CompletedAt  *time.Time   `json:"completedAt"` // UTC; nil until finalized
	Score        *int         `json:"score"`
	Passed       *bool        `json:"passed"`
	EarnedPoints int          `json:"earnedPoints"`
	TotalPoints  int          `json:"totalPoints"`
	Answers      []UserAnswer `json:"answers,omitempty"`
}

func (a Attempt) IsFinalized() bool {
	return a.CompletedAt != nil
}

func (a Attempt) IsPassed() bool {
	return a.Passed != nil && *a.Passed
}

// TimeTaken is the duration between start and completion, 0 if not finalized.
func (a Attempt) TimeTaken() time.Duration {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt)
}

// UserAnswer is the graded answer to one question of an attempt. It is never updated.
type UserAnswer struct {
	ID           string          `json:"id"`
	AttemptID    string          `json:"attemptId"`
	QuestionID   string          `json:"questionId"`
	Answer       json.RawMessage `json:"answer"`
	IsCorrect    bool            `json:"isCorrect"`
	PointsEarned int             `json:"pointsEarned"`
}

type AttemptFilter struct {
	UserID string
	QuizID string
}

type Stats struct {
	QuizID       string          `json:"quizId"`
	Attempts     int             `json:"attempts"`
	Learners     int             `json:"learners"`
	AverageScore float64         `json:"averageScore"`
	PassRate     float64         `json:"passRate"` // 0 - 1
	Questions    []QuestionStats `json:"questions"`
}

type QuestionStats struct {
	QuestionID  string  `json:"questionId"`
	Answered    int     `json:"answered"`
	Correct     int     `json:"correct"`
	CorrectRate float64 `json:"correctRate"` // 0 - 1
}
