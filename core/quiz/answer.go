package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

var ErrInvalidAnswer = errors.New("invalid answer")

// Answer is a submitted answer, decoded according to the question type.
// It is one of ChoiceAnswer, BoolAnswer, TextAnswer or MatchAnswer.
type Answer interface {
	answer()
}

type (
	// ChoiceAnswer holds the selected option IDs of a multiple_choice question.
	ChoiceAnswer []string

	// BoolAnswer answers a true_false question.
	BoolAnswer bool

	// TextAnswer answers fill_blank and short_answer questions.
	TextAnswer string

	// MatchAnswer holds the item -> match pairs of a matching question.
	MatchAnswer []MatchPair

	MatchPair struct {
		ItemID  string `json:"itemId"`
		MatchID string `json:"matchId"`
	}
)

func (ChoiceAnswer) answer() {}
func (BoolAnswer) answer()   {}
func (TextAnswer) answer()   {}
func (MatchAnswer) answer()  {}

var jsonNull = []byte("null")

// DecodeAnswer decodes a raw JSON answer into the Answer variant expected by the question type.
// A multiple_choice answer may be a single option ID or a list of option IDs.
func DecodeAnswer(qt QuestionType, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return nil, errors.Wrap(ErrInvalidAnswer, "answer is required")
	}

	switch qt {
	case MultipleChoice:
		if raw[0] == '"' {
			var id string
			if err := json.Unmarshal(raw, &id); err != nil {
				return nil, decodeErr(qt)
			}
			return ChoiceAnswer{id}, nil
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, decodeErr(qt)
		}
		return ChoiceAnswer(ids), nil
	case TrueFalse:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, decodeErr(qt)
		}
		return BoolAnswer(b), nil
	case FillBlank, ShortAnswer:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, decodeErr(qt)
		}
		return TextAnswer(s), nil
	case Matching:
		var pairs []MatchPair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, decodeErr(qt)
		}
		for _, p := range pairs {
			if p.ItemID == "" || p.MatchID == "" {
				return nil, errors.Wrap(ErrInvalidAnswer, "itemId and matchId are required")
			}
		}
		return MatchAnswer(pairs), nil
	default:
		return nil, errors.Wrapf(ErrInvalidAnswer, "unknown question type %q", qt)
	}
}

func decodeErr(qt QuestionType) error {
	var want string
	switch qt {
	case MultipleChoice:
		want = "an option ID or a list of option IDs"
	case TrueFalse:
		want = "a boolean"
	case FillBlank, ShortAnswer:
		want = "a string"
	case Matching:
		want = "a list of {itemId, matchId} pairs"
	}
	return errors.Wrap(ErrInvalidAnswer, fmt.Sprintf("%s answer must be %s", qt, want))
}
