package quiz

import (
	"math"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Short answers are correct when at least 60% of the expected keywords are found.
const (
	keywordMatchNum = 6
	keywordMatchDen = 10
)

// Grade tells whether ans is a correct answer to q.
// It only depends on the question's stored correct answers and the submitted value.
func Grade(q Question, ans Answer) (bool, error) {
	switch q.Type {
	case MultipleChoice:
		a, ok := ans.(ChoiceAnswer)
		if !ok {
			return false, mismatchErr(q, ans)
		}
		return gradeMultipleChoice(q, a), nil
	case TrueFalse:
		a, ok := ans.(BoolAnswer)
		if !ok {
			return false, mismatchErr(q, ans)
		}
		return bool(a) == (len(q.CorrectAnswers) > 0), nil
	case FillBlank:
		a, ok := ans.(TextAnswer)
		if !ok {
			return false, mismatchErr(q, ans)
		}
		return gradeFillBlank(q, a), nil
	case ShortAnswer:
		a, ok := ans.(TextAnswer)
		if !ok {
			return false, mismatchErr(q, ans)
		}
		return gradeShortAnswer(q, a), nil
	case Matching:
		a, ok := ans.(MatchAnswer)
		if !ok {
			return false, mismatchErr(q, ans)
		}
		return gradeMatching(q, a), nil
	default:
		return false, errors.Errorf("grading: unknown question type %q", q.Type)
	}
}

func mismatchErr(q Question, ans Answer) error {
	return errors.Wrapf(ErrInvalidAnswer, "%T does not answer a %s question", ans, q.Type)
}

// gradeMultipleChoice: the set of selected options must equal the set of correct options.
func gradeMultipleChoice(q Question, ans ChoiceAnswer) bool {
	correct := make(map[string]struct{}, len(q.CorrectAnswers))
	for _, ca := range q.CorrectAnswers {
		if ca.OptionID != "" {
			correct[ca.OptionID] = struct{}{}
		}
	}
	selected := make(map[string]struct{}, len(ans))
	for _, id := range ans {
		selected[id] = struct{}{}
	}
	if len(selected) != len(correct) {
		return false
	}
	for id := range selected {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}

func gradeFillBlank(q Question, ans TextAnswer) bool {
	sub := core.CleanString(string(ans), true /* lower */)
	if sub == "" {
		return false
	}
	for _, ca := range q.CorrectAnswers {
		if sub == core.CleanString(ca.Text, true /* lower */) {
			return true
		}
	}
	return false
}

// gradeShortAnswer builds the keyword bag of all correct texts and checks that the
// submission tokens found in the bag reach ceil(60%) of the bag size. Repeated
// tokens count on both sides.
func gradeShortAnswer(q Question, ans TextAnswer) bool {
	var total int
	keywords := make(map[string]struct{})
	for _, ca := range q.CorrectAnswers {
		for _, kw := range tokenize(ca.Text) {
			keywords[kw] = struct{}{}
			total++
		}
	}
	if total == 0 {
		return false
	}

	var matched int
	for _, tok := range tokenize(string(ans)) {
		if _, ok := keywords[tok]; ok {
			matched++
		}
	}
	return matched*keywordMatchDen >= total*keywordMatchNum
}

// tokenize splits s into lower-cased words made of letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

// gradeMatching: same number of pairs and every submitted pair is a correct pair.
func gradeMatching(q Question, ans MatchAnswer) bool {
	correct := make(map[MatchPair]struct{}, len(q.CorrectAnswers))
	for _, ca := range q.CorrectAnswers {
		correct[MatchPair{ItemID: ca.OptionID, MatchID: ca.MatchID}] = struct{}{}
	}
	if len(ans) != len(correct) {
		return false
	}
	seen := make(map[MatchPair]struct{}, len(ans))
	for _, p := range ans {
		if _, ok := correct[p]; !ok {
			return false
		}
		seen[p] = struct{}{}
	}
	return len(seen) == len(correct)
}

// Score returns the rounded percentage of earned points, 0 if there is nothing to earn.
func Score(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(earned) / float64(total)))
}

func IsPassing(score, passingScore int) bool {
	return score >= passingScore
}
