package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	questionTypeTag  = "questiontype"
	questionTypeText = "invalid question type, must be one of: multiple_choice, true_false, fill_blank, short_answer, matching"

	choiceOptionsTag  = "choiceoptions"
	choiceOptionsText = "at least 2 options are required"

	choiceCorrectTag  = "choicecorrect"
	choiceCorrectText = "at least 1 option must be correct"

	tfAnswerTag  = "tfanswer"
	tfAnswerText = "the answer (true or false) is required"

	textAnswersTag  = "textanswers"
	textAnswersText = "at least 1 correct answer is required"

	matchPairsTag  = "matchpairs"
	matchPairsText = "at least 2 pairs are required"
)

// InitValidators registers the quiz validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)

	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, choiceOptionsTag, choiceOptionsText)
	core.RegisterCustomTranslation(validate, translator, choiceCorrectTag, choiceCorrectText)
	core.RegisterCustomTranslation(validate, translator, tfAnswerTag, tfAnswerText)
	core.RegisterCustomTranslation(validate, translator, textAnswersTag, textAnswersText)
	core.RegisterCustomTranslation(validate, translator, matchPairsTag, matchPairsText)
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	return QuestionType(fl.Field().String()).IsValid()
}

// questionStructValidation checks that the correct answers match the question type.
func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}

	switch q.Type {
	case MultipleChoice:
		if len(q.Options) < 2 {
			sl.ReportError(q.Options, "options", "Options", choiceOptionsTag, "")
			return
		}
		for _, opt := range q.Options {
			if opt.IsCorrect {
				return
			}
		}
		sl.ReportError(q.Options, "options", "Options", choiceCorrectTag, "")
	case TrueFalse:
		if q.Answer == nil {
			sl.ReportError(q.Answer, "answer", "Answer", tfAnswerTag, "")
		}
	case FillBlank, ShortAnswer:
		if len(q.CorrectAnswers) == 0 {
			sl.ReportError(q.CorrectAnswers, "correctAnswers", "CorrectAnswers", textAnswersTag, "")
		}
	case Matching:
		if len(q.Pairs) < 2 {
			sl.ReportError(q.Pairs, "pairs", "Pairs", matchPairsTag, "")
		}
	}
}
