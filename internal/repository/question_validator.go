package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/pairquiz/internal/model"
)

// QuestionValidator は保存直前に質問の不変条件を検証する。
// サービス層と同じ判定関数（model.Valid*）を使うため、両層のルールは一致する。
type QuestionValidator struct {
	validate *validator.Validate
}

// NewQuestionValidator はカスタムルールを登録したQuestionValidatorを生成する。
func NewQuestionValidator() *QuestionValidator {
	v := validator.New()

	v.RegisterValidation("question_text", validateQuestionText)
	v.RegisterValidation("option_text", validateOptionText)
	v.RegisterValidation("one_correct", validateOneCorrect)

	return &QuestionValidator{validate: v}
}

// Validate は質問を検証する。違反がある場合はKindInvalidArgumentのAPIErrorを返す。
func (qv *QuestionValidator) Validate(q *model.Question) error {
	err := qv.validate.Struct(q)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate question: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return model.NewInvalidArgumentError(strings.Join(msgs, " "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "question_text":
		return fmt.Sprintf("質問文は%d文字以上で入力してください。", model.QuestionTextMinLength)
	case "option_text":
		return "選択肢のテキストは空にできません。"
	case "min", "max":
		return fmt.Sprintf("選択肢は%dつから%dつの間で指定してください。", model.MinOptions, model.MaxOptions)
	case "one_correct":
		return "正解の選択肢はちょうど1つ指定してください。"
	case "nefield":
		return "出題者と回答者を同じユーザーにすることはできません。"
	default:
		return fmt.Sprintf("%sの値が不正です。", fe.Field())
	}
}

func validateQuestionText(fl validator.FieldLevel) bool {
	return model.ValidQuestionText(fl.Field().String())
}

func validateOptionText(fl validator.FieldLevel) bool {
	return model.ValidOptionText(fl.Field().String())
}

func validateOneCorrect(fl validator.FieldLevel) bool {
	options, ok := fl.Field().Interface().([]model.Option)
	if !ok {
		return false
	}
	return model.CountCorrect(options) == 1
}
