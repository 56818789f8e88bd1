package model

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// 質問と選択肢の制約値
const (
	QuestionTextMinLength = 5
	MinOptions            = 2
	MaxOptions            = 4
)

// Option は質問の選択肢を表す。
// 質問行にJSONB配列として埋め込んで保存する。
type Option struct {
	Text      string `json:"text" validate:"option_text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Answer は回答済み状態を表す。
// 一度設定されたら変更されない。
type Answer struct {
	Correct       bool
	SubmittedText string
}

// QuestionStatus は質問の回答状態を表す。
type QuestionStatus string

const (
	QuestionStatusUnanswered QuestionStatus = "unanswered"
	QuestionStatusCorrect    QuestionStatus = "correct"
	QuestionStatusIncorrect  QuestionStatus = "incorrect"
)

// Question は一方のユーザーがもう一方に出題する4択以下の質問を表す。
// Answerがnilの場合は未回答。
type Question struct {
	ID           string   `validate:"required,uuid"`
	QuestionText string   `validate:"question_text"`
	Options      []Option `validate:"min=2,max=4,one_correct,dive"`
	CreatedBy    string   `validate:"required,uuid"`
	IntendedFor  string   `validate:"required,uuid,nefield=CreatedBy"`
	Answer       *Answer
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// 表示用に解決したユーザー名（読み取り時のみ設定される）
	CreatedByUsername   string
	IntendedForUsername string
}

// Status は質問の回答状態を返す。
func (q *Question) Status() QuestionStatus {
	switch {
	case q.Answer == nil:
		return QuestionStatusUnanswered
	case q.Answer.Correct:
		return QuestionStatusCorrect
	default:
		return QuestionStatusIncorrect
	}
}

// IsAnswered は質問が回答済みかを返す。
func (q *Question) IsAnswered() bool {
	return q.Answer != nil
}

// CorrectOption は正解の選択肢を返す。
// 正解が存在しない場合はfalseを返す。
func (q *Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return Option{}, false
}

// ValidQuestionText は質問文がトリム後に最小文字数を満たすかを返す。
func ValidQuestionText(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= QuestionTextMinLength
}

// ValidOptionText は選択肢のテキストがトリム後に空でないかを返す。
func ValidOptionText(text string) bool {
	return strings.TrimSpace(text) != ""
}

// CountCorrect は正解としてマークされた選択肢の数を返す。
func CountCorrect(options []Option) int {
	n := 0
	for _, opt := range options {
		if opt.IsCorrect {
			n++
		}
	}
	return n
}

// ValidOptionCount は選択肢の数が許容範囲内かを返す。
func ValidOptionCount(n int) bool {
	return n >= MinOptions && n <= MaxOptions
}

// ScoreTally はスコア計算対象の回答済み質問の集計値。
type ScoreTally struct {
	Answered int
	Correct  int
}

// Score はあるユーザーがパートナーをどれだけ知っているかを表す。
type Score struct {
	Percentage    int
	TotalAnswered int
	TotalCorrect  int
	AboutWhom     string
}

// NewScore は集計値からスコアを算出する。
// 回答数が0の場合は0%とする。
func NewScore(tally ScoreTally, aboutWhom string) Score {
	if tally.Answered == 0 {
		return Score{AboutWhom: aboutWhom}
	}
	pct := math.Round(float64(tally.Correct) / float64(tally.Answered) * 100)
	return Score{
		Percentage:    int(pct),
		TotalAnswered: tally.Answered,
		TotalCorrect:  tally.Correct,
		AboutWhom:     aboutWhom,
	}
}
