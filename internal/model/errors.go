// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。
// HTTPステータスへの変換はハンドラー層が行う。
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindNotFound        ErrorKind = "not_found"
	KindForbidden       ErrorKind = "forbidden"
	KindConflict        ErrorKind = "conflict"
	KindInternal        ErrorKind = "internal"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー分類
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: validation, user, question, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodePartnerNotFound      = "PARTNER_NOT_FOUND"
	ErrCodeQuestionNotFound     = "QUESTION_NOT_FOUND"
	ErrCodeNotIntendedRecipient = "NOT_INTENDED_RECIPIENT"
	ErrCodeAlreadyAnswered      = "ALREADY_ANSWERED"
	ErrCodeDataCorrupted        = "DATA_CORRUPTED"
)

// KindOf はエラーの分類を返す。
// APIErrorでないエラーはすべてKindInternalとして扱う。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// NewInvalidArgumentError は入力値不正エラーを生成する。
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Kind:     KindInvalidArgument,
		Code:     ErrCodeInvalidArgument,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(message string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  message,
		Category: "user",
		Action:   "ユーザーを選択し直してください。",
	}
}

// NewPartnerNotFoundError はパートナーを特定できない場合のエラーを生成する。
// ユーザーがちょうど2人存在するという前提が崩れていることを示す。
func NewPartnerNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodePartnerNotFound,
		Message:  "パートナーのユーザーが見つからないため、スコアを計算できません。",
		Category: "user",
		Action:   "管理者に連絡してください。",
	}
}

// NewQuestionNotFoundError は質問が見つからない場合のエラーを生成する。
func NewQuestionNotFoundError(questionID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeQuestionNotFound,
		Message:  fmt.Sprintf("指定された質問が見つかりません: %s", questionID),
		Category: "question",
		Action:   "質問一覧を再読み込みしてください。",
	}
}

// NewNotIntendedRecipientError は回答者が質問の宛先でない場合のエラーを生成する。
func NewNotIntendedRecipientError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeNotIntendedRecipient,
		Message:  "この質問に回答できるのは宛先のユーザーのみです。",
		Category: "question",
		Action:   "自分宛ての質問を選択してください。",
	}
}

// NewAlreadyAnsweredError は回答済みの質問に再回答しようとした場合のエラーを生成する。
func NewAlreadyAnsweredError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAlreadyAnswered,
		Message:  "この質問はすでに回答済みです。",
		Category: "question",
		Action:   "質問一覧を再読み込みしてください。",
	}
}

// NewDataCorruptedError は保存済みデータの不変条件が崩れている場合のエラーを生成する。
func NewDataCorruptedError() *APIError {
	return &APIError{
		Kind:     KindInternal,
		Code:     ErrCodeDataCorrupted,
		Message:  "質問データが破損しています。",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}
