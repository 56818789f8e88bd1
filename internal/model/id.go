package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewID は新しいエンティティIDを生成する。
func NewID() string {
	return uuid.NewString()
}

// NormalizeID はIDの形式を検証し、小文字の正規形で返す。
// 前後の空白は無視する。形式が不正な場合はfalseを返す。
func NormalizeID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
