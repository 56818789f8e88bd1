// Package model はドメインモデルを定義する。
package model

import "time"

// 固定ユーザー名。ユーザーはこの2人のみ。
const (
	UsernameShivam = "Shivam"
	UsernameShreya = "Shreya"
)

// FixedUsernames はシード対象のユーザー名一覧を返す。
func FixedUsernames() []string {
	return []string{UsernameShivam, UsernameShreya}
}

// IsFixedUsername は指定した名前が固定ユーザー名のいずれかであるかを返す。
func IsFixedUsername(name string) bool {
	return name == UsernameShivam || name == UsernameShreya
}

// User はクイズに参加するユーザーを表す。
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
