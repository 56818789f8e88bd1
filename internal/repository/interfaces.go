// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/pairquiz/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// List は全ユーザーをユーザー名順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// CreateIfNotExists はユーザーを作成する。
	// 同名のユーザーがすでに存在する場合は何もせずfalseを返す。
	CreateIfNotExists(ctx context.Context, user *model.User) (bool, error)
}

// QuestionRepository は質問データの永続化インターフェース。
type QuestionRepository interface {
	// Create は質問を作成する。保存前に不変条件を再検証する。
	Create(ctx context.Context, question *model.Question) error

	// FindByID は指定IDの質問を出題者・宛先のユーザー名付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Question, error)

	// ListUnansweredFor は指定ユーザー宛ての未回答の質問を作成日時の降順で返す。
	ListUnansweredFor(ctx context.Context, userID string) ([]*model.Question, error)

	// RecordAnswer は未回答の質問にのみ回答を書き込む。
	// すでに回答済みで更新されなかった場合はfalseを返す。
	RecordAnswer(ctx context.Context, questionID string, answer model.Answer) (bool, error)

	// TallyAnswered は createdBy から intendedFor への回答済み質問の件数と正解数を返す。
	TallyAnswered(ctx context.Context, createdBy, intendedFor string) (model.ScoreTally, error)
}
