// Package user はユーザーディレクトリのドメインロジックを提供する。
// ユーザーは固定の2人のみで、起動時にシードされる。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pairquiz/internal/model"
	"github.com/hitoshi/pairquiz/internal/repository"
)

// Directory はユーザーの参照とパートナー解決を提供するサービス層。
type Directory struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewDirectory はDirectoryの新しいインスタンスを生成する。
func NewDirectory(userRepo repository.UserRepository) *Directory {
	return &Directory{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// EnsureSeedUsers は固定ユーザーが存在しなければ作成する。
// 作成後にちょうど2人存在することを確認し、そうでなければエラーを返す。
// 何度呼んでも結果は同じ。
func (d *Directory) EnsureSeedUsers(ctx context.Context) error {
	for _, name := range model.FixedUsernames() {
		now := d.now().UTC()
		created, err := d.userRepo.CreateIfNotExists(ctx, &model.User{
			ID:        model.NewID(),
			Username:  name,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("ユーザー %s のシードに失敗しました: %w", name, err)
		}
		if created {
			slog.Info("seeded user", slog.String("username", name))
		}
	}

	users, err := d.userRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if len(users) != len(model.FixedUsernames()) {
		return fmt.Errorf("ユーザー数が不正です: got %d, want %d", len(users), len(model.FixedUsernames()))
	}

	return nil
}

// ListUsers は全ユーザーをユーザー名順で返す。
func (d *Directory) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := d.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// GetByUsername はユーザー名でユーザーを取得する。
// 固定ユーザー名以外はDBを参照せずにNotFoundを返す。
func (d *Directory) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if !model.IsFixedUsername(username) {
		return nil, model.NewUserNotFoundError(fmt.Sprintf("ユーザーが見つかりません: %s", username))
	}

	u, err := d.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(fmt.Sprintf("ユーザーが見つかりません: %s", username))
	}
	return u, nil
}

// GetByID はIDでユーザーを取得する。
func (d *Directory) GetByID(ctx context.Context, userID string) (*model.User, error) {
	id, ok := model.NormalizeID(userID)
	if !ok {
		return nil, model.NewInvalidArgumentError("ユーザーIDの形式が不正です。")
	}

	u, err := d.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError("指定されたユーザーが見つかりません。")
	}
	return u, nil
}

// PartnerOf は指定ユーザーではないもう一方のユーザーを返す。
// ユーザーがちょうど2人でない場合はPartnerNotFoundを返す。
func (d *Directory) PartnerOf(ctx context.Context, userID string) (*model.User, error) {
	users, err := d.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if len(users) != 2 {
		slog.Error("ユーザー数が2人ではありません", slog.Int("count", len(users)))
		return nil, model.NewPartnerNotFoundError()
	}

	switch userID {
	case users[0].ID:
		return users[1], nil
	case users[1].ID:
		return users[0], nil
	default:
		return nil, model.NewPartnerNotFoundError()
	}
}
