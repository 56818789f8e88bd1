package user

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/hitoshi/pairquiz/internal/model"
)

// --- モック ---

// memUserRepo はユーザー名の一意制約を再現するインメモリのUserRepository。
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // username -> user

	listErr error
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[username], nil
}

func (r *memUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memUserRepo) CreateIfNotExists(ctx context.Context, user *model.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Username]; ok {
		return false, nil
	}
	r.users[user.Username] = user
	return true, nil
}

const (
	shivamID = "11111111-1111-4111-8111-111111111111"
	shreyaID = "22222222-2222-4222-8222-222222222222"
)

func seededRepo() *memUserRepo {
	return newMemUserRepo(
		&model.User{ID: shivamID, Username: model.UsernameShivam},
		&model.User{ID: shreyaID, Username: model.UsernameShreya},
	)
}

// --- テスト ---

// TestDirectory_EnsureSeedUsers は空のDBに固定ユーザーが2人作成されることを検証する。
func TestDirectory_EnsureSeedUsers(t *testing.T) {
	repo := newMemUserRepo()
	d := NewDirectory(repo)

	if err := d.EnsureSeedUsers(context.Background()); err != nil {
		t.Fatalf("EnsureSeedUsers returned error: %v", err)
	}

	users, _ := repo.List(context.Background())
	if len(users) != 2 {
		t.Fatalf("user count = %d, want 2", len(users))
	}
	if users[0].Username != model.UsernameShivam || users[1].Username != model.UsernameShreya {
		t.Errorf("usernames = [%s %s], want [Shivam Shreya]", users[0].Username, users[1].Username)
	}
	for _, u := range users {
		if _, ok := model.NormalizeID(u.ID); !ok {
			t.Errorf("seeded user %s has malformed id %q", u.Username, u.ID)
		}
	}
}

// TestDirectory_EnsureSeedUsers_Idempotent は2回目のシードでIDが変わらないことを検証する。
func TestDirectory_EnsureSeedUsers_Idempotent(t *testing.T) {
	repo := newMemUserRepo()
	d := NewDirectory(repo)
	ctx := context.Background()

	if err := d.EnsureSeedUsers(ctx); err != nil {
		t.Fatalf("first EnsureSeedUsers returned error: %v", err)
	}
	before, _ := repo.List(ctx)
	firstIDs := []string{before[0].ID, before[1].ID}

	if err := d.EnsureSeedUsers(ctx); err != nil {
		t.Fatalf("second EnsureSeedUsers returned error: %v", err)
	}
	after, _ := repo.List(ctx)
	if len(after) != 2 {
		t.Fatalf("user count after reseed = %d, want 2", len(after))
	}
	if after[0].ID != firstIDs[0] || after[1].ID != firstIDs[1] {
		t.Error("reseeding changed user ids")
	}
}

// TestDirectory_EnsureSeedUsers_Concurrent は同時起動でも重複しないことを検証する。
func TestDirectory_EnsureSeedUsers_Concurrent(t *testing.T) {
	repo := newMemUserRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- NewDirectory(repo).EnsureSeedUsers(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("EnsureSeedUsers returned error: %v", err)
		}
	}
	users, _ := repo.List(ctx)
	if len(users) != 2 {
		t.Errorf("user count = %d, want 2", len(users))
	}
}

func TestDirectory_EnsureSeedUsers_ListError(t *testing.T) {
	repo := newMemUserRepo()
	repo.listErr = errors.New("connection refused")

	err := NewDirectory(repo).EnsureSeedUsers(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestDirectory_ListUsers(t *testing.T) {
	users, err := NewDirectory(seededRepo()).ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].Username != model.UsernameShivam {
		t.Errorf("first user = %s, want Shivam", users[0].Username)
	}
}

func TestDirectory_ListUsers_EmptyIsNotNil(t *testing.T) {
	users, err := NewDirectory(newMemUserRepo()).ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if users == nil {
		t.Error("ListUsers returned nil slice")
	}
}

func TestDirectory_GetByUsername(t *testing.T) {
	d := NewDirectory(seededRepo())

	tests := []struct {
		name     string
		username string
		wantID   string
		wantKind model.ErrorKind
	}{
		{name: "Shivam", username: "Shivam", wantID: shivamID},
		{name: "Shreya", username: "Shreya", wantID: shreyaID},
		{name: "unknown name", username: "Alice", wantKind: model.KindNotFound},
		{name: "case mismatch", username: "shivam", wantKind: model.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := d.GetByUsername(context.Background(), tt.username)
			if tt.wantKind != "" {
				if model.KindOf(err) != tt.wantKind {
					t.Fatalf("kind = %v, want %v (err=%v)", model.KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetByUsername returned error: %v", err)
			}
			if u.ID != tt.wantID {
				t.Errorf("id = %s, want %s", u.ID, tt.wantID)
			}
		})
	}
}

// TestDirectory_GetByUsername_FixedNameMissing はシード前に固定ユーザー名を引くとNotFoundになることを検証する。
func TestDirectory_GetByUsername_FixedNameMissing(t *testing.T) {
	_, err := NewDirectory(newMemUserRepo()).GetByUsername(context.Background(), model.UsernameShreya)
	if model.KindOf(err) != model.KindNotFound {
		t.Errorf("kind = %v, want NotFound", model.KindOf(err))
	}
}

func TestDirectory_GetByID(t *testing.T) {
	d := NewDirectory(seededRepo())

	tests := []struct {
		name     string
		id       string
		wantName string
		wantKind model.ErrorKind
	}{
		{name: "existing", id: shivamID, wantName: model.UsernameShivam},
		{name: "surrounding spaces", id: " " + shreyaID + " ", wantName: model.UsernameShreya},
		{name: "malformed", id: "not-a-uuid", wantKind: model.KindInvalidArgument},
		{name: "empty", id: "", wantKind: model.KindInvalidArgument},
		{name: "absent", id: "33333333-3333-4333-8333-333333333333", wantKind: model.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := d.GetByID(context.Background(), tt.id)
			if tt.wantKind != "" {
				if model.KindOf(err) != tt.wantKind {
					t.Fatalf("kind = %v, want %v (err=%v)", model.KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetByID returned error: %v", err)
			}
			if u.Username != tt.wantName {
				t.Errorf("username = %s, want %s", u.Username, tt.wantName)
			}
		})
	}
}

func TestDirectory_PartnerOf(t *testing.T) {
	d := NewDirectory(seededRepo())
	ctx := context.Background()

	p, err := d.PartnerOf(ctx, shivamID)
	if err != nil {
		t.Fatalf("PartnerOf(Shivam) returned error: %v", err)
	}
	if p.Username != model.UsernameShreya {
		t.Errorf("partner of Shivam = %s, want Shreya", p.Username)
	}

	p, err = d.PartnerOf(ctx, shreyaID)
	if err != nil {
		t.Fatalf("PartnerOf(Shreya) returned error: %v", err)
	}
	if p.Username != model.UsernameShivam {
		t.Errorf("partner of Shreya = %s, want Shivam", p.Username)
	}
}

// TestDirectory_PartnerOf_InvariantViolation はユーザーが2人でない場合にPartnerNotFoundになることを検証する。
func TestDirectory_PartnerOf_InvariantViolation(t *testing.T) {
	tests := []struct {
		name   string
		repo   *memUserRepo
		userID string
	}{
		{
			name:   "only one user",
			repo:   newMemUserRepo(&model.User{ID: shivamID, Username: model.UsernameShivam}),
			userID: shivamID,
		},
		{
			name:   "caller is not in directory",
			repo:   seededRepo(),
			userID: "33333333-3333-4333-8333-333333333333",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDirectory(tt.repo).PartnerOf(context.Background(), tt.userID)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodePartnerNotFound {
				t.Errorf("code = %s, want %s", apiErr.Code, model.ErrCodePartnerNotFound)
			}
		})
	}
}
