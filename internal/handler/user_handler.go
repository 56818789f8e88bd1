package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// ListUsers は全ユーザーを返す。
	ListUsers(ctx context.Context) ([]userResponse, error)
	// GetByUsername はユーザー名でユーザーを取得する。
	GetByUsername(ctx context.Context, username string) (*userResponse, error)
	// GetByID はIDでユーザーを取得する。
	GetByID(ctx context.Context, userID string) (*userResponse, error)
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserHandler はユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// ListUsers はユーザー一覧を返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetByUsername はユーザー名でユーザーを返す。
// GET /api/users/{username}
func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetByID はIDでユーザーを返す。
// GET /api/users/id/{userId}
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByID(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// SetupUserRoutes はユーザー参照関連のルーティングを設定したchi.Routerを返す。
func SetupUserRoutes(service UserServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewUserHandler(service)

	r.Route("/api/users", func(r chi.Router) {
		h.mount(r)
	})

	return r
}

func (h *UserHandler) mount(r chi.Router) {
	r.Get("/", h.ListUsers)
	// /id/{userId} は /{username} より優先してマッチする
	r.Get("/id/{userId}", h.GetByID)
	r.Get("/{username}", h.GetByUsername)
}
