package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pairquiz/internal/metrics"
	"github.com/hitoshi/pairquiz/internal/middleware"
	"github.com/hitoshi/pairquiz/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker  HealthChecker
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Logger         *slog.Logger

	// メトリクス（nilの場合は記録・公開しない）
	Metrics         middleware.HTTPRecorder
	MetricsGatherer prometheus.Gatherer

	// ユーザー
	UserService UserServiceInterface

	// 質問
	QuestionService QuestionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// POST /api/questions には質問作成専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigins))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	healthHandler := NewHealthHandler(deps.HealthChecker)
	userHandler := NewUserHandler(deps.UserService)
	questionHandler := NewQuestionHandler(deps.QuestionService)

	// --- レート制限の対象外 ---
	r.Get("/", Welcome)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- API ---
	r.Group(func(r chi.Router) {
		var createLimit func(http.Handler) http.Handler
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			createLimit = deps.RateLimiter.QuestionCreateMiddleware()
		}

		r.Route("/api/users", userHandler.mount)
		r.Route("/api/questions", func(r chi.Router) {
			questionHandler.mount(r, createLimit)
		})
	})

	return r
}

// notFound は未定義のエンドポイントに対して統一フォーマットの404を返す。
func notFound(w http.ResponseWriter, r *http.Request) {
	writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
		Kind:     model.KindNotFound,
		Code:     "ENDPOINT_NOT_FOUND",
		Message:  fmt.Sprintf("Endpoint not found: %s %s", r.Method, r.URL.RequestURI()),
		Category: "system",
		Action:   "URLとHTTPメソッドを確認してください。",
	})
}
