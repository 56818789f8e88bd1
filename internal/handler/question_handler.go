package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// QuestionServiceInterface は質問ハンドラーが必要とするサービスインターフェース。
type QuestionServiceInterface interface {
	// CreateQuestion は質問を検証して作成する。
	CreateQuestion(ctx context.Context, req createQuestionRequest) (*questionResponse, error)
	// ListUnanswered はユーザー宛ての未回答の質問を新しい順に返す。
	ListUnanswered(ctx context.Context, userID string) ([]questionResponse, error)
	// SubmitAnswer は質問への回答を記録し、正誤と正解を返す。
	SubmitAnswer(ctx context.Context, questionID, userID, answerText string) (*answerResponse, error)
	// GetScore はユーザーがパートナーをどれだけ知っているかを返す。
	GetScore(ctx context.Context, userID string) (*scoreResponse, error)
}

// createQuestionRequest は質問作成リクエストのボディ。
// optionsは形式の検証をサービス層に任せるため未解析のまま受け取る。
type createQuestionRequest struct {
	QuestionText      string          `json:"questionText"`
	Options           json.RawMessage `json:"options"`
	CreatedByUserID   string          `json:"createdByUserId"`
	IntendedForUserID string          `json:"intendedForUserId"`
}

// submitAnswerRequest は回答送信リクエストのボディ。
type submitAnswerRequest struct {
	UserID              string `json:"userId"`
	SubmittedAnswerText string `json:"submittedAnswerText"`
}

// optionResponse は選択肢のAPIレスポンス。
type optionResponse struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// questionResponse は質問のAPIレスポンス。
// 出題者と宛先はユーザー名を解決した状態で返す。
type questionResponse struct {
	ID                string           `json:"id"`
	QuestionText      string           `json:"questionText"`
	Options           []optionResponse `json:"options"`
	CreatedBy         userResponse     `json:"createdBy"`
	IntendedFor       userResponse     `json:"intendedFor"`
	AnsweredCorrectly *bool            `json:"answeredCorrectly"`
	SubmittedAnswer   *string          `json:"submittedAnswer"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// answerResponse は回答送信のAPIレスポンス。正誤に関わらず正解を返す。
type answerResponse struct {
	Message           string `json:"message"`
	IsCorrect         bool   `json:"isCorrect"`
	CorrectAnswerText string `json:"correctAnswerText"`
}

// scoreResponse はスコアのAPIレスポンス。
type scoreResponse struct {
	ScorePercentage int    `json:"scorePercentage"`
	TotalAnswered   int    `json:"totalAnswered"`
	TotalCorrect    int    `json:"totalCorrect"`
	AboutWhom       string `json:"aboutWhom"`
}

// QuestionHandler は質問のHTTPハンドラー。
type QuestionHandler struct {
	service QuestionServiceInterface
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(service QuestionServiceInterface) *QuestionHandler {
	return &QuestionHandler{
		service: service,
	}
}

// CreateQuestion は質問を作成する。
// POST /api/questions
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	q, err := h.service.CreateQuestion(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, q)
}

// ListUnanswered はユーザー宛ての未回答の質問一覧を返す。
// GET /api/questions/for/{userId}
func (h *QuestionHandler) ListUnanswered(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListUnanswered(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// SubmitAnswer は質問への回答を送信する。
// POST /api/questions/{questionId}/answer
func (h *QuestionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), chi.URLParam(r, "questionId"), req.UserID, req.SubmittedAnswerText)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetScore はユーザーのスコアを返す。
// GET /api/questions/score/{userId}
func (h *QuestionHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.service.GetScore(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// SetupQuestionRoutes は質問関連のルーティングを設定したchi.Routerを返す。
// createMiddleware が nil でない場合、POST /api/questions に質問作成専用レート制限を適用する。
func SetupQuestionRoutes(service QuestionServiceInterface, createMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewQuestionHandler(service)

	r.Route("/api/questions", func(r chi.Router) {
		h.mount(r, createMiddleware)
	})

	return r
}

func (h *QuestionHandler) mount(r chi.Router, createMiddleware func(http.Handler) http.Handler) {
	if createMiddleware != nil {
		r.With(createMiddleware).Post("/", h.CreateQuestion)
	} else {
		r.Post("/", h.CreateQuestion)
	}

	r.Get("/for/{userId}", h.ListUnanswered)
	r.Post("/{questionId}/answer", h.SubmitAnswer)
	r.Get("/score/{userId}", h.GetScore)
}
