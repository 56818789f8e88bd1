package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pairquiz/internal/model"
)

// ErrorResponseBody はクイズAPIが返すエラーボディ。
// フロントエンドはcodeで分岐し、messageとactionをそのまま表示する。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// エラー分類ごとのHTTPステータス。未登録の分類は500になる。
var kindStatus = map[model.ErrorKind]int{
	model.KindInvalidArgument: http.StatusBadRequest,
	model.KindNotFound:        http.StatusNotFound,
	model.KindForbidden:       http.StatusForbidden,
	model.KindConflict:        http.StatusConflict,
	model.KindInternal:        http.StatusInternalServerError,
}

// StatusForKind はエラー分類に対応するHTTPステータスコードを返す。
func StatusForKind(kind model.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse はstatusCodeとapiErrからエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write error body", slog.String("code", apiErr.Code), slog.String("error", err.Error()))
	}
}

// WriteAPIError はapiErrの分類からステータスを決めてエラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForKind(apiErr.Kind), apiErr)
}

// WriteInternalServerError は原因を伏せた500を書き込む。原因は呼び出し側でログに残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteAPIError(w, &model.APIError{
		Kind:     model.KindInternal,
		Code:     "INTERNAL_ERROR",
		Message:  "クイズサーバーでエラーが発生しました。",
		Category: "system",
		Action:   "時間をおいてもう一度お試しください。",
	})
}

// WriteRateLimitResponse はクライアントごとのリクエスト上限を超えた場合の429を書き込む。
func WriteRateLimitResponse(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "短時間にリクエストが集中しています。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再送してください。",
	})
}
