// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットのレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSONBody はリクエストボディをvにデコードする。
// 解析に失敗した場合は400を書き込みfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("Failed to parse the request body."))
		return false
	}
	return true
}

// authErrorResponse は正規化済み認証エラーのレスポンス。
// messageは画面にそのまま表示する文言。
type authErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// authStatus は正規化済みコードとHTTPステータスの対応。
var authStatus = map[string]int{
	auth.CodeNoCurrentUser:         http.StatusUnauthorized,
	auth.CodeEmailAlreadyInUse:     http.StatusConflict,
	auth.CodeWeakPassword:          http.StatusBadRequest,
	auth.CodeInvalidEmail:          http.StatusBadRequest,
	auth.CodeUserNotFound:          http.StatusUnauthorized,
	auth.CodeWrongPassword:         http.StatusUnauthorized,
	auth.CodeInvalidCredential:     http.StatusUnauthorized,
	auth.CodeUserDisabled:          http.StatusForbidden,
	auth.CodeTooManyRequests:       http.StatusTooManyRequests,
	auth.CodeNetworkRequestFailed:  http.StatusBadGateway,
	auth.CodePopupClosedByUser:     http.StatusBadRequest,
	auth.CodePopupBlocked:          http.StatusBadRequest,
	auth.CodeCancelledPopupRequest: http.StatusBadRequest,
}

// handleAuthError はBridgeから返されたエラーをHTTPレスポンスに変換する。
// *auth.AuthError以外は内部エラーとして扱う。
func handleAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		handleServiceError(w, err)
		return
	}

	status, ok := authStatus[authErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, authErrorResponse{
		Code:     authErr.Code,
		Message:  authErr.Message,
		Category: "auth",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeProviderMissing:
		return http.StatusNotImplemented
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
