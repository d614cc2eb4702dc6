package identity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/artizone/internal/model"
)

// SDK互換のエラーコード。
const (
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeUserDisabled         = "auth/user-disabled"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeUserTokenExpired     = "auth/user-token-expired"
	CodeInvalidUserToken     = "auth/invalid-user-token"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
	CodeMissingPassword      = "auth/missing-password"
	CodeInternalError        = "auth/internal-error"
)

// restErrorCodes はREST APIのエラーメッセージからSDKコードへの対応表。
var restErrorCodes = map[string]string{
	"EMAIL_EXISTS":                CodeEmailAlreadyInUse,
	"WEAK_PASSWORD":               CodeWeakPassword,
	"INVALID_EMAIL":               CodeInvalidEmail,
	"MISSING_EMAIL":               CodeInvalidEmail,
	"EMAIL_NOT_FOUND":             CodeUserNotFound,
	"INVALID_PASSWORD":            CodeWrongPassword,
	"MISSING_PASSWORD":            CodeMissingPassword,
	"USER_DISABLED":               CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"INVALID_IDP_RESPONSE":        CodeInvalidCredential,
	"TOKEN_EXPIRED":               CodeUserTokenExpired,
	"USER_NOT_FOUND":              CodeUserTokenExpired,
	"INVALID_ID_TOKEN":            CodeInvalidUserToken,
	"INVALID_REFRESH_TOKEN":       CodeInvalidUserToken,
	"OPERATION_NOT_ALLOWED":       CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":     CodeOperationNotAllowed,
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeError はエラーレスポンスをPlatformErrorに変換する。
// メッセージは "WEAK_PASSWORD : Password should be at least 6 characters" の形式で、
// " : " より前をコードとして扱う。
func decodeError(status int, body []byte) *model.PlatformError {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Message == "" {
		return &model.PlatformError{
			Code:    CodeInternalError,
			Message: fmt.Sprintf("unexpected status %d", status),
		}
	}

	raw := resp.Error.Message
	reason, detail, _ := strings.Cut(raw, " : ")
	reason = strings.TrimSpace(reason)

	code, ok := restErrorCodes[reason]
	if !ok {
		code = "auth/" + strings.ToLower(strings.ReplaceAll(reason, "_", "-"))
	}

	message := detail
	if message == "" {
		message = raw
	}
	return &model.PlatformError{Code: code, Message: message}
}
