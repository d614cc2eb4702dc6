package auth

import (
	"errors"
	"strings"

	"github.com/hitoshi/artizone/internal/model"
)

// 正規化後のエラーコード。IDプラットフォームのコードから "auth/" を除いたもの。
const (
	CodeEmailAlreadyInUse     = "email-already-in-use"
	CodeWeakPassword          = "weak-password"
	CodeInvalidEmail          = "invalid-email"
	CodeUserNotFound          = "user-not-found"
	CodeWrongPassword         = "wrong-password"
	CodeUserDisabled          = "user-disabled"
	CodeTooManyRequests       = "too-many-requests"
	CodeNetworkRequestFailed  = "network-request-failed"
	CodePopupClosedByUser     = "popup-closed-by-user"
	CodePopupBlocked          = "popup-blocked"
	CodeCancelledPopupRequest = "cancelled-popup-request"
	CodeNoCurrentUser         = "no-current-user"
	CodeUnknown               = "unknown"

	// CodeInvalidCredential は対応表にないが、HTTPステータスの判定に使用する。
	CodeInvalidCredential = "invalid-credential"
)

const (
	// MessageUnexpected は対応表にないコードのメッセージ。
	MessageUnexpected = "An unexpected error occurred. Please try again."
	// MessageSignInCancelled はユーザーが外部IdPのサインインを中断した場合のメッセージ。
	MessageSignInCancelled = "Sign-in was cancelled."
	// MessageNoCurrentUser はサインアウト状態でユーザー操作を行った場合のメッセージ。
	MessageNoCurrentUser = "No user is currently signed in."
)

// errorMessages はプラットフォームのエラーコードと表示メッセージの対応表。
var errorMessages = map[string]string{
	CodeEmailAlreadyInUse:     "An account with this email already exists.",
	CodeWeakPassword:          "Password should be at least 6 characters.",
	CodeInvalidEmail:          "Please enter a valid email address.",
	CodeUserNotFound:          "No account found with this email address.",
	CodeWrongPassword:         "Incorrect password. Please try again.",
	CodeUserDisabled:          "This account has been disabled.",
	CodeTooManyRequests:       "Too many failed attempts. Please try again later.",
	CodeNetworkRequestFailed:  "Network error. Please check your connection.",
	CodePopupClosedByUser:     "Sign-in popup was closed. Please try again.",
	CodePopupBlocked:          "Sign-in popup was blocked. Please allow popups and try again.",
	CodeCancelledPopupRequest: "Only one popup request is allowed at a time.",
}

// AuthError は正規化された認証エラー。このパッケージの外では生成しない。
type AuthError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// MessageFor はコードに対応する表示メッセージを返す。
// 対応表にないコードはMessageUnexpectedを返す。
func MessageFor(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return MessageUnexpected
}

// normalize は任意のエラーをAuthErrorに変換する。
// プラットフォームのエラーはコードを保持し、それ以外はCodeUnknownになる。
func normalize(err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var platformErr *model.PlatformError
	if errors.As(err, &platformErr) {
		code := strings.TrimPrefix(platformErr.Code, "auth/")
		return &AuthError{Code: code, Message: MessageFor(code), Cause: err}
	}

	return &AuthError{Code: CodeUnknown, Message: MessageUnexpected, Cause: err}
}

// normalizePopup はnormalizeに加え、ユーザーによる中断を専用メッセージに置き換える。
func normalizePopup(err error) *AuthError {
	authErr := normalize(err)
	if authErr.Code == CodePopupClosedByUser || authErr.Code == CodeCancelledPopupRequest {
		return &AuthError{Code: authErr.Code, Message: MessageSignInCancelled, Cause: authErr.Cause}
	}
	return authErr
}

func errNoCurrentUser() *AuthError {
	return &AuthError{Code: CodeNoCurrentUser, Message: MessageNoCurrentUser}
}
