// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProductNotFound = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeProviderMissing = "PROVIDER_NOT_CONFIGURED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF            = "CSRF_TOKEN_INVALID"
	ErrCodeStorage         = "STORAGE_UNAVAILABLE"
)

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("Product not found: %s", productID),
		Category: "catalog",
		Action:   "Check the product ID.",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Fix the request body and try again.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Use a public http:// or https:// URL.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewProviderNotConfiguredError は外部IdPが未設定の場合のエラーを生成する。
func NewProviderNotConfiguredError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderMissing,
		Message:  fmt.Sprintf("Sign-in provider is not configured: %s", provider),
		Category: "auth",
		Action:   "Use email and password sign-in.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewStorageUnavailableError はお気に入りの保存に失敗した場合のエラーを生成する。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  "Could not save your favorites.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewCSRFTokenError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed.",
		Category: "validation",
		Action:   "Reload the page and try again.",
	}
}

// PlatformError はIDプラットフォームから返された生のエラー。
// Codeは "auth/wrong-password" のようなSDK形式のコード。
type PlatformError struct {
	Code    string
	Message string
	Cause   error
}

// Error はerrorインターフェースを実装する。
func (e *PlatformError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *PlatformError) Unwrap() error {
	return e.Cause
}
