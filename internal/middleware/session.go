// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/artizone/internal/auth"
)

// SessionCookieName はログインセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	bridgeContextKey    = contextKey("auth_bridge")
	sessionIDContextKey = contextKey("session_id")
	clientIDContextKey  = contextKey("client_id")
)

// SessionResolver はセッションIDからBridgeを復元する。
// auth.Serviceの部分集合として定義する。
type SessionResolver interface {
	ResumeSession(ctx context.Context, sessionID string) (*auth.Bridge, error)
}

// CookieConfig はアプリケーションが発行するCookieの共通属性。
type CookieConfig struct {
	Domain string
	Secure bool
}

// NewSessionMiddleware はHTTP Only CookieのセッションIDからBridgeを復元し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、またはセッションが無効な場合はサインアウト状態のBridgeを注入する。
// 無効になったセッションのCookieは削除する。
func NewSessionMiddleware(resolver SessionResolver, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				sessionID = cookie.Value
			}

			bridge, err := resolver.ResumeSession(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to resume session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if sessionID != "" && bridge.State() == auth.SignedOut {
				ClearSessionCookie(w, cookies)
				sessionID = ""
			}

			ctx := ContextWithSession(r.Context(), sessionID, bridge)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BridgeFromContext はリクエストコンテキストからBridgeを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func BridgeFromContext(ctx context.Context) (*auth.Bridge, bool) {
	b, ok := ctx.Value(bridgeContextKey).(*auth.Bridge)
	return b, ok && b != nil
}

// SessionIDFromContext はリクエストコンテキストからログインセッションIDを取得する。
// サインアウト状態の場合は空文字列。
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}

// ContextWithSession はコンテキストにセッションIDとBridgeを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sessionID string, b *auth.Bridge) context.Context {
	ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	return context.WithValue(ctx, bridgeContextKey, b)
}

// SetSessionCookie はログインセッションCookieを設定する。
func SetSessionCookie(w http.ResponseWriter, sessionID string, maxAge int, cookies CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はログインセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cookies CookieConfig) {
	SetSessionCookie(w, "", -1, cookies)
}
