package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ClientIDCookieName はブラウザを識別するCookieの名前。
// お気に入りはこのIDごとに保存する。
const ClientIDCookieName = "client_id"

// NewClientIDMiddleware はclient_id Cookieを読み取り、なければUUIDを発行するミドルウェアを返す。
// UUIDとして解釈できない値は破棄して再発行する。
func NewClientIDMiddleware(maxAge int, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(ClientIDCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.NewString()
			}

			// 有効期限は毎回延長する
			http.SetCookie(w, &http.Cookie{
				Name:     ClientIDCookieName,
				Value:    clientID,
				Path:     "/",
				Domain:   cookies.Domain,
				MaxAge:   maxAge,
				HttpOnly: true,
				Secure:   cookies.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}
