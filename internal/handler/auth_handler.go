package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	validation "github.com/jellydator/validation"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/model"
)

const oauthStateCookie = "oauth_state"

// SessionService は認証ハンドラーが必要とするログインセッション操作。auth.Serviceが実装する。
type SessionService interface {
	middleware.SessionResolver
	NewBridge() *auth.Bridge
	StartSession(ctx context.Context, b *auth.Bridge) (*model.LoginSession, error)
	SaveSession(ctx context.Context, sessionID string, b *auth.Bridge) error
	EndSession(ctx context.Context, sessionID string, b *auth.Bridge) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	Cookies       middleware.CookieConfig
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインイン・サインアップ・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	sessions SessionService
	google   *auth.GoogleOAuthProvider
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。googleがnilの場合はGoogleサインインを無効にする。
func NewAuthHandler(sessions SessionService, google *auth.GoogleOAuthProvider, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		google:   google,
		config:   config,
	}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Validate は長さの上限のみ検証する。形式の検証はIDプラットフォームに委ね、
// エラーメッセージを正規化表に揃える。
func (r signUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Length(0, 320)),
		validation.Field(&r.Password, validation.Length(0, 4096)),
		validation.Field(&r.FullName, validation.Length(0, 100)),
	)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r signInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Length(0, 320)),
		validation.Field(&r.Password, validation.Length(0, 4096)),
	)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (r passwordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Length(0, 320)),
	)
}

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	State   string         `json:"state"`
	Session *model.Session `json:"session"`
}

// SignUp はアカウントを作成してサインインする。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	bridge := h.sessions.NewBridge()
	if _, err := bridge.SignUp(r.Context(), req.Email, req.Password, req.FullName); err != nil {
		handleAuthError(w, err)
		return
	}

	h.startSession(w, r, bridge, http.StatusCreated)
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	bridge := h.sessions.NewBridge()
	if _, err := bridge.SignIn(r.Context(), req.Email, req.Password); err != nil {
		handleAuthError(w, err)
		return
	}

	h.startSession(w, r, bridge, http.StatusOK)
}

// PasswordReset はパスワードリセットメールを送信する。
// POST /auth/password-reset
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.sessions.NewBridge().ResetPassword(r.Context(), req.Email); err != nil {
		handleAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GoogleLogin はGoogleの同意画面へリダイレクトする。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		handleServiceError(w, model.NewProviderNotConfiguredError(auth.GoogleProviderID))
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はGoogleからのリダイレクトを受け取り、サインインを完了する。
// GET /auth/google/callback?code=xxx&state=yyy
// 成功時はBaseURLへリダイレクトする。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		handleServiceError(w, model.NewProviderNotConfiguredError(auth.GoogleProviderID))
		return
	}

	expectedState := ""
	if cookie, err := r.Cookie(oauthStateCookie); err == nil {
		expectedState = cookie.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	bridge := h.sessions.NewBridge()
	callback := auth.NewGoogleCallback(h.google, r.URL.Query(), expectedState)
	if _, err := bridge.SignInWithGoogle(r.Context(), callback); err != nil {
		handleAuthError(w, err)
		return
	}

	session, err := h.sessions.StartSession(r.Context(), bridge)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.replaceSession(w, r, session)

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はサインアウトしてセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if bridge, ok := middleware.BridgeFromContext(r.Context()); ok {
		sessionID := middleware.SessionIDFromContext(r.Context())
		if err := h.sessions.EndSession(r.Context(), sessionID, bridge); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to end session", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.config.Cookies)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション状態を返す。サインアウト状態ではsessionがnull。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{State: auth.SignedOut.String()}
	if bridge, ok := middleware.BridgeFromContext(r.Context()); ok {
		resp.State = bridge.State().String()
		resp.Session = bridge.CurrentSession()
	}
	writeJSON(w, http.StatusOK, resp)
}

// startSession はサインイン済みのBridgeでログインセッションを発行し、レスポンスを書き込む。
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, bridge *auth.Bridge, status int) {
	session, err := h.sessions.StartSession(r.Context(), bridge)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.replaceSession(w, r, session)

	writeJSON(w, status, sessionResponse{
		State:   bridge.State().String(),
		Session: bridge.CurrentSession(),
	})
}

// replaceSession は以前のセッションを破棄し、新しいセッションCookieを設定する。
func (h *AuthHandler) replaceSession(w http.ResponseWriter, r *http.Request, session *model.LoginSession) {
	if previousID := middleware.SessionIDFromContext(r.Context()); previousID != "" && previousID != session.ID {
		if previous, ok := middleware.BridgeFromContext(r.Context()); ok {
			if err := h.sessions.EndSession(r.Context(), previousID, previous); err != nil {
				slog.Warn("failed to end previous session", slog.String("error", err.Error()))
			}
		}
	}
	middleware.SetSessionCookie(w, session.ID, h.config.SessionMaxAge, h.config.Cookies)
}

// decodeAndValidate はリクエストボディをデコードし、検証に失敗した場合は400を書き込む。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	if !decodeJSONBody(w, r, v) {
		return false
	}
	if err := v.Validate(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return false
	}
	return true
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
