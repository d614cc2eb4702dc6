package handler

import (
	"log/slog"
	"net/http"

	validation "github.com/jellydator/validation"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/model"
)

// URLValidator はユーザー入力URLの安全性を検証する。security.URLGuardが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// UserHandler はサインイン中ユーザーのプロフィールのHTTPハンドラー。
type UserHandler struct {
	sessions  SessionService
	validator URLValidator
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(sessions SessionService, validator URLValidator) *UserHandler {
	return &UserHandler{
		sessions:  sessions,
		validator: validator,
	}
}

// updateProfileRequest はプロフィール部分更新のリクエストボディ。
// 省略したフィールドは変更しない。空文字列は値の削除を表す。
type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (r updateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Length(0, 100)),
		validation.Field(&r.PhotoURL, validation.Length(0, 2048)),
	)
}

// GetProfile はプロフィールを返す。
// GET /api/users/me/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	bridge := h.bridge(r)

	profile, err := bridge.Profile(r.Context())
	if err != nil {
		handleAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile は表示名と画像URLを部分更新し、更新後のプロフィールを返す。
// PATCH /api/users/me/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if req.PhotoURL != nil && *req.PhotoURL != "" {
		if err := h.validator.ValidateURL(*req.PhotoURL); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
			return
		}
	}

	bridge := h.bridge(r)
	update := model.ProfileUpdate{DisplayName: req.DisplayName, PhotoURL: req.PhotoURL}
	if err := bridge.UpdateProfile(r.Context(), update); err != nil {
		handleAuthError(w, err)
		return
	}

	if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" && !update.IsEmpty() {
		if err := h.sessions.SaveSession(r.Context(), sessionID, bridge); err != nil {
			slog.Error("failed to save session after profile update", slog.String("error", err.Error()))
		}
	}

	profile, err := bridge.Profile(r.Context())
	if err != nil {
		handleAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ResendVerification は確認メールを再送信する。
// POST /api/users/me/verification
func (h *UserHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge(r).ResendVerification(r.Context()); err != nil {
		handleAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bridge はリクエストのBridgeを返す。セッションミドルウェアを通過していない場合は
// サインアウト状態のBridgeを返す。
func (h *UserHandler) bridge(r *http.Request) *auth.Bridge {
	if b, ok := middleware.BridgeFromContext(r.Context()); ok {
		return b
	}
	return h.sessions.NewBridge()
}
