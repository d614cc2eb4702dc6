// Package auth はIDプラットフォームとアプリケーションの間の認証ブリッジ、
// エラー正規化、Googleサインイン、サーバー側ログインセッション管理を提供する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/model"
)

// Platform はIDプラットフォームの機能。
type Platform interface {
	CreateAccount(ctx context.Context, email, password string) (*model.IdentityUser, error)
	SignIn(ctx context.Context, email, password string) (*model.IdentityUser, error)
	SignInWithPopup(ctx context.Context, provider PopupProvider) (*model.IdentityUser, error)
	// UpdateProfile はuserのプロフィールを部分更新し、userを更新後の値に書き換える。
	UpdateProfile(ctx context.Context, user *model.IdentityUser, update model.ProfileUpdate) error
	SendVerificationEmail(ctx context.Context, user *model.IdentityUser) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	// CurrentUser は現在ユーザーを返す。サインアウト状態の場合はnil。
	CurrentUser() *model.IdentityUser
	// OnAuthStateChanged は認証状態のリスナーを登録し、登録解除関数を返す。
	OnAuthStateChanged(listener func(*model.IdentityUser)) (unsubscribe func())
}

// PopupProvider は外部IdPのサインインフローを完了し、資格情報を返す。
// ユーザーが中断した場合はコード auth/popup-closed-by-user 等のmodel.PlatformErrorを返す。
type PopupProvider interface {
	Credential(ctx context.Context) (model.IdpCredential, error)
}

// State はセッションの有無。
type State int

const (
	SignedOut State = iota
	SignedIn
)

func (s State) String() string {
	if s == SignedIn {
		return "signed_in"
	}
	return "signed_out"
}

// Bridge はPlatformの呼び出しとエラー正規化を行う。
// 返すエラーはすべて*AuthError。
type Bridge struct {
	platform Platform
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewBridge はBridgeを生成する。recorder、loggerがnilの場合は既定値を使用する。
func NewBridge(platform Platform, recorder metrics.Recorder, logger *slog.Logger) *Bridge {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{platform: platform, recorder: recorder, logger: logger}
}

// SignUp はアカウントを作成する。fullNameが空でなければ表示名に設定し、確認メールを送信する。
func (b *Bridge) SignUp(ctx context.Context, email, password, fullName string) (*model.Session, error) {
	user, err := b.platform.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, b.fail("sign_up", normalize(err))
	}

	if fullName != "" {
		if err := b.platform.UpdateProfile(ctx, user, model.ProfileUpdate{DisplayName: &fullName}); err != nil {
			return nil, b.fail("sign_up", normalize(err))
		}
	}

	if err := b.platform.SendVerificationEmail(ctx, user); err != nil {
		return nil, b.fail("sign_up", normalize(err))
	}

	return toSession(user), nil
}

// SignIn はメールアドレスとパスワードでサインインする。
func (b *Bridge) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := b.platform.SignIn(ctx, email, password)
	if err != nil {
		return nil, b.fail("sign_in", normalize(err))
	}
	return toSession(user), nil
}

// SignInWithGoogle は外部IdPのサインインフローの結果でサインインする。
// ユーザーによる中断もAuthErrorとして返す。
func (b *Bridge) SignInWithGoogle(ctx context.Context, provider PopupProvider) (*model.Session, error) {
	user, err := b.platform.SignInWithPopup(ctx, provider)
	if err != nil {
		return nil, b.fail("sign_in_with_google", normalizePopup(err))
	}
	return toSession(user), nil
}

// ResetPassword はパスワードリセットメールを送信する。
func (b *Bridge) ResetPassword(ctx context.Context, email string) error {
	if err := b.platform.SendPasswordReset(ctx, email); err != nil {
		return b.fail("reset_password", normalize(err))
	}
	return nil
}

// ResendVerification は現在ユーザーに確認メールを再送信する。
func (b *Bridge) ResendVerification(ctx context.Context) error {
	user := b.platform.CurrentUser()
	if user == nil {
		return b.fail("resend_verification", errNoCurrentUser())
	}
	if err := b.platform.SendVerificationEmail(ctx, user); err != nil {
		return b.fail("resend_verification", normalize(err))
	}
	return nil
}

// UpdateProfile は現在ユーザーのプロフィールを部分更新する。
// nilのフィールドは変更しない。
func (b *Bridge) UpdateProfile(ctx context.Context, update model.ProfileUpdate) error {
	user := b.platform.CurrentUser()
	if user == nil {
		return b.fail("update_profile", errNoCurrentUser())
	}
	if update.IsEmpty() {
		return nil
	}
	if err := b.platform.UpdateProfile(ctx, user, update); err != nil {
		return b.fail("update_profile", normalize(err))
	}
	return nil
}

// SignOut はセッションを終了する。
func (b *Bridge) SignOut(ctx context.Context) error {
	if err := b.platform.SignOut(ctx); err != nil {
		return b.fail("sign_out", normalize(err))
	}
	return nil
}

// CurrentSession は現在のセッションを返す。サインアウト状態の場合はnil。
func (b *Bridge) CurrentSession() *model.Session {
	return toSession(b.platform.CurrentUser())
}

// State は現在のセッション状態を返す。
func (b *Bridge) State() State {
	if b.platform.CurrentUser() == nil {
		return SignedOut
	}
	return SignedIn
}

// OnSessionChanged はセッションの変化を購読し、購読解除関数を返す。
func (b *Bridge) OnSessionChanged(listener func(*model.Session)) func() {
	return b.platform.OnAuthStateChanged(func(user *model.IdentityUser) {
		listener(toSession(user))
	})
}

// Profile はプロフィール画面向けの表示データを返す。
func (b *Bridge) Profile(context.Context) (*model.Profile, error) {
	user := b.platform.CurrentUser()
	if user == nil {
		return nil, b.fail("profile", errNoCurrentUser())
	}
	return &model.Profile{
		UID:      user.UID,
		Email:    user.Email,
		FullName: user.DisplayName,
		PhotoURL: user.PhotoURL,
	}, nil
}

// currentUser はトークンを含む現在ユーザーを返す。ログインセッションの保存に使用する。
func (b *Bridge) currentUser() *model.IdentityUser {
	return b.platform.CurrentUser()
}

func (b *Bridge) fail(op string, err *AuthError) *AuthError {
	b.recorder.RecordAuthError(err.Code)
	attrs := []any{
		slog.String("op", op),
		slog.String("code", err.Code),
	}
	if err.Cause != nil {
		attrs = append(attrs, slog.String("error", err.Cause.Error()))
	}
	b.logger.Warn("auth operation failed", attrs...)
	return err
}

func toSession(user *model.IdentityUser) *model.Session {
	if user == nil {
		return nil
	}
	return &model.Session{
		UID:           user.UID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		PhotoURL:      user.PhotoURL,
		EmailVerified: user.EmailVerified,
	}
}
