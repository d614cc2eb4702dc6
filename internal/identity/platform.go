package identity

import (
	"context"
	"sync"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/model"
)

// Auth は1人のエンドユーザーに対応するIDプラットフォームのインスタンス。
// 現在ユーザーと認証状態のリスナーを保持する。
type Auth struct {
	client *Client

	mu        sync.Mutex
	current   *model.IdentityUser
	listeners map[int]func(*model.IdentityUser)
	nextID    int
}

func newAuth(client *Client, user *model.IdentityUser) *Auth {
	return &Auth{
		client:    client,
		current:   user,
		listeners: make(map[int]func(*model.IdentityUser)),
	}
}

// CreateAccount はアカウントを作成し、作成したユーザーでサインインする。
func (a *Auth) CreateAccount(ctx context.Context, email, password string) (*model.IdentityUser, error) {
	user, err := a.client.signUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.setCurrent(&user), nil
}

// SignIn はメールアドレスとパスワードでサインインする。
func (a *Auth) SignIn(ctx context.Context, email, password string) (*model.IdentityUser, error) {
	user, err := a.client.signInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.setCurrent(&user), nil
}

// SignInWithPopup は外部IdPのサインインフローの結果でサインインする。
func (a *Auth) SignInWithPopup(ctx context.Context, provider auth.PopupProvider) (*model.IdentityUser, error) {
	cred, err := provider.Credential(ctx)
	if err != nil {
		return nil, err
	}
	user, err := a.client.signInWithIdp(ctx, cred)
	if err != nil {
		return nil, err
	}
	return a.setCurrent(&user), nil
}

// UpdateProfile はuserのプロフィールを部分更新する。
// userが現在ユーザーの場合は保持しているスナップショットも更新する。
func (a *Auth) UpdateProfile(ctx context.Context, user *model.IdentityUser, update model.ProfileUpdate) error {
	if err := a.client.updateProfile(ctx, user, update); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil && a.current.UID == user.UID {
		updated := *user
		a.current = &updated
	}
	return nil
}

// SendVerificationEmail はuserのメールアドレスに確認メールを送信する。
func (a *Auth) SendVerificationEmail(ctx context.Context, user *model.IdentityUser) error {
	return a.client.sendOobCode(ctx, map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     user.IDToken,
	})
}

// SendPasswordReset はパスワードリセットメールを送信する。
func (a *Auth) SendPasswordReset(ctx context.Context, email string) error {
	return a.client.sendOobCode(ctx, map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
}

// SignOut は現在ユーザーを破棄する。サインアウト状態で呼んでもエラーにならない。
func (a *Auth) SignOut(context.Context) error {
	a.setCurrent(nil)
	return nil
}

// CurrentUser は現在ユーザーのコピーを返す。サインアウト状態の場合はnil。
func (a *Auth) CurrentUser() *model.IdentityUser {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyUser(a.current)
}

// OnAuthStateChanged は認証状態のリスナーを登録し、登録解除関数を返す。
// リスナーは登録時に現在の状態で1回呼ばれる。
func (a *Auth) OnAuthStateChanged(listener func(*model.IdentityUser)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = listener
	current := copyUser(a.current)
	a.mu.Unlock()

	listener(current)

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// setCurrent は現在ユーザーを置き換えてリスナーに通知し、コピーを返す。
func (a *Auth) setCurrent(user *model.IdentityUser) *model.IdentityUser {
	a.mu.Lock()
	a.current = copyUser(user)
	listeners := make([]func(*model.IdentityUser), 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	for _, l := range listeners {
		l(copyUser(user))
	}
	return copyUser(user)
}

func copyUser(user *model.IdentityUser) *model.IdentityUser {
	if user == nil {
		return nil
	}
	c := *user
	return &c
}

// compile-time interface check
var (
	_ auth.Platform        = (*Auth)(nil)
	_ auth.PlatformFactory = (*Client)(nil)
)
