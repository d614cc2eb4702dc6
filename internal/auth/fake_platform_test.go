package auth

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hitoshi/artizone/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// fakePlatform はテスト用のPlatform。
type fakePlatform struct {
	current *model.IdentityUser
	user    model.IdentityUser // サインイン成功時のユーザー

	createErr  error
	signInErr  error
	popupErr   error
	updateErr  error
	verifyErr  error
	resetErr   error
	signOutErr error

	calls     []string
	updates   []model.ProfileUpdate
	listeners map[int]func(*model.IdentityUser)
	nextID    int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		user: model.IdentityUser{
			UID:            "uid-1",
			Email:          "ada@example.com",
			IDToken:        "id-token-1",
			RefreshToken:   "refresh-token-1",
			TokenExpiresAt: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
		},
		listeners: make(map[int]func(*model.IdentityUser)),
	}
}

func (f *fakePlatform) signedIn() *fakePlatform {
	u := f.user
	f.current = &u
	return f
}

func (f *fakePlatform) CreateAccount(_ context.Context, email, _ string) (*model.IdentityUser, error) {
	f.calls = append(f.calls, "CreateAccount")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.user.Email = email
	return f.setCurrent(&f.user), nil
}

func (f *fakePlatform) SignIn(_ context.Context, _, _ string) (*model.IdentityUser, error) {
	f.calls = append(f.calls, "SignIn")
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.setCurrent(&f.user), nil
}

func (f *fakePlatform) SignInWithPopup(ctx context.Context, provider PopupProvider) (*model.IdentityUser, error) {
	f.calls = append(f.calls, "SignInWithPopup")
	if f.popupErr != nil {
		return nil, f.popupErr
	}
	if _, err := provider.Credential(ctx); err != nil {
		return nil, err
	}
	return f.setCurrent(&f.user), nil
}

func (f *fakePlatform) UpdateProfile(_ context.Context, user *model.IdentityUser, update model.ProfileUpdate) error {
	f.calls = append(f.calls, "UpdateProfile")
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update)
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		user.PhotoURL = *update.PhotoURL
	}
	if f.current != nil && f.current.UID == user.UID {
		u := *user
		f.current = &u
	}
	return nil
}

func (f *fakePlatform) SendVerificationEmail(context.Context, *model.IdentityUser) error {
	f.calls = append(f.calls, "SendVerificationEmail")
	return f.verifyErr
}

func (f *fakePlatform) SendPasswordReset(context.Context, string) error {
	f.calls = append(f.calls, "SendPasswordReset")
	return f.resetErr
}

func (f *fakePlatform) SignOut(context.Context) error {
	f.calls = append(f.calls, "SignOut")
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.setCurrent(nil)
	return nil
}

func (f *fakePlatform) CurrentUser() *model.IdentityUser {
	if f.current == nil {
		return nil
	}
	u := *f.current
	return &u
}

func (f *fakePlatform) OnAuthStateChanged(listener func(*model.IdentityUser)) func() {
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	listener(f.CurrentUser())
	return func() { delete(f.listeners, id) }
}

func (f *fakePlatform) setCurrent(user *model.IdentityUser) *model.IdentityUser {
	if user == nil {
		f.current = nil
	} else {
		u := *user
		f.current = &u
	}
	for _, l := range f.listeners {
		l(f.CurrentUser())
	}
	return f.CurrentUser()
}

// stubPopup は固定の結果を返すPopupProvider。
type stubPopup struct {
	err error
}

func (p stubPopup) Credential(context.Context) (model.IdpCredential, error) {
	if p.err != nil {
		return model.IdpCredential{}, p.err
	}
	return model.IdpCredential{ProviderID: GoogleProviderID, IDToken: "google-id-token"}, nil
}

// codeRecorder は認証エラーコードのみ記録するRecorder。
type codeRecorder struct {
	codes []string
}

func (r *codeRecorder) RecordCatalogFetch(bool, time.Duration) {}
func (r *codeRecorder) RecordFavoriteToggle(bool)             {}
func (r *codeRecorder) RecordAuthError(code string)           { r.codes = append(r.codes, code) }
func (r *codeRecorder) RecordHTTPStatus(int)                  {}

func platformErr(code string) error {
	return &model.PlatformError{Code: code, Message: "platform says no"}
}

func strPtr(s string) *string {
	return &s
}
