package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/model"
	"github.com/hitoshi/artizone/internal/repository"
)

// --- IDプラットフォームのフェイク ---

type fakeAccount struct {
	password string
	user     model.IdentityUser
}

// fakeIdP はメモリ上のアカウントを持つauth.PlatformFactory。
type fakeIdP struct {
	mu            sync.Mutex
	accounts      map[string]*fakeAccount
	resets        []string
	verifications []string
	restoreErr    error
}

func newFakeIdP() *fakeIdP {
	return &fakeIdP{accounts: make(map[string]*fakeAccount)}
}

func (f *fakeIdP) NewPlatform() auth.Platform {
	return &fakePlatform{idp: f}
}

func (f *fakeIdP) RestorePlatform(_ context.Context, user model.IdentityUser) (auth.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	u := user
	return &fakePlatform{idp: f, user: &u}, nil
}

func (f *fakeIdP) addAccount(email, password, displayName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = &fakeAccount{
		password: password,
		user: model.IdentityUser{
			UID:         "uid-" + email,
			Email:       email,
			DisplayName: displayName,
			IDToken:     "id-token-" + email,
		},
	}
}

func platformErr(code string) error {
	return &model.PlatformError{Code: "auth/" + code}
}

// fakePlatform はエンドユーザー1人分のauth.Platform。
type fakePlatform struct {
	idp  *fakeIdP
	user *model.IdentityUser
}

func (p *fakePlatform) CreateAccount(_ context.Context, email, password string) (*model.IdentityUser, error) {
	p.idp.mu.Lock()
	defer p.idp.mu.Unlock()
	if !strings.Contains(email, "@") {
		return nil, platformErr(auth.CodeInvalidEmail)
	}
	if _, ok := p.idp.accounts[email]; ok {
		return nil, platformErr(auth.CodeEmailAlreadyInUse)
	}
	if len(password) < 6 {
		return nil, platformErr(auth.CodeWeakPassword)
	}
	acct := &fakeAccount{password: password, user: model.IdentityUser{
		UID:     "uid-" + email,
		Email:   email,
		IDToken: "id-token-" + email,
	}}
	p.idp.accounts[email] = acct
	u := acct.user
	p.user = &u
	return p.user, nil
}

func (p *fakePlatform) SignIn(_ context.Context, email, password string) (*model.IdentityUser, error) {
	p.idp.mu.Lock()
	defer p.idp.mu.Unlock()
	acct, ok := p.idp.accounts[email]
	if !ok {
		return nil, platformErr(auth.CodeUserNotFound)
	}
	if acct.password != password {
		return nil, platformErr(auth.CodeWrongPassword)
	}
	u := acct.user
	p.user = &u
	return p.user, nil
}

func (p *fakePlatform) SignInWithPopup(ctx context.Context, provider auth.PopupProvider) (*model.IdentityUser, error) {
	cred, err := provider.Credential(ctx)
	if err != nil {
		return nil, err
	}
	p.user = &model.IdentityUser{
		UID:           "uid-google-" + cred.IDToken,
		Email:         "google@example.com",
		EmailVerified: true,
		IDToken:       cred.IDToken,
	}
	return p.user, nil
}

func (p *fakePlatform) UpdateProfile(_ context.Context, user *model.IdentityUser, update model.ProfileUpdate) error {
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		user.PhotoURL = *update.PhotoURL
	}
	user.IDToken += "+"
	return nil
}

func (p *fakePlatform) SendVerificationEmail(_ context.Context, user *model.IdentityUser) error {
	p.idp.mu.Lock()
	defer p.idp.mu.Unlock()
	p.idp.verifications = append(p.idp.verifications, user.Email)
	return nil
}

func (p *fakePlatform) SendPasswordReset(_ context.Context, email string) error {
	p.idp.mu.Lock()
	defer p.idp.mu.Unlock()
	if _, ok := p.idp.accounts[email]; !ok {
		return platformErr(auth.CodeUserNotFound)
	}
	p.idp.resets = append(p.idp.resets, email)
	return nil
}

func (p *fakePlatform) SignOut(context.Context) error {
	p.user = nil
	return nil
}

func (p *fakePlatform) CurrentUser() *model.IdentityUser {
	return p.user
}

func (p *fakePlatform) OnAuthStateChanged(listener func(*model.IdentityUser)) func() {
	listener(p.user)
	return func() {}
}

// --- カタログのフェイク ---

// staticSource は固定の商品リストを返すcatalog.Source。
type staticSource struct {
	products []model.Product
	err      error
}

func (s *staticSource) Products(context.Context) ([]model.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func testProducts() []model.Product {
	return []model.Product{
		{ID: "p1", Name: "Clay Vase", Category: "Pottery", Price: 45, Rating: 4, Description: "d", ImageURL: "https://img.example.com/1.jpg"},
		{ID: "p2", Name: "Silver Ring", Category: "Jewelry", Price: 30, Rating: 5, Description: "d", ImageURL: "https://img.example.com/2.jpg"},
		{ID: "p3", Name: "Bowl", Category: "Pottery", Price: 20, Rating: 3, Description: "d", ImageURL: "https://img.example.com/3.jpg"},
	}
}

// failingStorage は書き込みに失敗するrepository.ClientStorage。
type failingStorage struct {
	*repository.MemoryClientStorage
}

func (failingStorage) Set(context.Context, string, string, string) error {
	return errors.New("storage unavailable")
}

// stubURLValidator はhttps以外を拒否するURLValidator。
type stubURLValidator struct{}

func (stubURLValidator) ValidateURL(rawURL string) error {
	if !strings.HasPrefix(rawURL, "https://") {
		return errors.New("scheme not allowed")
	}
	return nil
}

// --- 組み立て ---

type testEnv struct {
	idp      *fakeIdP
	sessions *auth.Service
	repo     *repository.MemorySessionRepo
	storage  repository.ClientStorage
	source   *staticSource
	deps     *RouterDeps
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	idp := newFakeIdP()
	repo := repository.NewMemorySessionRepo()
	sessions := auth.NewService(idp, repo, nil, discardLogger(), auth.ServiceConfig{SessionMaxAge: 3600})
	storage := repository.NewMemoryClientStorage()
	source := &staticSource{products: testProducts()}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return &testEnv{
		idp:      idp,
		sessions: sessions,
		repo:     repo,
		storage:  storage,
		source:   source,
		deps: &RouterDeps{
			Logger:            discardLogger(),
			CORSAllowedOrigin: "http://localhost:3000",
			ClientIDMaxAge:    3600,
			RateLimiter:       rl,
			Sessions:          sessions,
			AuthConfig: AuthHandlerConfig{
				BaseURL:       "http://localhost:3000",
				SessionMaxAge: 3600,
			},
			URLValidator: stubURLValidator{},
			Storefront:   NewStorefront(source, storage, nil, discardLogger()),
		},
	}
}

// withClient はClientIDミドルウェアを通過した状態のリクエストを返す。
func withClient(r *http.Request, clientID string) *http.Request {
	return r.WithContext(middleware.ContextWithClientID(r.Context(), clientID))
}

// withSession はSessionミドルウェアを通過した状態のリクエストを返す。
func withSession(t *testing.T, env *testEnv, r *http.Request, sessionID string) *http.Request {
	t.Helper()
	bridge, err := env.sessions.ResumeSession(r.Context(), sessionID)
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	return r.WithContext(middleware.ContextWithSession(r.Context(), sessionID, bridge))
}

// signedInSession は登録済みアカウントでログインセッションを発行し、そのIDを返す。
func signedInSession(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()
	env.idp.addAccount(email, password, "Maker")
	bridge := env.sessions.NewBridge()
	if _, err := bridge.SignIn(context.Background(), email, password); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	session, err := env.sessions.StartSession(context.Background(), bridge)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return session.ID
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
