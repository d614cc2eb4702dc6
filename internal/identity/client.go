// Package identity はFirebase Authentication（Identity Toolkit REST API）のクライアントを提供する。
// Clientはプロセス全体で1つ生成し、エンドユーザーごとのAuthを払い出す。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/model"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1/token"
	defaultTimeout            = 10 * time.Second

	// maxResponseSize はAPIレスポンスの読み取り上限。
	maxResponseSize = 1 << 20

	// tokenRefreshMargin はIDトークンを期限切れとみなす残り時間。
	tokenRefreshMargin = time.Minute
)

// ErrMissingAPIKey はAPIキー未設定でクライアントを生成しようとした場合のエラー。
var ErrMissingAPIKey = errors.New("identity: firebase api key is required")

// Config はIdentity Toolkitクライアントの設定。
type Config struct {
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// テスト用にオーバーライド可能なURL
	IdentityToolkitURL string
	SecureTokenURL     string
}

// Client はIdentity Toolkit REST APIのクライアント。
type Client struct {
	apiKey         string
	httpClient     *http.Client
	logger         *slog.Logger
	toolkitURL     string
	secureTokenURL string
	now            func() time.Time
}

// NewClient はClientを生成する。APIキーが空の場合はErrMissingAPIKeyを返す。
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdentityToolkitURL == "" {
		cfg.IdentityToolkitURL = defaultIdentityToolkitURL
	}
	if cfg.SecureTokenURL == "" {
		cfg.SecureTokenURL = defaultSecureTokenURL
	}

	return &Client{
		apiKey:         cfg.APIKey,
		httpClient:     cfg.HTTPClient,
		logger:         cfg.Logger,
		toolkitURL:     strings.TrimRight(cfg.IdentityToolkitURL, "/"),
		secureTokenURL: cfg.SecureTokenURL,
		now:            time.Now,
	}, nil
}

// NewPlatform はサインアウト状態のAuthを返す。
func (c *Client) NewPlatform() auth.Platform {
	return newAuth(c, nil)
}

// RestorePlatform はスナップショットからサインイン状態のAuthを復元する。
// IDトークンが期限切れ間近の場合はリフレッシュトークンで更新する。
func (c *Client) RestorePlatform(ctx context.Context, user model.IdentityUser) (auth.Platform, error) {
	if c.now().Add(tokenRefreshMargin).After(user.TokenExpiresAt) {
		refreshed, err := c.refreshToken(ctx, user)
		if err != nil {
			return nil, err
		}
		user = refreshed
	}
	return newAuth(c, &user), nil
}

// accountResponse はaccounts:* エンドポイント共通のユーザー情報レスポンス。
type accountResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"`
}

func (c *Client) toUser(resp accountResponse) model.IdentityUser {
	return model.IdentityUser{
		UID:            resp.LocalID,
		Email:          resp.Email,
		DisplayName:    resp.DisplayName,
		PhotoURL:       resp.PhotoURL,
		EmailVerified:  resp.EmailVerified,
		IDToken:        resp.IDToken,
		RefreshToken:   resp.RefreshToken,
		TokenExpiresAt: c.expiresAt(resp.ExpiresIn),
	}
}

func (c *Client) expiresAt(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return c.now().Add(time.Duration(seconds) * time.Second)
}

// signUp はメールアドレスとパスワードでアカウントを作成する。
func (c *Client) signUp(ctx context.Context, email, password string) (model.IdentityUser, error) {
	var resp accountResponse
	err := c.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return model.IdentityUser{}, err
	}
	return c.toUser(resp), nil
}

// signInWithPassword はメールアドレスとパスワードで認証する。
func (c *Client) signInWithPassword(ctx context.Context, email, password string) (model.IdentityUser, error) {
	var resp accountResponse
	err := c.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return model.IdentityUser{}, err
	}
	user := c.toUser(resp)
	// signInWithPasswordはemailVerified、photoUrlを返さないためlookupで補完する
	if err := c.lookup(ctx, &user); err != nil {
		return model.IdentityUser{}, err
	}
	return user, nil
}

// signInWithIdp は外部IdPの資格情報で認証する。
func (c *Client) signInWithIdp(ctx context.Context, cred model.IdpCredential) (model.IdentityUser, error) {
	postBody := url.Values{"providerId": {cred.ProviderID}}
	if cred.IDToken != "" {
		postBody.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		postBody.Set("access_token", cred.AccessToken)
	}

	var resp accountResponse
	err := c.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          cred.RequestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	if err != nil {
		return model.IdentityUser{}, err
	}
	return c.toUser(resp), nil
}

// updateProfile は表示名と写真URLを部分更新する。空文字列は属性の削除として扱う。
func (c *Client) updateProfile(ctx context.Context, user *model.IdentityUser, update model.ProfileUpdate) error {
	body := map[string]any{
		"idToken":           user.IDToken,
		"returnSecureToken": false,
	}
	var deleteAttrs []string
	if update.DisplayName != nil {
		if *update.DisplayName == "" {
			deleteAttrs = append(deleteAttrs, "DISPLAY_NAME")
		} else {
			body["displayName"] = *update.DisplayName
		}
	}
	if update.PhotoURL != nil {
		if *update.PhotoURL == "" {
			deleteAttrs = append(deleteAttrs, "PHOTO_URL")
		} else {
			body["photoUrl"] = *update.PhotoURL
		}
	}
	if len(deleteAttrs) > 0 {
		body["deleteAttribute"] = deleteAttrs
	}

	var resp accountResponse
	if err := c.call(ctx, "accounts:update", body, &resp); err != nil {
		return err
	}

	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		user.PhotoURL = *update.PhotoURL
	}
	return nil
}

// sendOobCode は確認メールまたはパスワードリセットメールの送信を依頼する。
func (c *Client) sendOobCode(ctx context.Context, body map[string]any) error {
	var resp struct {
		Email string `json:"email"`
	}
	return c.call(ctx, "accounts:sendOobCode", body, &resp)
}

// lookup はIDトークンに対応するユーザー情報でuserを更新する。
func (c *Client) lookup(ctx context.Context, user *model.IdentityUser) error {
	var resp struct {
		Users []accountResponse `json:"users"`
	}
	if err := c.call(ctx, "accounts:lookup", map[string]any{"idToken": user.IDToken}, &resp); err != nil {
		return err
	}
	if len(resp.Users) == 0 {
		return &model.PlatformError{Code: CodeUserTokenExpired, Message: "user not found"}
	}

	u := resp.Users[0]
	user.Email = u.Email
	user.DisplayName = u.DisplayName
	user.PhotoURL = u.PhotoURL
	user.EmailVerified = u.EmailVerified
	return nil
}

// refreshToken はSecure Token APIでIDトークンを更新する。
func (c *Client) refreshToken(ctx context.Context, user model.IdentityUser) (model.IdentityUser, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {user.RefreshToken},
	}
	endpoint := c.secureTokenURL + "?key=" + url.QueryEscape(c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return model.IdentityUser{}, fmt.Errorf("failed to create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := c.do(req, "token", &resp); err != nil {
		return model.IdentityUser{}, err
	}

	user.IDToken = resp.IDToken
	user.RefreshToken = resp.RefreshToken
	user.TokenExpiresAt = c.expiresAt(resp.ExpiresIn)
	return user, nil
}

// call はIdentity ToolkitのエンドポイントにJSONをPOSTする。
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	endpoint := c.toolkitURL + "/" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, out)
}

// do はリクエストを実行し、成功時はoutにデコードする。
// 失敗はすべてmodel.PlatformErrorとして返す。
func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("identity platform request failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return &model.PlatformError{Code: CodeNetworkRequestFailed, Message: "network request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &model.PlatformError{Code: CodeNetworkRequestFailed, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := decodeError(resp.StatusCode, body)
		c.logger.Warn("identity platform returned error",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", perr.Code),
		)
		return perr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &model.PlatformError{Code: CodeInternalError, Message: "failed to parse response", Cause: err}
	}
	return nil
}
