package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/artizone/internal/model"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"

	// GoogleProviderID はIDプラットフォームにおけるGoogleのプロバイダーID。
	GoogleProviderID = "google.com"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0の同意画面URL生成と認可コード交換を行う。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &GoogleOAuthProvider{config: config}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// スコープにはopenid, email, profileを含む。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"prompt":        {"select_account"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は認可コードをトークンに交換し、IDプラットフォーム向けの資格情報を返す。
// 通信エラーは auth/network-request-failed、拒否は auth/invalid-credential になる。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (model.IdpCredential, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return model.IdpCredential{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/" + CodeNetworkRequestFailed,
			Message: "token request failed",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.IdpCredential{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/" + CodeInvalidCredential,
			Message: fmt.Sprintf("token exchange failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return model.IdpCredential{}, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.IDToken == "" && tokenResp.AccessToken == "" {
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/" + CodeInvalidCredential,
			Message: "empty token in response",
		}
	}

	return model.IdpCredential{
		ProviderID:  GoogleProviderID,
		IDToken:     tokenResp.IDToken,
		AccessToken: tokenResp.AccessToken,
		RequestURI:  p.config.RedirectURL,
	}, nil
}

// GoogleCallback はGoogleからのリダイレクト1回分をPopupProviderとして表す。
type GoogleCallback struct {
	provider      *GoogleOAuthProvider
	code          string
	state         string
	expectedState string
	errorParam    string
}

// NewGoogleCallback はコールバックのクエリパラメータからGoogleCallbackを生成する。
// expectedStateはログイン開始時にCookieへ保存したstate。
func NewGoogleCallback(provider *GoogleOAuthProvider, query url.Values, expectedState string) *GoogleCallback {
	return &GoogleCallback{
		provider:      provider,
		code:          query.Get("code"),
		state:         query.Get("state"),
		expectedState: expectedState,
		errorParam:    query.Get("error"),
	}
}

// Credential はコールバックを検証し、認可コードを資格情報に交換する。
// ユーザーが同意画面で拒否した場合は auth/popup-closed-by-user、
// stateが一致しない場合は auth/cancelled-popup-request を返す。
func (c *GoogleCallback) Credential(ctx context.Context) (model.IdpCredential, error) {
	switch {
	case c.errorParam == "access_denied":
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/" + CodePopupClosedByUser,
			Message: "user denied consent",
		}
	case c.errorParam != "":
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/internal-error",
			Message: "oauth error: " + c.errorParam,
		}
	case c.expectedState == "" || c.state != c.expectedState:
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/" + CodeCancelledPopupRequest,
			Message: "oauth state mismatch",
		}
	case c.code == "":
		return model.IdpCredential{}, &model.PlatformError{
			Code:    "auth/" + CodePopupClosedByUser,
			Message: "missing authorization code",
		}
	}
	return c.provider.ExchangeCode(ctx, c.code)
}

// compile-time interface check
var _ PopupProvider = (*GoogleCallback)(nil)
