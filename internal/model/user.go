// Package model はドメインモデルを定義する。
package model

import "time"

// Session はIDプラットフォームの現在ユーザーを正規化した読み取り専用ビュー。
// サインインで生成され、サインアウトで破棄される。
type Session struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoURL"`
	EmailVerified bool   `json:"emailVerified"`
}

// Profile はユーザープロフィール画面向けの表示データ。
type Profile struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	PhotoURL string `json:"photoURL"`
}

// IdentityUser はIDプラットフォームが保持するユーザー情報とトークンを表す。
type IdentityUser struct {
	UID            string
	Email          string
	DisplayName    string
	PhotoURL       string
	EmailVerified  bool
	IDToken        string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// ProfileUpdate はプロフィールの部分更新を表す。
// nilフィールドは変更せず、既存の値を維持する。
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.PhotoURL == nil
}

// IdpCredential は外部IdP（Google等）のサインイン結果として得られる資格情報。
type IdpCredential struct {
	ProviderID  string // "google.com" 等
	IDToken     string
	AccessToken string
	RequestURI  string
}

// LoginSession はサーバー側で保持するログインセッションを表す。
// IDプラットフォームのユーザー情報のスナップショットとトークンを含む。
type LoginSession struct {
	ID        string
	User      IdentityUser
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
