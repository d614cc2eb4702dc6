// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"

	"github.com/hitoshi/artizone/internal/model"
)

// ClientStorage はクライアント（client_id Cookie）単位の文字列キーバリューストア。
// ブラウザのlocalStorageのサーバー側の置き換え。
type ClientStorage interface {
	// Get は指定クライアントのキーの値を取得する。存在しない場合はok=falseを返す。
	Get(ctx context.Context, clientID, key string) (value string, ok bool, err error)
	// Set は指定クライアントのキーに値を書き込む。既存の値は上書きされる。
	Set(ctx context.Context, clientID, key, value string) error
}

// SessionRepository はログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.LoginSession) error
	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.LoginSession, error)
	// UpdateUser はセッションが保持するユーザー情報のスナップショットを置き換える。
	UpdateUser(ctx context.Context, id string, user model.IdentityUser) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ClientStore は1クライアントに束縛されたClientStorageのビュー。
// keyset.Storeを満たす。
type ClientStore struct {
	storage  ClientStorage
	clientID string
}

// ForClient はclientIDに束縛されたClientStoreを返す。
func ForClient(storage ClientStorage, clientID string) *ClientStore {
	return &ClientStore{storage: storage, clientID: clientID}
}

// GetItem はキーの値を取得する。
func (s *ClientStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	return s.storage.Get(ctx, s.clientID, key)
}

// SetItem はキーに値を書き込む。
func (s *ClientStore) SetItem(ctx context.Context, key, value string) error {
	return s.storage.Set(ctx, s.clientID, key, value)
}
