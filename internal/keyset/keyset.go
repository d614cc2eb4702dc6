// Package keyset はクライアントごとの永続キーバリューストアに保存される
// 識別子集合（お気に入り商品ID）の読み書きを提供する。
//
// 部分更新APIは持たない。すべての変更は Load → 変更 → Save の全体書き換えで行う。
package keyset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Key はお気に入り集合を保存する固定キー。
const Key = "artizone-favorites"

// Store は文字列キー・文字列値の永続ストア。
// ブラウザのlocalStorageに相当するクライアント単位のストアを想定する。
type Store interface {
	// GetItem はキーの値を取得する。存在しない場合はok=falseを返す。
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	// SetItem はキーに値を書き込む。
	SetItem(ctx context.Context, key, value string) error
}

// KeySet はStore上の固定キーにJSON配列として保存された識別子集合。
type KeySet struct {
	store  Store
	key    string
	logger *slog.Logger
}

// New はKeySetを生成する。loggerがnilの場合はslog.Default()を使用する。
func New(store Store, logger *slog.Logger) *KeySet {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeySet{
		store:  store,
		key:    Key,
		logger: logger,
	}
}

// Load は保存済みの集合を読み込む。
// 未保存、JSONとして不正、ストア利用不可のいずれの場合も空集合を返し、エラーは返さない。
func (k *KeySet) Load(ctx context.Context) *Set {
	raw, ok, err := k.store.GetItem(ctx, k.key)
	if err != nil {
		k.logger.Error("failed to read favorites from storage",
			slog.String("key", k.key),
			slog.String("error", err.Error()),
		)
		return NewSet()
	}
	if !ok || raw == "" {
		return NewSet()
	}

	ids, err := decode(raw)
	if err != nil {
		k.logger.Error("failed to parse favorites from storage",
			slog.String("key", k.key),
			slog.String("error", err.Error()),
		)
		return NewSet()
	}

	return NewSet(ids...)
}

// Save は集合全体を書き込む。
// 書き込みに失敗した場合はログに記録してfalseを返す。エラーは伝播しない。
func (k *KeySet) Save(ctx context.Context, set *Set) bool {
	raw, err := encode(set)
	if err != nil {
		k.logger.Error("failed to encode favorites",
			slog.String("key", k.key),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := k.store.SetItem(ctx, k.key, raw); err != nil {
		k.logger.Error("failed to save favorites to storage",
			slog.String("key", k.key),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}

func decode(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("invalid favorites payload: %w", err)
	}
	return ids, nil
}

func encode(set *Set) (string, error) {
	ids := set.IDs()
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
