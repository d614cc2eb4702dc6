package repository

import (
	"context"
	"sync"
)

// MemoryClientStorage はプロセス内メモリに保持するClientStorage。
// 開発用途とテスト用途。プロセス終了で内容は失われる。
type MemoryClientStorage struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemoryClientStorage はMemoryClientStorageを生成する。
func NewMemoryClientStorage() *MemoryClientStorage {
	return &MemoryClientStorage{values: make(map[string]map[string]string)}
}

// Get は指定クライアントのキーの値を取得する。
func (s *MemoryClientStorage) Get(_ context.Context, clientID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[clientID][key]
	return value, ok, nil
}

// Set は指定クライアントのキーに値を書き込む。
func (s *MemoryClientStorage) Set(_ context.Context, clientID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.values[clientID]
	if !ok {
		client = make(map[string]string)
		s.values[clientID] = client
	}
	client[key] = value
	return nil
}

var _ ClientStorage = (*MemoryClientStorage)(nil)
