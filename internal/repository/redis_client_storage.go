package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "artizone:client:"

// RedisClientStorage はRedisを使用するClientStorage。
// 値はクライアントとキーの組ごとに1つの文字列として保存する。
type RedisClientStorage struct {
	client *redis.Client
	ttl    time.Duration // 0の場合は期限なし
}

// NewRedisClientStorage はRedisClientStorageを生成する。
// ttlは書き込みごとに延長される保持期間。0の場合は期限を設定しない。
func NewRedisClientStorage(client *redis.Client, ttl time.Duration) *RedisClientStorage {
	return &RedisClientStorage{client: client, ttl: ttl}
}

// NewRedisClient はredis:// 形式のURLからクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Get は指定クライアントのキーの値を取得する。
func (s *RedisClientStorage) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, redisKey(clientID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get client storage value: %w", err)
	}
	return value, true, nil
}

// Set は指定クライアントのキーに値を書き込む。
func (s *RedisClientStorage) Set(ctx context.Context, clientID, key, value string) error {
	if err := s.client.Set(ctx, redisKey(clientID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set client storage value: %w", err)
	}
	return nil
}

func redisKey(clientID, key string) string {
	return redisKeyPrefix + clientID + ":" + key
}

var _ ClientStorage = (*RedisClientStorage)(nil)
