package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresClientStorage はPostgreSQLのclient_storageテーブルを使用するClientStorage。
type PostgresClientStorage struct {
	db *sql.DB
}

// NewPostgresClientStorage はPostgresClientStorageを生成する。
func NewPostgresClientStorage(db *sql.DB) *PostgresClientStorage {
	return &PostgresClientStorage{db: db}
}

// Get は指定クライアントのキーの値を取得する。
func (s *PostgresClientStorage) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_storage WHERE client_id = $1 AND key = $2`,
		clientID, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get client storage value: %w", err)
	}
	return value, true, nil
}

// Set は指定クライアントのキーに値をUPSERTする。
func (s *PostgresClientStorage) Set(ctx context.Context, clientID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_storage (client_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set client storage value: %w", err)
	}
	return nil
}

var _ ClientStorage = (*PostgresClientStorage)(nil)
