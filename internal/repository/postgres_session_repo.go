package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/artizone/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.LoginSession) error {
	u := session.User
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, uid, email, display_name, photo_url, email_verified,
		                       id_token, refresh_token, token_expires_at, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		session.ID, u.UID, u.Email, u.DisplayName, u.PhotoURL, u.EmailVerified,
		u.IDToken, u.RefreshToken, u.TokenExpiresAt, session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.LoginSession, error) {
	s := &model.LoginSession{}
	u := &s.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uid, email, display_name, photo_url, email_verified,
		        id_token, refresh_token, token_expires_at, expires_at, created_at, updated_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&s.ID, &u.UID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.EmailVerified,
		&u.IDToken, &u.RefreshToken, &u.TokenExpiresAt, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// UpdateUser はセッションのユーザースナップショットとトークンを更新する。
func (r *PostgresSessionRepo) UpdateUser(ctx context.Context, id string, u model.IdentityUser) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET uid = $2, email = $3, display_name = $4, photo_url = $5, email_verified = $6,
		     id_token = $7, refresh_token = $8, token_expires_at = $9, updated_at = now()
		 WHERE id = $1`,
		id, u.UID, u.Email, u.DisplayName, u.PhotoURL, u.EmailVerified,
		u.IDToken, u.RefreshToken, u.TokenExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session user: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get purged session count: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
