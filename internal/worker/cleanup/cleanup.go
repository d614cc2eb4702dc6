// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れのログインセッションと、長期間書き込みのないクライアントストレージを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionPurger は期限切れのログインセッションを削除する。
// repository.PostgresSessionRepo と repository.MemorySessionRepo が実装する。
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeJob は期限切れデータの削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type PurgeJob struct {
	sessions SessionPurger
	db       Executor
	logger   *slog.Logger

	// ClientRetention はclient_storageの行を保持する期間。
	// 最終書き込みからこの期間を超えた行を削除する。0以下の場合は削除しない。
	ClientRetention time.Duration
}

// NewPurgeJob は新しいPurgeJobを生成する。
// dbがnilの場合はclient_storageの削除を行わない（memory/redisバックエンド）。
func NewPurgeJob(sessions SessionPurger, db Executor, logger *slog.Logger, clientRetention time.Duration) *PurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeJob{
		sessions:        sessions,
		db:              db,
		logger:          logger,
		ClientRetention: clientRetention,
	}
}

// Run は期限切れのセッションと古いclient_storageの行を1回削除する。
func (j *PurgeJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, err := j.sessions.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッション削除の実行に失敗: %w", err)
	}

	clients, err := j.purgeClientStorage(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("削除ジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_client_rows", clients),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// purgeClientStorage はupdated_atがClientRetentionより古い行を削除する。
func (j *PurgeJob) purgeClientStorage(ctx context.Context) (int64, error) {
	if j.db == nil || j.ClientRetention <= 0 {
		return 0, nil
	}

	interval := fmt.Sprintf("%d seconds", int64(j.ClientRetention/time.Second))

	query := `DELETE FROM client_storage WHERE updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("クライアントストレージの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.String("retention", interval),
		)
		return 0, fmt.Errorf("クライアントストレージ削除の実行に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// Start は起動直後に1回、その後interval間隔でRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *PurgeJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("削除ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("削除ジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *PurgeJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("削除サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
