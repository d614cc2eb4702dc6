package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/artizone/internal/model"
)

const (
	// defaultInitialBackoff は指数バックオフの初回遅延。
	defaultInitialBackoff = time.Second
	// defaultMaxBackoff は指数バックオフの最大遅延。
	defaultMaxBackoff = time.Minute
)

// ErrBackingOff はバックオフ期間中のため取得元へのリクエストを行わなかったことを表す。
var ErrBackingOff = errors.New("catalog: source is backing off after repeated failures")

// BackoffSource は取得失敗が続く間、取得元へのリクエストを指数バックオフで抑制するSource。
// バックオフ期間中はErrBackingOffを返すため、Loaderは空の商品リストを返す。
// 1回でも成功すると連続エラー回数をリセットする。
type BackoffSource struct {
	source  Source
	initial time.Duration
	max     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu                sync.Mutex
	consecutiveErrors int
	nextAttemptAt     time.Time
}

// NewBackoffSource はBackoffSourceを生成する。
// initial、maxが0以下の場合はデフォルト値（1秒、1分）を使用する。
func NewBackoffSource(source Source, initial, max time.Duration, logger *slog.Logger) *BackoffSource {
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	if max <= 0 {
		max = defaultMaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackoffSource{
		source:  source,
		initial: initial,
		max:     max,
		logger:  logger,
		now:     time.Now,
	}
}

// Products はバックオフ期間外であれば取得元から商品リストを取得する。
func (s *BackoffSource) Products(ctx context.Context) ([]model.Product, error) {
	s.mu.Lock()
	if s.now().Before(s.nextAttemptAt) {
		s.mu.Unlock()
		return nil, ErrBackingOff
	}
	s.mu.Unlock()

	products, err := s.source.Products(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		if s.consecutiveErrors > 0 {
			s.logger.Info("catalog source recovered",
				slog.Int("consecutive_errors", s.consecutiveErrors),
			)
		}
		s.consecutiveErrors = 0
		s.nextAttemptAt = time.Time{}
		return products, nil
	}

	// 呼び出し側のキャンセルは取得元の障害として数えない
	if ctx.Err() != nil {
		return nil, err
	}

	delay := CalculateBackoff(s.initial, s.max, s.consecutiveErrors)
	s.consecutiveErrors++
	s.nextAttemptAt = s.now().Add(delay)
	s.logger.Warn("catalog source failed, backing off",
		slog.Int("consecutive_errors", s.consecutiveErrors),
		slog.Duration("backoff", delay),
		slog.String("error", err.Error()),
	)
	return nil, err
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// initialから2倍ずつ増加し、maxで頭打ちになる。
func CalculateBackoff(initial, max time.Duration, consecutiveErrors int) time.Duration {
	delay := initial
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > max {
			return max
		}
	}
	return delay
}

var _ Source = (*BackoffSource)(nil)
