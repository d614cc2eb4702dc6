package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/artizone/internal/model"
)

// MemorySessionRepo はプロセス内メモリに保持するセッションリポジトリ。
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.LoginSession
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.LoginSession),
		now:      time.Now,
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.LoginSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れのセッションは削除してnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	if !s.ExpiresAt.After(r.now()) {
		delete(r.sessions, id)
		return nil, nil
	}
	return &s, nil
}

// UpdateUser はセッションのユーザースナップショットを置き換える。
// 存在しないIDは無視する。
func (r *MemorySessionRepo) UpdateUser(_ context.Context, id string, user model.IdentityUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	s.User = user
	s.UpdatedAt = r.now()
	r.sessions[id] = s
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// PurgeExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) PurgeExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ SessionRepository = (*MemorySessionRepo)(nil)
