package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/model"
	"github.com/hitoshi/artizone/internal/repository"
)

// ErrNotSignedIn はサインアウト状態のBridgeでログインセッションを発行しようとした場合のエラー。
var ErrNotSignedIn = errors.New("auth: bridge is not signed in")

// PlatformFactory はエンドユーザーごとのPlatformを生成する。
type PlatformFactory interface {
	// NewPlatform はサインアウト状態のPlatformを返す。
	NewPlatform() Platform
	// RestorePlatform は保存済みのユーザー情報からサインイン状態のPlatformを復元する。
	// トークンが失効している場合はmodel.PlatformErrorを返す。
	RestorePlatform(ctx context.Context, user model.IdentityUser) (Platform, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はHTTPリクエストをまたぐログインセッションを管理する。
// セッションにはIDプラットフォームのユーザー情報とトークンのスナップショットを保存し、
// リクエストごとにBridgeを復元する。
type Service struct {
	platforms   PlatformFactory
	sessionRepo repository.SessionRepository
	recorder    metrics.Recorder
	logger      *slog.Logger
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	platforms PlatformFactory,
	sessionRepo repository.SessionRepository,
	recorder metrics.Recorder,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		platforms:   platforms,
		sessionRepo: sessionRepo,
		recorder:    recorder,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// NewBridge はサインアウト状態のBridgeを返す。
func (s *Service) NewBridge() *Bridge {
	return NewBridge(s.platforms.NewPlatform(), s.recorder, s.logger)
}

// StartSession はBridgeの現在ユーザーでログインセッションを発行する。
func (s *Service) StartSession(ctx context.Context, b *Bridge) (*model.LoginSession, error) {
	user := b.currentUser()
	if user == nil {
		return nil, ErrNotSignedIn
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.LoginSession{
		ID:        sessionID,
		User:      *user,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("login session started", slog.String("uid", user.UID))
	return session, nil
}

// ResumeSession はセッションIDからBridgeを復元する。
// セッションが存在しない、期限切れ、またはトークンが失効している場合は
// サインアウト状態のBridgeを返す。
func (s *Service) ResumeSession(ctx context.Context, sessionID string) (*Bridge, error) {
	if sessionID == "" {
		return s.NewBridge(), nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return s.NewBridge(), nil
	}

	platform, err := s.platforms.RestorePlatform(ctx, session.User)
	if err != nil {
		var platformErr *model.PlatformError
		if !errors.As(err, &platformErr) || platformErr.Code == "auth/"+CodeNetworkRequestFailed {
			return nil, fmt.Errorf("failed to restore platform: %w", err)
		}
		s.logger.Info("login session revoked by identity platform",
			slog.String("uid", session.User.UID),
			slog.String("code", platformErr.Code),
		)
		if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to delete revoked session: %w", err)
		}
		return s.NewBridge(), nil
	}

	b := NewBridge(platform, s.recorder, s.logger)
	if current := b.currentUser(); current != nil && current.IDToken != session.User.IDToken {
		if err := s.sessionRepo.UpdateUser(ctx, sessionID, *current); err != nil {
			return nil, fmt.Errorf("failed to save refreshed session: %w", err)
		}
	}
	return b, nil
}

// SaveSession はBridgeの現在ユーザーのスナップショットをセッションに保存する。
// プロフィール更新後に呼び出す。
func (s *Service) SaveSession(ctx context.Context, sessionID string, b *Bridge) error {
	user := b.currentUser()
	if user == nil {
		return ErrNotSignedIn
	}
	if err := s.sessionRepo.UpdateUser(ctx, sessionID, *user); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// EndSession はBridgeをサインアウトし、セッションを破棄する。
// セッションIDが空の場合はBridgeのサインアウトのみ行う。
func (s *Service) EndSession(ctx context.Context, sessionID string, b *Bridge) error {
	uid := ""
	if user := b.currentUser(); user != nil {
		uid = user.UID
	}

	if err := b.SignOut(ctx); err != nil {
		return err
	}

	if sessionID == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.Info("login session ended", slog.String("uid", uid))
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
