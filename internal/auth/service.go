// Package auth registers users, issues session tokens and resolves them back
// to users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fidde/codesnip/internal/metrics"
	"github.com/fidde/codesnip/internal/slug"
	"github.com/fidde/codesnip/internal/storage"
	"github.com/fidde/codesnip/pkg/models"
)

// DefaultSweepInterval is how often RunSweeper removes expired sessions
// when no interval is configured.
const DefaultSweepInterval = time.Hour

// Config holds auth settings.
type Config struct {
	BcryptCost int
	SessionTTL time.Duration
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		BcryptCost: 12,
		SessionTTL: 30 * 24 * time.Hour,
	}
}

// Service implements registration, login and token authentication.
type Service struct {
	store  storage.Storage
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates an auth service.
func NewService(store storage.Storage, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	var user *models.User
	// The username embeds part of the id; a fresh id resolves the rare clash.
	for attempt := 0; attempt < 3; attempt++ {
		id := uuid.NewString()
		user = &models.User{
			ID:           id,
			Email:        req.Email,
			DisplayName:  req.DisplayName,
			Username:     slug.Username(req.DisplayName, id),
			PasswordHash: string(hash),
			CreatedAt:    s.now().UTC(),
		}
		err = s.store.CreateUser(ctx, user)
		if !errors.Is(err, models.ErrUsernameTaken) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			metrics.AuthFailure("email_taken")
		}
		return nil, "", err
	}

	token, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

// Login checks credentials and issues a new token. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
		metrics.AuthFailure("invalid_credentials")
		return nil, "", models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		metrics.AuthFailure("invalid_credentials")
		return nil, "", models.ErrInvalidCredentials
	}

	token, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("codesnip-placeholder"), s.cfg.BcryptCost)
	})
	return s.dummyHash
}

func (s *Service) startSession(ctx context.Context, userID string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	session := &models.AuthSession{
		TokenHash: HashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// Logout ends the session for token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if !wellFormed(token) {
		return nil
	}
	if err := s.store.DeleteSession(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Authenticate resolves a token to its user. Expired sessions are deleted and
// reported as ErrSessionExpired; anything else unusable is ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if !wellFormed(token) {
		metrics.AuthFailure("malformed_token")
		return nil, models.ErrUnauthorized
	}

	hash := HashToken(token)
	session, err := s.store.GetSession(ctx, hash)
	if errors.Is(err, models.ErrSessionNotFound) {
		metrics.AuthFailure("unknown_token")
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.store.DeleteSession(ctx, hash); err != nil {
			s.logger.Warn("failed to delete expired session", "user_id", session.UserID, "error", err)
		}
		metrics.AuthFailure("expired_token")
		return nil, models.ErrSessionExpired
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session user: %w", err)
	}
	return user, nil
}

// SweepExpired removes every expired session.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done. A
// non-positive interval falls back to DefaultSweepInterval.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
