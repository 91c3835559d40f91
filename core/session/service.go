package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var ErrNotFound = errors.New("session not found")

type Repository interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID int) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

type Service struct {
	repo Repository
	conf *core.Config
}

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

// Open starts a new session for the user with the configured fixed TTL.
func (svc *Service) Open(ctx context.Context, userID int) (Session, error) {
	now := time.Now().UTC()
	s := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(svc.conf.Server.SessionTTL),
	}
	return svc.repo.CreateSession(ctx, s)
}

// Get returns the session for the token. Expired sessions are deleted
// eagerly and reported as not found.
func (svc *Service) Get(ctx context.Context, token string) (Session, error) {
	s, err := svc.repo.GetSession(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(time.Now().UTC()) {
		_ = svc.repo.DeleteSession(ctx, token)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (svc *Service) Close(ctx context.Context, token string) error {
	return svc.repo.DeleteSession(ctx, token)
}

// CloseAllForUser invalidates every session of a user (deactivation, password reset).
func (svc *Service) CloseAllForUser(ctx context.Context, userID int) error {
	return svc.repo.DeleteUserSessions(ctx, userID)
}

// PurgeExpired removes expired sessions and returns the removed count.
func (svc *Service) PurgeExpired(ctx context.Context) (int, error) {
	return svc.repo.DeleteExpiredSessions(ctx, time.Now().UTC())
}
