package inmemdb

import (
	"context"
	"time"

	"github.com/evolvere-edu/evolvere/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.sessions[s.Token] = &s
	return s, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, token string) (session.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.sessions[token]; ok {
		return *s, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, token string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.sessions, token)
	return nil
}

func (repo *sessionRepository) DeleteUserSessions(ctx context.Context, userID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for token, s := range repo.db.sessions {
		if s.UserID == userID {
			delete(repo.db.sessions, token)
		}
	}
	return nil
}

func (repo *sessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for token, s := range repo.db.sessions {
		if s.Expired(now) {
			delete(repo.db.sessions, token)
			n++
		}
	}
	return n, nil
}
