package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	query, args, err := psql.Insert("sessions").
		Columns("token", "user_id", "created_at", "expires_at").
		Values(s.Token, s.UserID, s.CreatedAt, s.ExpiresAt).
		ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return session.Session{}, errors.Wrap(err, "creating session")
	}
	return s, nil
}

func (repo sessionRepository) GetSession(ctx context.Context, token string) (session.Session, error) {
	query, args, err := psql.Select("token", "user_id", "created_at", "expires_at").
		From("sessions").
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building query")
	}

	var s session.Session
	if err = repo.db.GetContext(ctx, &s, query, args...); err != nil {
		if isNoRows(err) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "getting session")
	}
	return s, nil
}

func (repo sessionRepository) DeleteSession(ctx context.Context, token string) error {
	query, args, err := psql.Delete("sessions").Where(sq.Eq{"token": token}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting session")
}

func (repo sessionRepository) DeleteUserSessions(ctx context.Context, userID int) error {
	query, args, err := psql.Delete("sessions").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting user sessions")
}

func (repo sessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	query, args, err := psql.Delete("sessions").Where(sq.LtOrEq{"expires_at": now}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
