package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core/account"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

var requestColumns = []string{
	"id", "professional_id", "institution", "access_code", "diploma_path",
	"role", "approved", "created_at",
}

func (repo accountRepository) CreateRequest(ctx context.Context, req account.Request) (account.Request, error) {
	query, args, err := psql.Insert("account_requests").
		Columns("professional_id", "institution", "access_code", "diploma_path", "role", "approved", "created_at").
		Values(req.ProfessionalID, req.Institution, req.AccessCode, req.DiplomaPath, req.Role, req.Approved, req.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return account.Request{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&req.ID); err != nil {
		if isUniqueViolation(err, "account_requests_professional_id_key") {
			return account.Request{}, account.ErrRequestExists
		}
		return account.Request{}, errors.Wrap(err, "creating account request")
	}
	return req, nil
}

func (repo accountRepository) getRequest(ctx context.Context, pred interface{}) (account.Request, error) {
	query, args, err := psql.Select(requestColumns...).From("account_requests").Where(pred).ToSql()
	if err != nil {
		return account.Request{}, errors.Wrap(err, "building query")
	}

	var req account.Request
	if err = repo.db.GetContext(ctx, &req, query, args...); err != nil {
		if isNoRows(err) {
			return account.Request{}, account.ErrNotFound
		}
		return account.Request{}, errors.Wrap(err, "getting account request")
	}
	return req, nil
}

func (repo accountRepository) GetRequestByID(ctx context.Context, id int) (account.Request, error) {
	return repo.getRequest(ctx, sq.Eq{"id": id})
}

func (repo accountRepository) GetRequestByProfessionalID(ctx context.Context, professionalID int) (account.Request, error) {
	return repo.getRequest(ctx, sq.Eq{"professional_id": professionalID})
}

func (repo accountRepository) QueryPendingRequests(ctx context.Context) ([]account.Request, error) {
	query, args, err := psql.Select(requestColumns...).
		From("account_requests").
		Where(sq.Eq{"approved": false}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	reqs := make([]account.Request, 0)
	if err = repo.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying pending requests")
	}
	return reqs, nil
}

func (repo accountRepository) ApproveRequest(ctx context.Context, id int) error {
	query, args, err := psql.Update("account_requests").
		Set("approved", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "approving request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (repo accountRepository) DeleteRequest(ctx context.Context, id int) error {
	query, args, err := psql.Delete("account_requests").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}
