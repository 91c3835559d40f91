package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

var userColumns = []string{
	"id", "name", "username", "email", "registration", "role", "is_active",
	"course_id", "photo", "password_hash", "created_at", "updated_at", "last_login",
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	qb := psql.Select("username", "email").
		From("users").
		Where(sq.Or{sq.Eq{"lower(username)": username}, sq.Eq{"lower(email)": email}})

	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if core.CleanString(uname, true) == username {
			return user.ErrUsernameExists
		}
		if core.CleanString(mail, true) == email {
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(rows.Err(), "checking uniqueness")
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query, args, err := psql.Insert("users").
		Columns("name", "username", "email", "registration", "role", "is_active",
			"course_id", "photo", "password_hash", "created_at", "updated_at").
		Values(usr.Name, usr.Username, usr.Email, usr.Registration, usr.Role, usr.IsActive,
			usr.CourseID, usr.Photo, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&usr.ID); err != nil {
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrEmailExists
		case isUniqueViolation(err, "users_registration_key"):
			return user.User{}, user.ErrRegistrationExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	users := make([]user.User, 0)
	if err = repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo userRepository) getUser(ctx context.Context, pred interface{}) (user.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(pred).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	var usr user.User
	if err = repo.db.GetContext(ctx, &usr, query, args...); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"lower(email)": core.CleanString(email, true)})
}

func (repo userRepository) GetUserByRegistration(ctx context.Context, registration string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"registration": registration})
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	uname := core.CleanString(username, true)
	return repo.getUser(ctx, sq.Or{sq.Eq{"lower(username)": uname}, sq.Eq{"lower(email)": uname}})
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns...).From("users")

	if filter.Search != "" {
		search := "%" + core.CleanString(filter.Search, true) + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"name": search},
			sq.ILike{"username": search},
			sq.ILike{"email": search},
			sq.ILike{"registration": search},
		})
	}
	if filter.Role != 0 {
		qb = qb.Where(sq.Eq{"role": filter.Role})
	}
	if filter.CourseID != 0 {
		qb = qb.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
	}
	if !filter.CreatedTo.IsZero() {
		qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo})
	}

	query, args, err := qb.OrderBy(orderBy("created_at DESC", ordering)...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	users := make([]user.User, 0)
	if err = repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	qb := psql.Update("users").
		Set("name", usr.Name).
		Set("username", usr.Username).
		Set("email", usr.Email).
		Set("role", usr.Role).
		Set("course_id", usr.CourseID).
		Set("photo", usr.Photo).
		Set("password_hash", usr.PasswordHash).
		Set("updated_at", usr.UpdatedAt).
		Where(sq.Eq{"id": usr.ID})
	if isActive != nil {
		qb = qb.Set("is_active", *isActive)
		usr.IsActive = *isActive
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, id int, lastLogin time.Time) error {
	query, args, err := psql.Update("users").
		Set("last_login", lastLogin).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "setting last login")
}

func (repo userRepository) SetUserRole(ctx context.Context, id, role int) error {
	query, args, err := psql.Update("users").
		Set("role", role).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "setting role")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete("users").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting users")
}
