package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/subject"
)

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil)

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{db: db}
}

var subjectColumns = []string{"id", "name", "professional_id", "course_id"}

func (repo subjectRepository) CreateSubject(ctx context.Context, s subject.Subject) (subject.Subject, error) {
	query, args, err := psql.Insert("subjects").
		Columns("name", "professional_id", "course_id").
		Values(s.Name, s.ProfessionalID, s.CourseID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&s.ID); err != nil {
		return subject.Subject{}, errors.Wrap(err, "creating subject")
	}
	return s, nil
}

func (repo subjectRepository) GetSubjectByID(ctx context.Context, id int) (subject.Subject, error) {
	query, args, err := psql.Select(subjectColumns...).From("subjects").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "building query")
	}

	var s subject.Subject
	if err = repo.db.GetContext(ctx, &s, query, args...); err != nil {
		if isNoRows(err) {
			return subject.Subject{}, subject.ErrNotFound
		}
		return subject.Subject{}, errors.Wrap(err, "getting subject")
	}
	return s, nil
}

func (repo subjectRepository) FilterSubjects(ctx context.Context, filter subject.QueryFilter, ordering ...core.DBOrdering) ([]subject.Subject, error) {
	qb := psql.Select(subjectColumns...).From("subjects")
	if filter.CourseID != 0 {
		qb = qb.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.ProfessionalID != 0 {
		qb = qb.Where(sq.Eq{"professional_id": filter.ProfessionalID})
	}

	query, args, err := qb.OrderBy(orderBy("name ASC", ordering)...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	subjects := make([]subject.Subject, 0)
	if err = repo.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering subjects")
	}
	return subjects, nil
}

func (repo subjectRepository) UpdateSubject(ctx context.Context, s subject.Subject) (subject.Subject, error) {
	query, args, err := psql.Update("subjects").
		Set("name", s.Name).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subject.Subject{}, subject.ErrNotFound
	}
	return s, nil
}

func (repo subjectRepository) DeleteSubject(ctx context.Context, id int) error {
	query, args, err := psql.Delete("subjects").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subject.ErrNotFound
	}
	return nil
}
