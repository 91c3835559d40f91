package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

var courseColumns = []string{"id", "code", "name", "institution", "city", "state"}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	query, args, err := psql.Insert("courses").
		Columns("code", "name", "institution", "city", "state").
		Values(c.Code, c.Name, c.Institution, c.City, c.State).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&c.ID); err != nil {
		if isUniqueViolation(err, "courses_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return c, nil
}

func (repo courseRepository) getCourse(ctx context.Context, pred interface{}) (course.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("courses").Where(pred).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}

	var c course.Course
	if err = repo.db.GetContext(ctx, &c, query, args...); err != nil {
		if isNoRows(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return c, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id int) (course.Course, error) {
	return repo.getCourse(ctx, sq.Eq{"id": id})
}

func (repo courseRepository) GetCourseByCode(ctx context.Context, code string) (course.Course, error) {
	return repo.getCourse(ctx, sq.Eq{"code": code})
}

func (repo courseRepository) QueryCourses(ctx context.Context, search string, ordering ...core.DBOrdering) ([]course.Course, error) {
	qb := psql.Select(courseColumns...).From("courses")
	if search != "" {
		s := "%" + core.CleanString(search, true) + "%"
		qb = qb.Where(sq.Or{sq.ILike{"name": s}, sq.ILike{"institution": s}})
	}

	query, args, err := qb.OrderBy(orderBy("name ASC", ordering)...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	courses := make([]course.Course, 0)
	if err = repo.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}
