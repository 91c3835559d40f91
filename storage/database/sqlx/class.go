package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/class"
)

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

var (
	classColumns  = []string{"id", "name", "period", "capacity", "subject_id", "course_id"}
	inviteColumns = []string{"id", "code", "class_id", "expires_at", "max_uses", "use_count", "created_at"}
)

func (repo classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	query, args, err := psql.Insert("classes").
		Columns("name", "period", "capacity", "subject_id", "course_id").
		Values(c.Name, c.Period, c.Capacity, c.SubjectID, c.CourseID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return class.Class{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return class.Class{}, errors.Wrap(err, "creating class")
	}
	return c, nil
}

func (repo classRepository) GetClassByID(ctx context.Context, id int) (class.Class, error) {
	query, args, err := psql.Select(classColumns...).From("classes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return class.Class{}, errors.Wrap(err, "building query")
	}

	var c class.Class
	if err = repo.db.GetContext(ctx, &c, query, args...); err != nil {
		if isNoRows(err) {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "getting class")
	}
	return c, nil
}

func (repo classRepository) FilterClasses(ctx context.Context, filter class.QueryFilter, ordering ...core.DBOrdering) ([]class.Class, error) {
	qb := psql.Select(
		"c.id", "c.name", "c.period", "c.capacity", "c.subject_id", "c.course_id",
	).From("classes c")

	if filter.SubjectID != 0 {
		qb = qb.Where(sq.Eq{"c.subject_id": filter.SubjectID})
	}
	if filter.CourseID != 0 {
		qb = qb.Where(sq.Eq{"c.course_id": filter.CourseID})
	}
	if filter.StudentID != 0 {
		qb = qb.Join("class_student cs ON cs.class_id = c.id").
			Where(sq.Eq{"cs.student_id": filter.StudentID})
	}

	query, args, err := qb.OrderBy(orderBy("c.name ASC", ordering)...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	classes := make([]class.Class, 0)
	if err = repo.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering classes")
	}
	return classes, nil
}

func (repo classRepository) DeleteClass(ctx context.Context, id int) error {
	query, args, err := psql.Delete("classes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.ErrNotFound
	}
	return nil
}

func (repo classRepository) CreateInvite(ctx context.Context, inv class.Invite) (class.Invite, error) {
	query, args, err := psql.Insert("invites").
		Columns("code", "class_id", "expires_at", "max_uses", "use_count", "created_at").
		Values(inv.Code, inv.ClassID, inv.ExpiresAt, inv.MaxUses, inv.UseCount, inv.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return class.Invite{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&inv.ID); err != nil {
		if isUniqueViolation(err, "invites_code_key") {
			return class.Invite{}, class.ErrInviteCodeTaken
		}
		return class.Invite{}, errors.Wrap(err, "creating invite")
	}
	return inv, nil
}

func (repo classRepository) GetInviteByCode(ctx context.Context, code string) (class.Invite, error) {
	query, args, err := psql.Select(inviteColumns...).From("invites").Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return class.Invite{}, errors.Wrap(err, "building query")
	}

	var inv class.Invite
	if err = repo.db.GetContext(ctx, &inv, query, args...); err != nil {
		if isNoRows(err) {
			return class.Invite{}, class.ErrInviteNotFound
		}
		return class.Invite{}, errors.Wrap(err, "getting invite")
	}
	return inv, nil
}

// RedeemInvite locks the invite row so concurrent redemptions of a nearly
// exhausted invite serialize on the use count check.
func (repo classRepository) RedeemInvite(ctx context.Context, code string, studentID int) (class.EnrollmentResult, error) {
	var res class.EnrollmentResult

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Select(inviteColumns...).
		From("invites").
		Where(sq.Eq{"code": code}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return res, errors.Wrap(err, "building query")
	}

	var inv class.Invite
	if err = tx.GetContext(ctx, &inv, query, args...); err != nil {
		if isNoRows(err) {
			return res, class.ErrInviteNotFound
		}
		return res, errors.Wrap(err, "locking invite")
	}

	switch inv.Status(time.Now().UTC()) {
	case class.InviteExpired:
		return res, class.ErrInviteExpired
	case class.InviteExhausted:
		return res, class.ErrUseLimitReached
	}

	query, args, err = psql.Select("c.id", "c.name", "c.capacity", "co.name AS course_name").
		From("classes c").
		Join("courses co ON co.id = c.course_id").
		Where(sq.Eq{"c.id": inv.ClassID}).
		ToSql()
	if err != nil {
		return res, errors.Wrap(err, "building query")
	}

	var cls struct {
		ID         int    `db:"id"`
		Name       string `db:"name"`
		Capacity   int    `db:"capacity"`
		CourseName string `db:"course_name"`
	}
	if err = tx.GetContext(ctx, &cls, query, args...); err != nil {
		if isNoRows(err) {
			return res, class.ErrNotFound
		}
		return res, errors.Wrap(err, "getting class")
	}

	var alreadyEnrolled bool
	query, args, err = psql.Select("COUNT(*) > 0").
		From("class_student").
		Where(sq.Eq{"class_id": cls.ID, "student_id": studentID}).
		ToSql()
	if err != nil {
		return res, errors.Wrap(err, "building query")
	}
	if err = tx.GetContext(ctx, &alreadyEnrolled, query, args...); err != nil {
		return res, errors.Wrap(err, "checking enrollment")
	}
	if alreadyEnrolled {
		return res, class.ErrAlreadyEnrolled
	}

	if cls.Capacity > 0 {
		var enrolled int
		query, args, err = psql.Select("COUNT(*)").From("class_student").Where(sq.Eq{"class_id": cls.ID}).ToSql()
		if err != nil {
			return res, errors.Wrap(err, "building query")
		}
		if err = tx.GetContext(ctx, &enrolled, query, args...); err != nil {
			return res, errors.Wrap(err, "counting enrollments")
		}
		if enrolled >= cls.Capacity {
			return res, class.ErrClassFull
		}
	}

	query, args, err = psql.Insert("class_student").
		Columns("class_id", "student_id", "joined_at").
		Values(cls.ID, studentID, time.Now().UTC()).
		ToSql()
	if err != nil {
		return res, errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "class_student_pkey") {
			return res, class.ErrAlreadyEnrolled
		}
		return res, errors.Wrap(err, "enrolling student")
	}

	query, args, err = psql.Update("invites").
		Set("use_count", sq.Expr("use_count + 1")).
		Where(sq.Eq{"id": inv.ID}).
		ToSql()
	if err != nil {
		return res, errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return res, errors.Wrap(err, "incrementing use count")
	}

	if err = tx.Commit(); err != nil {
		return res, errors.Wrap(err, "committing transaction")
	}

	res.ClassID = cls.ID
	res.ClassName = cls.Name
	res.CourseName = cls.CourseName
	return res, nil
}

func (repo classRepository) QueryEnrollments(ctx context.Context, classID int) ([]class.Enrollment, error) {
	query, args, err := psql.Select("class_id", "student_id", "joined_at").
		From("class_student").
		Where(sq.Eq{"class_id": classID}).
		OrderBy("joined_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	enrollments := make([]class.Enrollment, 0)
	if err = repo.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments, nil
}

func (repo classRepository) QueryStudentClassIDs(ctx context.Context, studentID int) ([]int, error) {
	query, args, err := psql.Select("class_id").
		From("class_student").
		Where(sq.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	ids := make([]int, 0)
	if err = repo.db.SelectContext(ctx, &ids, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ids, nil
		}
		return nil, errors.Wrap(err, "querying student classes")
	}
	return ids, nil
}
