package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core/form"
)

type formRepository struct {
	db *sqlx.DB
}

var _ form.Repository = (*formRepository)(nil)

func NewFormRepository(db *sqlx.DB) *formRepository {
	return &formRepository{db: db}
}

var formColumns = []string{"id", "title", "description", "created_by", "subject_id", "class_id", "deadline", "status"}

func (repo formRepository) CreateForm(ctx context.Context, f form.Form) (form.Form, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return form.Form{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Insert("forms").
		Columns("title", "description", "created_by", "subject_id", "class_id", "deadline", "status").
		Values(f.Title, f.Description, f.CreatedBy, f.SubjectID, f.ClassID, f.Deadline, f.Status).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return form.Form{}, errors.Wrap(err, "building query")
	}
	if err = tx.QueryRowxContext(ctx, query, args...).Scan(&f.ID); err != nil {
		if isUniqueViolation(err, "forms_title_subject_class_idx") {
			return form.Form{}, form.ErrFormExists
		}
		return form.Form{}, errors.Wrap(err, "creating form")
	}

	for qi := range f.Questions {
		q := &f.Questions[qi]
		q.FormID = f.ID

		query, args, err = psql.Insert("questions").
			Columns("form_id", "text", "points", "type", "position").
			Values(q.FormID, q.Text, q.Points, q.Type, q.Position).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return form.Form{}, errors.Wrap(err, "building query")
		}
		if err = tx.QueryRowxContext(ctx, query, args...).Scan(&q.ID); err != nil {
			return form.Form{}, errors.Wrap(err, "creating question")
		}

		for oi := range q.Options {
			o := &q.Options[oi]
			o.QuestionID = q.ID

			query, args, err = psql.Insert("options").
				Columns("question_id", "text", "correct", "position").
				Values(o.QuestionID, o.Text, o.Correct, o.Position).
				Suffix("RETURNING id").
				ToSql()
			if err != nil {
				return form.Form{}, errors.Wrap(err, "building query")
			}
			if err = tx.QueryRowxContext(ctx, query, args...).Scan(&o.ID); err != nil {
				return form.Form{}, errors.Wrap(err, "creating option")
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return form.Form{}, errors.Wrap(err, "committing transaction")
	}
	return f, nil
}

func (repo formRepository) GetFormByID(ctx context.Context, id int) (form.Form, error) {
	query, args, err := psql.Select(formColumns...).From("forms").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return form.Form{}, errors.Wrap(err, "building query")
	}

	var f form.Form
	if err = repo.db.GetContext(ctx, &f, query, args...); err != nil {
		if isNoRows(err) {
			return form.Form{}, form.ErrNotFound
		}
		return form.Form{}, errors.Wrap(err, "getting form")
	}

	query, args, err = psql.Select("id", "form_id", "text", "points", "type", "position").
		From("questions").
		Where(sq.Eq{"form_id": id}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return form.Form{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.SelectContext(ctx, &f.Questions, query, args...); err != nil {
		return form.Form{}, errors.Wrap(err, "getting questions")
	}

	for qi := range f.Questions {
		q := &f.Questions[qi]
		query, args, err = psql.Select("id", "question_id", "text", "correct", "position").
			From("options").
			Where(sq.Eq{"question_id": q.ID}).
			OrderBy("position ASC").
			ToSql()
		if err != nil {
			return form.Form{}, errors.Wrap(err, "building query")
		}
		if err = repo.db.SelectContext(ctx, &q.Options, query, args...); err != nil {
			return form.Form{}, errors.Wrap(err, "getting options")
		}
	}
	return f, nil
}

func (repo formRepository) FormTitleExists(ctx context.Context, title string, subjectID int, classID null.Int) (bool, error) {
	qb := psql.Select("COUNT(*)").
		From("forms").
		Where(sq.Eq{"title": title, "subject_id": subjectID})
	if classID.Valid {
		qb = qb.Where(sq.Eq{"class_id": classID.Int})
	} else {
		qb = qb.Where("class_id IS NULL")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}

	var count int
	if err = repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, errors.Wrap(err, "checking form title")
	}
	return count > 0, nil
}

const pendingFormsQuery = `
SELECT f.id, f.title, f.description, f.created_by, f.subject_id, f.class_id, f.deadline, f.status
FROM forms f
WHERE f.deadline > $2
  AND (
      f.class_id IN (SELECT cs.class_id FROM class_student cs WHERE cs.student_id = $1)
      OR (
          f.class_id IS NULL
          AND f.subject_id IN (
              SELECT c.subject_id
              FROM classes c
              JOIN class_student cs ON cs.class_id = c.id
              WHERE cs.student_id = $1
          )
      )
  )
  AND NOT EXISTS (SELECT 1 FROM answers a WHERE a.form_id = f.id AND a.user_id = $1)
ORDER BY f.deadline ASC`

func (repo formRepository) QueryPendingForms(ctx context.Context, studentID int, now time.Time) ([]form.Form, error) {
	forms := make([]form.Form, 0)
	if err := repo.db.SelectContext(ctx, &forms, pendingFormsQuery, studentID, now); err != nil {
		return nil, errors.Wrap(err, "querying pending forms")
	}
	return forms, nil
}

func (repo formRepository) SaveAnswers(ctx context.Context, answers []form.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	qb := psql.Insert("answers").
		Columns("form_id", "question_id", "option_id", "open_answer", "user_id", "corrected")
	for _, a := range answers {
		qb = qb.Values(a.FormID, a.QuestionID, a.OptionID, a.OpenAnswer, a.UserID, a.Corrected)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "answers_form_id_question_id_user_id_key") {
			return form.ErrAlreadyAnswered
		}
		return errors.Wrap(err, "saving answers")
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

const ungradedOpenAnswersQuery = `
SELECT a.id AS answer_id, f.id AS form_id, f.title AS form_title,
       q.id AS question_id, q.text AS question_text, q.points AS max_points,
       u.id AS student_id, u.name AS student_name, a.open_answer
FROM answers a
JOIN questions q ON q.id = a.question_id
JOIN forms f ON f.id = a.form_id
JOIN users u ON u.id = a.user_id
WHERE f.subject_id = $1
  AND q.type = 'open'
  AND NOT a.corrected
ORDER BY f.deadline ASC, a.id ASC`

func (repo formRepository) QueryUngradedOpenAnswers(ctx context.Context, subjectID int) ([]form.OpenAnswerItem, error) {
	items := make([]form.OpenAnswerItem, 0)
	if err := repo.db.SelectContext(ctx, &items, ungradedOpenAnswersQuery, subjectID); err != nil {
		return nil, errors.Wrap(err, "querying ungraded open answers")
	}
	return items, nil
}

// results are computed per student once the last open answer of a form is
// graded: choice answers earn the question's points when the selected option
// is correct, open answers earn the teacher's points.
const insertResultsQuery = `
INSERT INTO results_form (form_id, user_id, points)
SELECT a.form_id, a.user_id,
       COALESCE(SUM(
           CASE WHEN q.type = 'choice'
                THEN CASE WHEN o.correct THEN q.points ELSE 0 END
                ELSE ca.points
           END), 0)
FROM answers a
JOIN questions q ON q.id = a.question_id
LEFT JOIN options o ON o.id = a.option_id
LEFT JOIN comment_answers ca ON ca.answer_id = a.id
WHERE a.form_id = $1
GROUP BY a.form_id, a.user_id
ON CONFLICT (form_id, user_id) DO UPDATE SET points = EXCLUDED.points`

func (repo formRepository) SaveCorrection(ctx context.Context, c form.Correction, teacherID int) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var formID int
	query, args, err := psql.Select("form_id").
		From("answers").
		Where(sq.Eq{"id": c.AnswerID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = tx.GetContext(ctx, &formID, query, args...); err != nil {
		if isNoRows(err) {
			return form.ErrAnswerNotFound
		}
		return errors.Wrap(err, "locking answer")
	}

	// lock the form row so concurrent corrections of its last answers
	// serialize and exactly one of them computes the results
	var lockedID int
	query, args, err = psql.Select("id").
		From("forms").
		Where(sq.Eq{"id": formID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = tx.GetContext(ctx, &lockedID, query, args...); err != nil {
		return errors.Wrap(err, "locking form")
	}

	query, args, err = psql.Insert("comment_answers").
		Columns("answer_id", "teacher_id", "comment", "points", "created_at").
		Values(c.AnswerID, teacherID, c.Comment, c.Points, time.Now().UTC()).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "saving correction")
	}

	query, args, err = psql.Update("answers").
		Set("corrected", true).
		Where(sq.Eq{"id": c.AnswerID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "marking answer corrected")
	}

	var remaining int
	query, args, err = psql.Select("COUNT(*)").
		From("answers").
		Where(sq.Eq{"form_id": formID, "corrected": false}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = tx.GetContext(ctx, &remaining, query, args...); err != nil {
		return errors.Wrap(err, "counting uncorrected answers")
	}

	if remaining == 0 {
		if _, err = tx.ExecContext(ctx, insertResultsQuery, formID); err != nil {
			return errors.Wrap(err, "writing results")
		}
		query, args, err = psql.Update("forms").
			Set("status", form.StatusGraded).
			Where(sq.Eq{"id": formID}).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "updating form status")
		}
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo formRepository) GetStudentOverallAverage(ctx context.Context, studentID int) (float64, error) {
	var avg sql.NullFloat64
	query := `SELECT AVG(points) FROM results_form WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &avg, query, studentID); err != nil {
		return 0, errors.Wrap(err, "querying overall average")
	}
	if !avg.Valid {
		return 0, form.ErrNoResults
	}
	return avg.Float64, nil
}

const subjectAveragesQuery = `
SELECT s.name, AVG(r.points) AS grade
FROM results_form r
JOIN forms f ON f.id = r.form_id
JOIN subjects s ON s.id = f.subject_id
WHERE r.user_id = $1
GROUP BY s.name
ORDER BY s.name ASC`

func (repo formRepository) GetStudentSubjectAverages(ctx context.Context, studentID int) ([]form.SubjectGrade, error) {
	grades := make([]form.SubjectGrade, 0)
	if err := repo.db.SelectContext(ctx, &grades, subjectAveragesQuery, studentID); err != nil {
		return nil, errors.Wrap(err, "querying subject averages")
	}
	return grades, nil
}

const bestGradeQuery = `
SELECT s.name, r.points AS grade
FROM results_form r
JOIN forms f ON f.id = r.form_id
JOIN subjects s ON s.id = f.subject_id
WHERE r.user_id = $1
ORDER BY r.points DESC
LIMIT 1`

func (repo formRepository) GetStudentBestGrade(ctx context.Context, studentID int) (form.BestGrade, error) {
	var best form.BestGrade
	if err := repo.db.GetContext(ctx, &best, bestGradeQuery, studentID); err != nil {
		if isNoRows(err) {
			return form.BestGrade{}, form.ErrNoResults
		}
		return form.BestGrade{}, errors.Wrap(err, "querying best grade")
	}
	return best, nil
}
