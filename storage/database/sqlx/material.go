package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core/material"
)

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *sqlx.DB) *materialRepository {
	return &materialRepository{db: db}
}

var materialColumns = []string{
	"id", "title", "type", "archive", "created_by", "subject_id", "class_id", "origin", "created_at",
}

func (repo materialRepository) CreateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	query, args, err := psql.Insert("materials").
		Columns("title", "type", "archive", "created_by", "subject_id", "class_id", "origin", "created_at").
		Values(m.Title, m.Type, m.Archive, m.CreatedBy, m.SubjectID, m.ClassID, m.Origin, m.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}

	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&m.ID); err != nil {
		return material.Material{}, errors.Wrap(err, "creating material")
	}
	return m, nil
}

func (repo materialRepository) GetMaterialByID(ctx context.Context, id int) (material.Material, error) {
	query, args, err := psql.Select(materialColumns...).From("materials").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}

	var m material.Material
	if err = repo.db.GetContext(ctx, &m, query, args...); err != nil {
		if isNoRows(err) {
			return material.Material{}, material.ErrNotFound
		}
		return material.Material{}, errors.Wrap(err, "getting material")
	}
	return m, nil
}

func (repo materialRepository) QueryMaterialsBySubject(ctx context.Context, subjectID, classID int) ([]material.Material, error) {
	qb := psql.Select(materialColumns...).
		From("materials").
		Where(sq.Eq{"subject_id": subjectID})
	if classID > 0 {
		qb = qb.Where(sq.Or{sq.Eq{"class_id": nil}, sq.Eq{"class_id": classID}})
	} else {
		qb = qb.Where("class_id IS NULL")
	}

	query, args, err := qb.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	materials := make([]material.Material, 0)
	if err = repo.db.SelectContext(ctx, &materials, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	return materials, nil
}

func (repo materialRepository) DeleteMaterial(ctx context.Context, id int) error {
	query, args, err := psql.Delete("materials").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return material.ErrNotFound
	}
	return nil
}
