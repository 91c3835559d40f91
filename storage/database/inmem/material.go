package inmemdb

import (
	"context"
	"sort"

	"github.com/evolvere-edu/evolvere/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.materialPK++
	m.ID = repo.db.materialPK
	repo.db.materials[m.ID] = &m
	return m, nil
}

func (repo *materialRepository) GetMaterialByID(ctx context.Context, id int) (material.Material, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.materials[id]; ok {
		return *m, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) QueryMaterialsBySubject(ctx context.Context, subjectID, classID int) ([]material.Material, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	materials := make([]material.Material, 0)
	for _, m := range repo.db.materials {
		if m.SubjectID != subjectID {
			continue
		}
		if m.ClassID.Valid && (classID <= 0 || m.ClassID.Int != classID) {
			continue
		}
		materials = append(materials, *m)
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].CreatedAt.After(materials[j].CreatedAt) })
	return materials, nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return material.ErrNotFound
	}
	delete(repo.db.materials, id)
	return nil
}
