package course

import (
	"context"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var (
	ErrNotFound   = errors.New("course not found")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type Repository interface {
	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourseByID(ctx context.Context, id int) (Course, error)
	GetCourseByCode(ctx context.Context, code string) (Course, error)
	// QueryCourses does a case-insensitive search on name/institution when
	// search is non-empty.
	QueryCourses(ctx context.Context, search string, ordering ...core.DBOrdering) ([]Course, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Import creates a course from seed data; duplicate codes are skipped upstream.
func (svc *Service) Import(ctx context.Context, c Course) (Course, error) {
	c.Code = core.CleanString(c.Code, true /* lower */)
	c.Name = core.CleanString(c.Name)
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) GetByCode(ctx context.Context, code string) (Course, error) {
	return svc.repo.GetCourseByCode(ctx, core.CleanString(code, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, search string, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, core.CleanString(search), ordering...)
}
