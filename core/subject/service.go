package subject

import (
	"context"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var ErrNotFound = errors.New("subject not found")

type Repository interface {
	CreateSubject(ctx context.Context, s Subject) (Subject, error)
	GetSubjectByID(ctx context.Context, id int) (Subject, error)
	FilterSubjects(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Subject, error)
	UpdateSubject(ctx context.Context, s Subject) (Subject, error)
	DeleteSubject(ctx context.Context, id int) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	return svc.repo.CreateSubject(ctx, Subject{
		Name:           ns.Name,
		ProfessionalID: ns.ProfessionalID,
		CourseID:       ns.CourseID,
	})
}

func (svc *Service) GetByID(ctx context.Context, id int) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Subject, error) {
	return svc.repo.FilterSubjects(ctx, *filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id int, us UpdateSubject) (Subject, error) {
	orig, err := svc.repo.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	orig.Name = us.Name
	orig.ProfessionalID = us.ProfessionalID
	return svc.repo.UpdateSubject(ctx, orig)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteSubject(ctx, id)
}
