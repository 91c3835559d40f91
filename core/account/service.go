package account

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/course"
	"github.com/evolvere-edu/evolvere/core/user"
)

var (
	ErrNotFound      = errors.New("account request not found")
	ErrRequestExists = errors.New("a pending request already exists for this user")
)

type Repository interface {
	CreateRequest(ctx context.Context, req Request) (Request, error)
	GetRequestByID(ctx context.Context, id int) (Request, error)
	GetRequestByProfessionalID(ctx context.Context, professionalID int) (Request, error)
	QueryPendingRequests(ctx context.Context) ([]Request, error)
	ApproveRequest(ctx context.Context, id int) error
	DeleteRequest(ctx context.Context, id int) error
}

type Service struct {
	repo      Repository
	usrRepo   user.Repository
	courseSvc *course.Service
	mailSvc   core.EmailService
	conf      *core.Config
}

func NewService(repo Repository, usrRepo user.Repository, courseSvc *course.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, usrRepo: usrRepo, courseSvc: courseSvc, mailSvc: mailSvc, conf: conf}
}

// Submit files a pending professional request. The access code must match an
// existing course; a user may only have one request.
func (svc *Service) Submit(ctx context.Context, professionalID int, nr NewRequest) (Request, error) {
	if nr.Role != user.RoleTeacher && nr.Role != user.RoleCoordinator {
		return Request{}, core.NewValidationError(nil, core.FieldError{
			Field: "role", Error: "only teacher and coordinator roles may be requested",
		})
	}
	if _, err := svc.courseSvc.GetByCode(ctx, nr.AccessCode); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return Request{}, core.NewValidationError(nil, core.FieldError{
				Field: "access_code", Error: "unknown course access code",
			})
		}
		return Request{}, errors.Wrap(err, "checking access code")
	}
	if _, err := svc.repo.GetRequestByProfessionalID(ctx, professionalID); err == nil {
		return Request{}, ErrRequestExists
	} else if errors.Cause(err) != ErrNotFound {
		return Request{}, errors.Wrap(err, "checking existing request")
	}

	req := Request{
		ProfessionalID: professionalID,
		Institution:    nr.Institution,
		AccessCode:     nr.AccessCode,
		DiplomaPath:    nr.DiplomaPath,
		Role:           nr.Role,
		CreatedAt:      time.Now().UTC(),
	}
	return svc.repo.CreateRequest(ctx, req)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Request, error) {
	return svc.repo.GetRequestByID(ctx, id)
}

func (svc *Service) QueryPending(ctx context.Context) ([]Request, error) {
	return svc.repo.QueryPendingRequests(ctx)
}

// Approve marks the request approved, promotes the user to the requested
// role and notifies them by email.
func (svc *Service) Approve(ctx context.Context, id int) (Request, error) {
	req, err := svc.repo.GetRequestByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	usr, err := svc.usrRepo.GetUserByID(ctx, req.ProfessionalID)
	if err != nil {
		return Request{}, errors.Wrap(err, "finding professional")
	}

	if err = svc.repo.ApproveRequest(ctx, id); err != nil {
		return Request{}, err
	}
	if err = svc.usrRepo.SetUserRole(ctx, usr.ID, req.Role); err != nil {
		return Request{}, errors.Wrap(err, "promoting user")
	}

	req.Approved = true
	svc.sendDecisionMail(usr, true)
	return req, nil
}

// Reject deletes the request and notifies the user by email.
func (svc *Service) Reject(ctx context.Context, id int) error {
	req, err := svc.repo.GetRequestByID(ctx, id)
	if err != nil {
		return err
	}
	usr, err := svc.usrRepo.GetUserByID(ctx, req.ProfessionalID)
	if err != nil {
		return errors.Wrap(err, "finding professional")
	}

	if err = svc.repo.DeleteRequest(ctx, id); err != nil {
		return err
	}
	svc.sendDecisionMail(usr, false)
	return nil
}

func (svc *Service) sendDecisionMail(usr user.User, approved bool) {
	tmpl, subject := "account-rejected", "Your account request was declined"
	if approved {
		tmpl, subject = "account-approved", "Your account request was approved"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: struct{ Name string }{usr.Name},
	})
}
