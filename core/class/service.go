package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var (
	ErrNotFound        = errors.New("class not found")
	ErrInviteNotFound  = errors.New("invite code not found")
	ErrInviteCodeTaken = errors.New("invite code already in use")
	ErrInviteExpired   = errors.New("invite code has expired")
	ErrUseLimitReached = errors.New("invite code has reached its use limit")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this class")
	ErrClassFull       = errors.New("class is at capacity")
)

type Repository interface {
	CreateClass(ctx context.Context, c Class) (Class, error)
	GetClassByID(ctx context.Context, id int) (Class, error)
	FilterClasses(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Class, error)
	DeleteClass(ctx context.Context, id int) error

	CreateInvite(ctx context.Context, inv Invite) (Invite, error)
	GetInviteByCode(ctx context.Context, code string) (Invite, error)
	// RedeemInvite atomically checks the invite (expiry, use limit), the
	// enrollment uniqueness and the class capacity, then inserts the
	// enrollment row and increments the invite use count. All checks and
	// writes happen in one transaction; concurrent redemptions of a nearly
	// exhausted invite must not both succeed.
	RedeemInvite(ctx context.Context, code string, studentID int) (EnrollmentResult, error)

	QueryEnrollments(ctx context.Context, classID int) ([]Enrollment, error)
	QueryStudentClassIDs(ctx context.Context, studentID int) ([]int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	return svc.repo.CreateClass(ctx, Class{
		Name:      nc.Name,
		Period:    nc.Period,
		Capacity:  nc.Capacity,
		SubjectID: nc.SubjectID,
		CourseID:  nc.CourseID,
	})
}

func (svc *Service) GetByID(ctx context.Context, id int) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Class, error) {
	return svc.repo.FilterClasses(ctx, *filter, ordering...)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteClass(ctx, id)
}

// CreateInvite generates a fresh invite code for the class, retrying on
// collision up to core.MaxCodeAttempts.
func (svc *Service) CreateInvite(ctx context.Context, classID int, ni NewInvite) (Invite, error) {
	if _, err := svc.repo.GetClassByID(ctx, classID); err != nil {
		return Invite{}, err
	}

	now := time.Now().UTC()
	for i := 0; i < core.MaxCodeAttempts; i++ {
		code, err := core.InviteCode()
		if err != nil {
			return Invite{}, err
		}
		if _, err = svc.repo.GetInviteByCode(ctx, code); err == nil {
			continue // collision; try again
		} else if errors.Cause(err) != ErrInviteNotFound {
			return Invite{}, err
		}

		inv, err := svc.repo.CreateInvite(ctx, Invite{
			Code:      code,
			ClassID:   classID,
			ExpiresAt: ni.expiresAt(now),
			MaxUses:   ni.maxUses(),
			CreatedAt: now,
		})
		if errors.Cause(err) == ErrInviteCodeTaken {
			continue // lost the race on a colliding code
		}
		return inv, err
	}
	return Invite{}, core.ErrCodeSpaceExhausted
}

// Redeem enrolls the student into the invite's class. Fails with
// ErrInviteNotFound, ErrInviteExpired, ErrUseLimitReached,
// ErrAlreadyEnrolled or ErrClassFull.
func (svc *Service) Redeem(ctx context.Context, code string, studentID int) (EnrollmentResult, error) {
	return svc.repo.RedeemInvite(ctx, core.CleanString(code), studentID)
}

func (svc *Service) Enrollments(ctx context.Context, classID int) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, classID)
}
