package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrRegistrationExists = errors.New("a user with this registration code already exists")
)

type Repository interface {
	// CheckUniqueness fails with ErrUsernameExists or ErrEmailExists when
	// another (non-excluded) user already holds one of the values.
	CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
	GetUserByRegistration(ctx context.Context, registration string) (User, error)
	CreateUser(ctx context.Context, usr User) (User, error)
	QueryAllUsers(ctx context.Context) ([]User, error)
	GetUserByID(ctx context.Context, id int) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
	// FilterUsers applies AND on available QueryFilter fields. QueryFilter.Search
	// does a case-insensitive match on one of Name, Username, Email or Registration.
	FilterUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
	UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
	SetUserLastLogin(ctx context.Context, id int, lastLogin time.Time) error
	SetUserRole(ctx context.Context, id, role int) error
	DeleteUsersByID(ctx context.Context, ids ...int) error
}

type Service struct {
	repo    Repository
	mailSvc core.EmailService
	conf    *core.Config
}

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a student account with a fresh unique registration code.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.CourseID != 0 {
		usr.CourseID.SetValid(nu.CourseID)
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	for i := 0; i < core.MaxCodeAttempts; i++ {
		registration, err := svc.generateRegistration(ctx)
		if err != nil {
			return User{}, err
		}
		usr.Registration = registration

		created, err := svc.repo.CreateUser(ctx, usr)
		if errors.Cause(err) == ErrRegistrationExists {
			continue // lost the race on a colliding code
		}
		if err != nil {
			return User{}, err
		}
		svc.sendWelcomeMail(created)
		return created, nil
	}
	return User{}, core.ErrCodeSpaceExhausted
}

// generateRegistration retries until the generated code does not collide
// with an existing user, up to core.MaxCodeAttempts.
func (svc *Service) generateRegistration(ctx context.Context) (string, error) {
	for i := 0; i < core.MaxCodeAttempts; i++ {
		code, err := core.RegistrationCode()
		if err != nil {
			return "", err
		}
		if _, err = svc.repo.GetUserByRegistration(ctx, code); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return code, nil
			}
			return "", err
		}
	}
	return "", core.ErrCodeSpaceExhausted
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, *filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Photo != "" {
		usr.Photo.SetValid(uu.Photo)
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetUserLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin.SetValid(now)
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// RequestPasswordReset emails a timed, signed reset link to the user.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return errInvalidToken
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return err
}

func (svc *Service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct {
			Name         string
			Registration string
		}{usr.Name, usr.Registration},
	})
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{usr.Name, EncodeUID(usr), makeToken(usr)},
	})
}
