package user

import (
	"context"
	"regexp"
	"testing"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	emailsvc "github.com/evolvere-edu/evolvere/services/email"
)

var registrationRe = regexp.MustCompile(`^[0-9]{8}$`)

// registrationStubRepo fakes only the registration lookup.
type registrationStubRepo struct {
	Repository
	calls int
	taken bool
}

func (r *registrationStubRepo) GetUserByRegistration(ctx context.Context, registration string) (User, error) {
	r.calls++
	if r.taken {
		return User{Registration: registration}, nil
	}
	return User{}, ErrNotFound
}

func Test_generateRegistration(t *testing.T) {
	t.Run("returns a fresh code", func(t *testing.T) {
		repo := &registrationStubRepo{}
		svc := NewService(repo, nil, nil)

		code, err := svc.generateRegistration(context.Background())
		if err != nil {
			t.Fatalf("generateRegistration() error = %v", err)
		}
		if !registrationRe.MatchString(code) {
			t.Errorf("generateRegistration() = %q; want 8 digits", code)
		}
		if repo.calls != 1 {
			t.Errorf("lookups = %d; want 1", repo.calls)
		}
	})

	t.Run("gives up after the attempt bound", func(t *testing.T) {
		repo := &registrationStubRepo{taken: true}
		svc := NewService(repo, nil, nil)

		_, err := svc.generateRegistration(context.Background())
		if errors.Cause(err) != core.ErrCodeSpaceExhausted {
			t.Fatalf("generateRegistration() error = %v; want %v", err, core.ErrCodeSpaceExhausted)
		}
		if repo.calls != core.MaxCodeAttempts {
			t.Errorf("lookups = %d; want %d", repo.calls, core.MaxCodeAttempts)
		}
	})
}

// collidingCreateRepo loses the unique-registration race a set number of
// times before letting the insert through.
type collidingCreateRepo struct {
	registrationStubRepo
	creates    int
	collisions int
}

func (r *collidingCreateRepo) CreateUser(ctx context.Context, usr User) (User, error) {
	r.creates++
	if r.creates <= r.collisions {
		return User{}, ErrRegistrationExists
	}
	usr.ID = r.creates
	return usr, nil
}

func TestService_Register(t *testing.T) {
	conf := &core.Config{AppName: "Evolvere"}
	nu := NewUser{Name: "Jane Doe", Username: "janedoe", Email: "jane@test.cd", Password: "s3cr3t-pwd"}

	t.Run("retries a code lost to a concurrent insert", func(t *testing.T) {
		repo := &collidingCreateRepo{collisions: 1}
		svc := NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf)

		usr, err := svc.Register(context.Background(), nu)
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if !registrationRe.MatchString(usr.Registration) {
			t.Errorf("Registration = %q; want 8 digits", usr.Registration)
		}
		if repo.creates != 2 {
			t.Errorf("inserts = %d; want 2", repo.creates)
		}
	})

	t.Run("gives up after the attempt bound", func(t *testing.T) {
		repo := &collidingCreateRepo{collisions: core.MaxCodeAttempts + 1}
		svc := NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf)

		_, err := svc.Register(context.Background(), nu)
		if errors.Cause(err) != core.ErrCodeSpaceExhausted {
			t.Fatalf("Register() error = %v; want %v", err, core.ErrCodeSpaceExhausted)
		}
		if repo.creates != core.MaxCodeAttempts {
			t.Errorf("inserts = %d; want %d", repo.creates, core.MaxCodeAttempts)
		}
	})
}
