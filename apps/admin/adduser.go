package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		registration, err := cli.generateRegistration(ctx)
		if err != nil {
			return err
		}
		usr = user.User{
			Name:         uname,
			Username:     uname,
			Email:        email,
			Registration: registration,
			Role:         user.RoleStudent,
			CreatedAt:    now,
		}
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	isActive := true
	if usr.ID == 0 {
		usr.IsActive = true
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive)
	return err
}

func (cli *commandLine) generateRegistration(ctx context.Context) (string, error) {
	for i := 0; i < core.MaxCodeAttempts; i++ {
		code, err := core.RegistrationCode()
		if err != nil {
			return "", err
		}
		if _, err = cli.usrRepo.GetUserByRegistration(ctx, code); err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return code, nil
			}
			return "", err
		}
	}
	return "", core.ErrCodeSpaceExhausted
}
