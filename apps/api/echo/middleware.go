package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core/user"
)

func roleMiddleware(allowed func(user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if allowed(usr) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsAdmin() })
}

// staffMiddleware allows admins and coordinators.
func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsStaff() })
}

// professionalMiddleware allows teachers and coordinators (and admins).
func professionalMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool {
		return usr.IsProfessional() || usr.IsAdmin()
	})
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsStudent() })
}
