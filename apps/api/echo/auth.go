package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/session"
	"github.com/evolvere-edu/evolvere/core/user"
)

const (
	sessionCookieName = "evolvere_session"
	contextUserKey    = "user"
)

func setSessionCookie(ctx echo.Context, s session.Session, conf *core.Config) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
	}
	if conf.Debug {
		cookie.SameSite = http.SameSiteLaxMode
	} else {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	ctx.SetCookie(cookie)
}

func clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}

// sessionMiddleware authenticates the request from the session cookie and
// stores the user in the context.
func sessionMiddleware(sessionSvc *session.Service, userSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookie, err := ctx.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				return errUnauthorized
			}

			s, err := sessionSvc.Get(ctx.Request().Context(), cookie.Value)
			if err != nil {
				if errors.Cause(err) == session.ErrNotFound {
					clearSessionCookie(ctx)
					return errUnauthorized
				}
				return errors.Wrap(err, "getting session")
			}

			usr, err := userSvc.GetByID(ctx.Request().Context(), s.UserID)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "getting session user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// authenticate checks the credentials and returns the active user.
func authenticate(ctx echo.Context, uname, pwd string, svc *user.Service) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}

	usr, err = svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
