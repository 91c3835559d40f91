package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/account"
	"github.com/evolvere-edu/evolvere/core/class"
	"github.com/evolvere-edu/evolvere/core/course"
	"github.com/evolvere-edu/evolvere/core/form"
	"github.com/evolvere-edu/evolvere/core/material"
	"github.com/evolvere-edu/evolvere/core/subject"
	"github.com/evolvere-edu/evolvere/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// statusForSentinel maps domain errors to HTTP statuses.
func statusForSentinel(err error) (int, bool) {
	switch err {
	case user.ErrNotFound, account.ErrNotFound, course.ErrNotFound, subject.ErrNotFound,
		class.ErrNotFound, class.ErrInviteNotFound, form.ErrNotFound,
		form.ErrAnswerNotFound, material.ErrNotFound:
		return http.StatusNotFound, true
	case form.ErrFormExists, form.ErrAlreadyAnswered,
		class.ErrAlreadyEnrolled, class.ErrUseLimitReached, class.ErrClassFull,
		account.ErrRequestExists:
		return http.StatusConflict, true
	case class.ErrInviteExpired:
		return http.StatusGone, true
	case form.ErrDeadlinePassed:
		return http.StatusUnprocessableEntity, true
	case material.ErrUnsupportedType:
		return http.StatusUnsupportedMediaType, true
	case material.ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge, true
	case material.ErrNotOwner:
		return http.StatusForbidden, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := statusForSentinel(cause); ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				if usr, cErr := getContextUser(ctx); cErr == nil {
					logger.Error(msg, errors.Wrap(err, msg), usr)
				} else {
					logger.Error(msg, errors.Wrap(err, msg))
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
