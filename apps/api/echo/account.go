package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core/account"
)

type accountApi struct {
	svc      *account.Service
	validate *validator.Validate
}

func registerAccountAPI(g *echo.Group, auth echo.MiddlewareFunc, deps ServerDeps) {
	api := accountApi{svc: deps.AccountSvc, validate: deps.Validate}

	ag := g.Group("/accounts", auth)
	ag.POST("", api.submit)
	ag.GET("/pending", api.queryPending, staffMiddleware())
	ag.POST("/:id/approve", api.approve, staffMiddleware())
	ag.POST("/:id/reject", api.reject, staffMiddleware())
}

func (api *accountApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data account.NewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Submit(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting account request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *accountApi) queryPending(ctx echo.Context) error {
	reqs, err := api.svc.QueryPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending requests")
	}
	if reqs == nil {
		reqs = []account.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *accountApi) approve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	req, err := api.svc.Approve(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "approving request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *accountApi) reject(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = api.svc.Reject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "rejecting request")
	}
	return ctx.NoContent(http.StatusNoContent)
}
