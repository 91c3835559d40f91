package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/class"
)

type classApi struct {
	svc      *class.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, auth echo.MiddlewareFunc, deps ServerDeps) {
	api := classApi{svc: deps.ClassSvc, validate: deps.Validate}

	cg := g.Group("/classes", auth)
	cg.POST("", api.create, professionalMiddleware())
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.DELETE("/:id", api.destroy, professionalMiddleware())
	cg.POST("/:id/invites", api.createInvite, professionalMiddleware())
	cg.GET("/:id/enrollments", api.enrollments, staffMiddleware())

	eg := g.Group("/enrollments", auth)
	eg.POST("/join-with-code", api.redeem, studentMiddleware())
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) query(ctx echo.Context) error {
	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Filter(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	c, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) createInvite(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data class.NewInvite
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvite")
	}

	inv, err := api.svc.CreateInvite(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "creating invite")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

type redeemInviteRequest struct {
	Code string `json:"code" validate:"required,invitecode"`
}

func (r *redeemInviteRequest) Validate(validate *validator.Validate) error {
	r.Code = strings.ToUpper(core.CleanString(r.Code))
	return validate.Struct(r)
}

func (api *classApi) redeem(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data redeemInviteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to redeemInviteRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Redeem(ctx.Request().Context(), data.Code, usr.ID)
	if err != nil {
		return errors.Wrap(err, "redeeming invite")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classApi) enrollments(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	enrollments, err := api.svc.Enrollments(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []class.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
