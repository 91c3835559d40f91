package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core/form"
)

type formApi struct {
	svc      *form.Service
	validate *validator.Validate
}

func registerFormAPI(g *echo.Group, auth echo.MiddlewareFunc, deps ServerDeps) {
	api := formApi{svc: deps.FormSvc, validate: deps.Validate}

	fg := g.Group("/forms", auth)
	fg.POST("", api.publish, professionalMiddleware())
	fg.GET("/student/pending", api.pending, studentMiddleware())
	fg.POST("/answers", api.answer, studentMiddleware())
	fg.GET("/correction/:subjectID", api.ungraded, professionalMiddleware())
	fg.POST("/correction", api.correct, professionalMiddleware())
	fg.GET("/:id", api.retrieve)

	g.GET("/performance/me", api.report, auth, studentMiddleware())
}

func (api *formApi) publish(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data form.NewForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewForm")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Publish(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "publishing form")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *formApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	f, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) pending(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	overview, err := api.svc.PendingForStudent(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying pending forms")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *formApi) answer(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data form.NewAnswers
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnswers")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.SaveAnswers(ctx.Request().Context(), usr.ID, data); err != nil {
		return errors.Wrap(err, "saving answers")
	}
	return ctx.JSON(http.StatusCreated, SuccessResponse{"answers recorded"})
}

func (api *formApi) ungraded(ctx echo.Context) error {
	subjectID, err := strconv.Atoi(ctx.Param("subjectID"))
	if err != nil {
		return errHttpNotFound
	}

	items, err := api.svc.UngradedOpenAnswers(ctx.Request().Context(), subjectID)
	if err != nil {
		return errors.Wrap(err, "querying ungraded answers")
	}
	if items == nil {
		items = []form.OpenAnswerItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *formApi) correct(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data form.Correction
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Correction")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.SaveCorrection(ctx.Request().Context(), usr.ID, data); err != nil {
		return errors.Wrap(err, "saving correction")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{"correction saved"})
}

func (api *formApi) report(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	report, err := api.svc.StudentReport(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "building performance report")
	}
	return ctx.JSON(http.StatusOK, report)
}
