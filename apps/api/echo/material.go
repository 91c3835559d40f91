package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/material"
)

type materialApi struct {
	svc      *material.Service
	validate *validator.Validate
}

func registerMaterialAPI(g *echo.Group, auth echo.MiddlewareFunc, deps ServerDeps) {
	api := materialApi{svc: deps.MaterialSvc, validate: deps.Validate}

	mg := g.Group("/materials", auth)
	mg.POST("", api.upload, professionalMiddleware())
	mg.GET("", api.query)
	mg.DELETE("/:id", api.destroy, professionalMiddleware())
}

func (api *materialApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	data := material.NewMaterial{
		Title: ctx.FormValue("title"),
	}
	if data.SubjectID, err = strconv.Atoi(ctx.FormValue("subject_id")); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: "must be an integer"})
	}
	if classID := ctx.FormValue("class_id"); classID != "" {
		if data.ClassID, err = strconv.Atoi(classID); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "must be an integer"})
		}
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile("archive")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "archive", Error: "file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	m, err := api.svc.Upload(ctx.Request().Context(), usr.ID, data, fh.Header.Get("Content-Type"), fh.Size, src)
	if err != nil {
		return errors.Wrap(err, "uploading material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *materialApi) query(ctx echo.Context) error {
	subjectID, err := strconv.Atoi(ctx.QueryParam("subject"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "subject", Error: "must be an integer"})
	}
	classID, _ := strconv.Atoi(ctx.QueryParam("class"))

	materials, err := api.svc.QueryBySubject(ctx.Request().Context(), subjectID, classID)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if materials == nil {
		materials = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr.ID, id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
