package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/schedule"
)

type catalogApi struct {
	svc        catalog.Service
	schedSvc   schedule.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerCatalogAPI(
	g *echo.Group,
	svc catalog.Service,
	schedSvc schedule.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := catalogApi{
		svc:        svc,
		schedSvc:   schedSvc,
		validate:   validate,
		translator: translator,
	}

	cg := g.Group("/children")
	cg.GET("", api.queryChildren)
	cg.POST("", api.createChild)
	cg.PUT("/:id", api.renameChild)
	cg.DELETE("/:id", api.destroyChild)
	cg.GET("/:id/templates", api.queryChildTemplates)

	sg := g.Group("/subjects")
	sg.GET("", api.querySubjects)
	sg.POST("", api.createSubject)
	sg.PUT("/:id", api.renameSubject)
	sg.DELETE("/:id", api.destroySubject)

	mg := g.Group("/materials")
	mg.GET("", api.queryMaterials)
	mg.POST("", api.createMaterial)
	mg.PUT("/:id", api.renameMaterial)
	mg.DELETE("/:id", api.destroyMaterial)

	rg := g.Group("/requirements")
	rg.GET("", api.queryOpenRequirements)
	rg.POST("", api.createRequirement)
	rg.POST("/:id/resolve", api.resolveRequirement)
}

// Handlers

func (api *catalogApi) queryChildren(ctx echo.Context) error {
	children, err := api.svc.Children(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *catalogApi) createChild(ctx echo.Context) error {
	var data NameRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	child, err := api.svc.CreateChild(ctx.Request().Context(), data.Name)
	if err != nil {
		return errors.Wrap(err, "creating child")
	}
	return ctx.JSON(http.StatusCreated, child)
}

func (api *catalogApi) renameChild(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data NameRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	child, err := api.svc.RenameChild(ctx.Request().Context(), id, data.Name)
	if err != nil {
		return errors.Wrap(err, "renaming child")
	}
	return ctx.JSON(http.StatusOK, child)
}

func (api *catalogApi) destroyChild(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteChild(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting child")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryChildTemplates(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.svc.GetChild(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting child")
	}
	tmpls, err := api.schedSvc.TemplatesByChild(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	return ctx.JSON(http.StatusOK, tmpls)
}

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.Subjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) createSubject(ctx echo.Context) error {
	var data NameRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data.Name)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subject)
}

func (api *catalogApi) renameSubject(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data NameRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	subject, err := api.svc.RenameSubject(ctx.Request().Context(), id, data.Name)
	if err != nil {
		return errors.Wrap(err, "renaming subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *catalogApi) destroySubject(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryMaterials(ctx echo.Context) error {
	materials, err := api.svc.Materials(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *catalogApi) createMaterial(ctx echo.Context) error {
	var data NameRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	material, err := api.svc.CreateMaterial(ctx.Request().Context(), data.Name)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, material)
}

func (api *catalogApi) renameMaterial(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data NameRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	material, err := api.svc.RenameMaterial(ctx.Request().Context(), id, data.Name)
	if err != nil {
		return errors.Wrap(err, "renaming material")
	}
	return ctx.JSON(http.StatusOK, material)
}

func (api *catalogApi) destroyMaterial(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteMaterial(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryOpenRequirements(ctx echo.Context) error {
	d, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	if d.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this parameter is required"})
	}
	reqs, err := api.svc.OpenRequirements(ctx.Request().Context(), d)
	if err != nil {
		return errors.Wrap(err, "querying open requirements")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *catalogApi) createRequirement(ctx echo.Context) error {
	var data NewRequirementRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequirementRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	req, err := api.svc.CreateRequirement(ctx.Request().Context(), catalog.NewRequirement{
		SubjectID:   data.SubjectID,
		Description: data.Description,
		TargetDate:  data.TargetDate,
		IsRecurring: data.IsRecurring,
	})
	if err != nil {
		return errors.Wrap(err, "creating requirement")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *catalogApi) resolveRequirement(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	req, err := api.svc.ResolveRequirement(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "resolving requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}
