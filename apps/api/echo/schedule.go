package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/schedule"
)

type scheduleApi struct {
	svc        schedule.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerScheduleAPI(
	g *echo.Group,
	svc schedule.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := scheduleApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	tg := g.Group("/templates")
	tg.POST("", api.create)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.rename)
	tg.DELETE("/:id", api.destroy)
	tg.GET("/:id/blocks", api.queryBlocks)
	tg.PUT("/:id/blocks", api.replaceBlocks)
	tg.GET("/:id/materials", api.queryMaterialLinks)
	tg.POST("/:id/materials", api.attachMaterial)
	tg.DELETE("/:id/materials/:subjectId/:materialId", api.detachMaterial)
}

// Handlers

func (api *scheduleApi) create(ctx echo.Context) error {
	var data NewTemplateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplateRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data.ChildID, data.Name)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *scheduleApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	tmpl, err := api.svc.GetTemplate(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *scheduleApi) rename(ctx echo.Context) error {
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

	tmpl, err := api.svc.RenameTemplate(ctx.Request().Context(), id, data.Name)
	if err != nil {
		return errors.Wrap(err, "renaming template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type blocksResponse struct {
	VersionID int              `json:"versionId"`
	Blocks    []schedule.Block `json:"blocks"`
}

// queryBlocks returns the subject sequence effective on ?date= without
// creating anything; a template with no structure yet yields an empty list.
func (api *scheduleApi) queryBlocks(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	d, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	if d.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this parameter is required"})
	}
	if _, err = api.svc.GetTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting template")
	}

	blocks, versionID, err := api.svc.BlocksEffectiveOn(ctx.Request().Context(), id, d)
	if err != nil {
		return errors.Wrap(err, "querying blocks")
	}
	if blocks == nil {
		blocks = []schedule.Block{}
	}
	return ctx.JSON(http.StatusOK, blocksResponse{VersionID: versionID, Blocks: blocks})
}

func (api *scheduleApi) replaceBlocks(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data ReplaceBlocksRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReplaceBlocksRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}
	if data.TargetDate.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "targetDate", Error: "this field is required"})
	}
	if _, err = api.svc.GetTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting template")
	}

	specs := make([]schedule.BlockSpec, 0, len(data.Blocks))
	for _, b := range data.Blocks {
		specs = append(specs, schedule.BlockSpec{BlockOrder: b.BlockOrder, SubjectID: b.SubjectID})
	}
	ver, blocks, err := api.svc.ReplaceBlocks(ctx.Request().Context(), id, data.TargetDate, specs)
	if err != nil {
		return errors.Wrap(err, "replacing blocks")
	}
	return ctx.JSON(http.StatusOK, blocksResponse{VersionID: ver.ID, Blocks: blocks})
}

func (api *scheduleApi) queryMaterialLinks(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.svc.GetTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting template")
	}
	links, err := api.svc.MaterialLinks(ctx.Request().Context(), id, nil)
	if err != nil {
		return errors.Wrap(err, "querying material links")
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *scheduleApi) attachMaterial(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data AttachMaterialRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttachMaterialRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}
	if _, err = api.svc.GetTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting template")
	}

	link, err := api.svc.AttachMaterial(ctx.Request().Context(), id, data.SubjectID, data.MaterialID)
	if err != nil {
		return errors.Wrap(err, "attaching material")
	}
	return ctx.JSON(http.StatusCreated, link)
}

func (api *scheduleApi) detachMaterial(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	subjectID, err := pathID(ctx, "subjectId")
	if err != nil {
		return err
	}
	materialID, err := pathID(ctx, "materialId")
	if err != nil {
		return err
	}
	if err = api.svc.DetachMaterial(ctx.Request().Context(), id, subjectID, materialID); err != nil {
		return errors.Wrap(err, "detaching material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
