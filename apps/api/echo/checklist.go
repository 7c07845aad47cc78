package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/checklist"
)

var nowFunc = time.Now // mockable

func registerPhaseAPI(g *echo.Group, conf *core.Config) {
	g.GET("/phase", func(ctx echo.Context) error {
		info, err := checklist.Classify(nowFunc(), conf.SchoolTimezone)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, info)
	})
}

type checklistApi struct {
	conf       *core.Config
	svc        checklist.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerChecklistAPI(
	g *echo.Group,
	conf *core.Config,
	svc checklist.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := checklistApi{
		conf:       conf,
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	cg := g.Group("/checklist")
	cg.POST("/ensure", api.ensure)
	cg.POST("/reselect", api.reselect)
	cg.GET("", api.retrieve)
	cg.GET("/summary", api.summary)
	cg.PATCH("/items/:id", api.toggleItem)
	cg.POST("/instances/:id/acknowledge", api.acknowledge)
}

// editablePhase classifies the current moment and rejects the call unless
// edits are open. All checklist writes pass through here; the core services
// stay clock-free.
func (api *checklistApi) editablePhase() (checklist.PhaseInfo, error) {
	info, err := checklist.Classify(nowFunc(), api.conf.SchoolTimezone)
	if err != nil {
		return info, err
	}
	if !info.Editable {
		return info, core.NewPhaseLockedError(string(info.Phase))
	}
	return info, nil
}

// bindSelection fills a Selection from the request body, defaulting the
// target date to the current phase's. A date outside the open window is
// rejected: the window only ever covers one date.
func (api *checklistApi) bindSelection(ctx echo.Context, info checklist.PhaseInfo) (checklist.Selection, error) {
	var data SelectionRequest
	if err := ctx.Bind(&data); err != nil {
		return checklist.Selection{}, errors.Wrap(err, "binding to SelectionRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return checklist.Selection{}, err
	}
	if data.TargetDate.IsZero() {
		data.TargetDate = info.TargetDate
	} else if !data.TargetDate.Equal(info.TargetDate) {
		return checklist.Selection{}, core.NewPhaseLockedError(string(info.Phase))
	}
	return checklist.Selection{
		ChildID:    data.ChildID,
		TemplateID: data.TemplateID,
		TargetDate: data.TargetDate,
	}, nil
}

// Handlers

func (api *checklistApi) ensure(ctx echo.Context) error {
	info, err := api.editablePhase()
	if err != nil {
		return err
	}
	sel, err := api.bindSelection(ctx, info)
	if err != nil {
		return err
	}

	view, err := api.svc.Ensure(ctx.Request().Context(), sel)
	if err != nil {
		return errors.Wrap(err, "ensuring checklist")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *checklistApi) reselect(ctx echo.Context) error {
	info, err := api.editablePhase()
	if err != nil {
		return err
	}
	sel, err := api.bindSelection(ctx, info)
	if err != nil {
		return err
	}

	view, err := api.svc.Reselect(ctx.Request().Context(), sel)
	if err != nil {
		return errors.Wrap(err, "reselecting template")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *checklistApi) retrieve(ctx echo.Context) error {
	childID, err := queryInt(ctx, "childId")
	if err != nil {
		return err
	}
	d, err := api.dateOrPhaseTarget(ctx)
	if err != nil {
		return err
	}

	view, err := api.svc.Load(ctx.Request().Context(), childID, d)
	if err != nil {
		return errors.Wrap(err, "loading checklist")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *checklistApi) summary(ctx echo.Context) error {
	childID, err := queryInt(ctx, "childId")
	if err != nil {
		return err
	}
	d, err := api.dateOrPhaseTarget(ctx)
	if err != nil {
		return err
	}

	sum, err := api.svc.Summarize(ctx.Request().Context(), childID, d)
	if err != nil {
		return errors.Wrap(err, "summarizing checklist")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *checklistApi) toggleItem(ctx echo.Context) error {
	if _, err := api.editablePhase(); err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data ToggleRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}

	st, err := api.svc.Toggle(ctx.Request().Context(), id, data.Checked)
	if err != nil {
		return errors.Wrap(err, "toggling item")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *checklistApi) acknowledge(ctx echo.Context) error {
	if _, err := api.editablePhase(); err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data AcknowledgeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcknowledgeRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	ack, err := api.svc.Acknowledge(ctx.Request().Context(), id, data.SubjectID, data.Acknowledged)
	if err != nil {
		return errors.Wrap(err, "acknowledging subject")
	}
	return ctx.JSON(http.StatusOK, ack)
}

func (api *checklistApi) dateOrPhaseTarget(ctx echo.Context) (core.Date, error) {
	d, err := queryDate(ctx, "date")
	if err != nil {
		return core.Date{}, err
	}
	if !d.IsZero() {
		return d, nil
	}
	info, err := checklist.Classify(nowFunc(), api.conf.SchoolTimezone)
	if err != nil {
		return core.Date{}, err
	}
	return info.TargetDate, nil
}
