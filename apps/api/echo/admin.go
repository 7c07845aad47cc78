package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core/audit"
)

type adminApi struct {
	auditSvc audit.Service
}

func registerAdminAPI(g *echo.Group, auditSvc audit.Service) {
	api := adminApi{auditSvc: auditSvc}

	ag := g.Group("/admin")
	ag.GET("/instances/:id/events", api.queryInstanceEvents)
}

func (api *adminApi) queryInstanceEvents(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	events, err := api.auditSvc.ByInstance(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying audit events")
	}
	return ctx.JSON(http.StatusOK, events)
}
