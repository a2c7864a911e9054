package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ibusnowden/MLRun/internal/query"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

type queryHandlers struct {
	engine *query.Engine
}

func (h *queryHandlers) listRuns(c echo.Context) error {
	req := &rpc.ListRunsRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.engine.ListRuns(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *queryHandlers) getRun(c echo.Context) error {
	req := &rpc.GetRunRequest{RunId: c.Param("id")}
	resp, err := h.engine.GetRun(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *queryHandlers) getMetrics(c echo.Context) error {
	req := &rpc.GetMetricsRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.engine.GetMetrics(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *queryHandlers) compareRuns(c echo.Context) error {
	req := &rpc.CompareRunsRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.engine.CompareRuns(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
