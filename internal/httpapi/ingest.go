package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ibusnowden/MLRun/internal/coordinator"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

type ingestHandlers struct {
	coordinator *coordinator.Coordinator
}

func (h *ingestHandlers) initRun(c echo.Context) error {
	req := &rpc.InitRunRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.coordinator.InitRun(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ingestHandlers) logMetrics(c echo.Context) error {
	req := &rpc.LogMetricsRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	req.RunId = c.Param("id")
	resp, err := h.coordinator.LogMetrics(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ingestHandlers) logParams(c echo.Context) error {
	req := &rpc.LogParamsRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	req.RunId = c.Param("id")
	resp, err := h.coordinator.LogParams(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ingestHandlers) logTags(c echo.Context) error {
	req := &rpc.LogTagsRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	req.RunId = c.Param("id")
	resp, err := h.coordinator.LogTags(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ingestHandlers) heartbeat(c echo.Context) error {
	req := &rpc.HeartbeatRequest{RunId: c.Param("id")}
	resp, err := h.coordinator.Heartbeat(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ingestHandlers) finishRun(c echo.Context) error {
	req := &rpc.FinishRunRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, err)
	}
	req.RunId = c.Param("id")
	resp, err := h.coordinator.FinishRun(reqCtx(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_argument", Message: err.Error()})
}
