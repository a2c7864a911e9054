package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/requestid"
	"github.com/ibusnowden/MLRun/internal/coordinator"
	"github.com/ibusnowden/MLRun/internal/query"
)

// NewServer builds the echo instance with the shared middleware stack:
// request ids, panic recovery, gzip on the wire when enabled, and access
// logging through logrus.
func NewServer(compress bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: requestid.New,
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(requestid.WithValue(c.Request().Context(), id)))
		},
	}))
	e.Use(middleware.Recover())
	if compress {
		e.Use(middleware.Gzip())
	}
	e.Use(accessLog)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		entry := logrus.WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"status": c.Response().Status,
		})
		if id, ok := requestid.FromContext(c.Request().Context()); ok {
			entry = entry.WithField("request_id", id)
		}
		if err != nil {
			entry.WithError(err).Warn("http request failed")
		} else {
			entry.Debug("http request completed")
		}
		return err
	}
}

// reqCtx derives the kctx for a handler call from the echo context.
func reqCtx(c echo.Context) *kctx.Context {
	ctx := c.Request().Context()
	entry := logrus.NewEntry(logrus.StandardLogger())
	if id, ok := requestid.FromContext(ctx); ok {
		entry = entry.WithField("request_id", id)
	}
	return kctx.New(ctx, entry)
}

// RegisterIngest mounts the ingest surface under /api/v1.
func RegisterIngest(e *echo.Echo, c *coordinator.Coordinator) {
	h := &ingestHandlers{coordinator: c}
	g := e.Group("/api/v1")
	g.POST("/runs", h.initRun)
	g.POST("/runs/:id/metrics", h.logMetrics)
	g.POST("/runs/:id/params", h.logParams)
	g.POST("/runs/:id/tags", h.logTags)
	g.POST("/runs/:id/heartbeat", h.heartbeat)
	g.POST("/runs/:id/finish", h.finishRun)
}

// RegisterQuery mounts the query surface under /api/v1. Run listing is a
// POST carrying the filter in the body, since the filter language does
// not flatten cleanly into query parameters.
func RegisterQuery(e *echo.Echo, engine *query.Engine) {
	h := &queryHandlers{engine: engine}
	g := e.Group("/api/v1")
	g.POST("/runs/list", h.listRuns)
	g.GET("/runs/:id", h.getRun)
	g.POST("/metrics/fetch", h.getMetrics)
	g.POST("/metrics/compare", h.compareRuns)
}

// Shutdown gracefully stops the server.
func Shutdown(ctx context.Context, e *echo.Echo) error {
	return e.Shutdown(ctx)
}
