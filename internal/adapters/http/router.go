package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lifeleveling/lifeleveling/config"
	v1 "github.com/lifeleveling/lifeleveling/internal/adapters/http/api/v1"
	internalhttp "github.com/lifeleveling/lifeleveling/internal/adapters/http/internal"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagHTTP = "HTTP"

type Router struct {
	cfg       *config.Config
	logger    pkglog.Logger
	apiRouter *v1.Router
}

func NewRouter(cfg *config.Config, logger pkglog.Logger, apiRouter *v1.Router) *Router {
	return &Router{cfg: cfg, logger: logger, apiRouter: apiRouter}
}

func (r *Router) Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := pkglog.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			}
			if v.Error != nil {
				r.logger.Warn(tagHTTP, "request failed", v.Error, fields)
				return nil
			}
			r.logger.Info(tagHTTP, "request", fields)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit("1M"))

	internalhttp.Register(e)
	apiGroup := e.Group(r.cfg.HTTPBasePath)
	r.apiRouter.Register(apiGroup)
}
