package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds API requests when no timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

// APIPrefix is the base path of the quote API.
const APIPrefix = "/api/v1"

// RouterConfig contains what SetupRouter wires together.
type RouterConfig struct {
	Logger      *slog.Logger
	ServiceName string

	Health *handlers.HealthHandler
	Quotes *handlers.QuoteHandler

	// Timeout applies to /api/v1 only; probes are never cut short.
	Timeout time.Duration
}

// SetupRouter installs middleware and routes on engine. Order matters:
//  1. Recovery, so panics anywhere below are caught
//  2. ContextLogger, RequestID, CorrelationID to build the request logger
//  3. otelgin tracing and server metrics
//  4. Logging, which sees the IDs and the final status
//
// Probes live under /-/ and the quote API under /api/v1.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(),
		middleware.ContextLogger(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.ServiceName)...)
	engine.Use(middleware.Logging())

	if cfg.Health != nil {
		cfg.Health.RegisterHealthRoutes(engine)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	api := engine.Group(APIPrefix, middleware.Timeout(timeout))

	if cfg.Quotes != nil {
		cfg.Quotes.RegisterQuoteRoutes(api)
	}
}
