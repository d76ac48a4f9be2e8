package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/triage/internal/infrastructure/config"
	"github.com/orris-inc/triage/internal/interfaces/http/middleware"
	"github.com/orris-inc/triage/internal/interfaces/http/routes"
	"github.com/orris-inc/triage/internal/shared/logger"
)

// Router represents the HTTP router configuration
type Router struct {
	engine    *gin.Engine
	container *Container
	logger    logger.Interface
}

// NewRouter creates the container and the router on top of it.
func NewRouter(cfg *config.Config, log logger.Interface) (*Router, error) {
	c, err := NewContainer(cfg, log)
	if err != nil {
		return nil, err
	}

	return &Router{
		engine:    c.engine,
		container: c,
		logger:    log,
	}, nil
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes(cfg *config.Config) {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.engine.GET("/healthz", r.container.healthHandler.HealthCheck)

	routes.SetupTicketRoutes(r.engine, &routes.TicketRouteConfig{
		TicketHandler: r.container.ticketHandler,
		StreamHandler: r.container.streamHandler,
	})
}

// GetEngine returns the gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Shutdown gracefully shuts down the router
func (r *Router) Shutdown(ctx context.Context) error {
	return r.container.Shutdown(ctx)
}
