package http

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/triage/internal/application/ticket/usecases"
	"github.com/orris-inc/triage/internal/infrastructure/config"
	"github.com/orris-inc/triage/internal/infrastructure/llm"
	"github.com/orris-inc/triage/internal/infrastructure/pubsub"
	"github.com/orris-inc/triage/internal/infrastructure/repository"
	"github.com/orris-inc/triage/internal/infrastructure/services"
	"github.com/orris-inc/triage/internal/interfaces/http/handlers"
	tickethandlers "github.com/orris-inc/triage/internal/interfaces/http/handlers/ticket"
	"github.com/orris-inc/triage/internal/interfaces/http/middleware"
	"github.com/orris-inc/triage/internal/shared/goroutine"
	"github.com/orris-inc/triage/internal/shared/logger"
)

// Container holds the ticket store, listener hub, generation workers and
// HTTP handlers. Shutdown waits for in-flight generations.
type Container struct {
	engine *gin.Engine
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	ticketRepo  *repository.TicketRepository
	hub         *services.ListenerHub
	broadcaster *pubsub.Broadcaster
	mirror      *pubsub.RedisEventMirror
	generator   *llm.OpenAIClient
	workers     *goroutine.Group

	ticketHandler *tickethandlers.TicketHandler
	streamHandler *tickethandlers.StreamHandler
	healthHandler *handlers.HealthHandler
}

// NewContainer wires all components from cfg. When Redis is enabled and
// unreachable an error is returned.
func NewContainer(cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		cfg:    cfg,
		log:    log,
	}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	c.initTicket()

	return c, nil
}

func (c *Container) initInfrastructure() error {
	cfg := c.cfg

	c.ticketRepo = repository.NewTicketRepository()
	c.hub = services.NewListenerHub(c.log.Named("listener-hub"))
	c.workers = goroutine.NewGroup(c.log)

	var opts []pubsub.BroadcasterOption
	if cfg.Redis.Enabled {
		client, err := initRedis(cfg, c.log)
		if err != nil {
			return err
		}
		c.redis = client
		c.mirror = pubsub.NewRedisEventMirror(client, cfg.Redis.Channel, c.log.Named("event-mirror"))
		opts = append(opts, pubsub.WithMirror(c.mirror))
		c.log.Infow("ticket event mirror enabled",
			"channel", cfg.Redis.Channel,
			"instance_id", c.mirror.InstanceID(),
		)
	}
	c.broadcaster = pubsub.NewBroadcaster(c.hub, c.log.Named("broadcaster"), opts...)

	c.generator = llm.NewOpenAIClient(cfg.LLM.APIKey,
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithLogger(c.log.Named("llm")),
	)
	if !c.generator.Configured() {
		c.log.Warnw("OPENAI_API_KEY is not set, ticket submission will be rejected")
	}

	return nil
}

// initRedis creates and tests the Redis client connection.
func initRedis(cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.GetAddr(), err)
	}
	log.Infow("Redis connection established successfully")

	return redisClient, nil
}

func (c *Container) initTicket() {
	cfg := c.cfg
	log := c.log

	worker := usecases.NewGenerationWorker(c.ticketRepo, c.generator, c.broadcaster, usecases.GenerationSettings{
		Model:       c.generator.Model(),
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.RequestTimeout,
	}, log.Named("generation-worker"))

	submitTicketUC := usecases.NewSubmitTicketUseCase(c.ticketRepo, c.generator, worker, c.workers, log)
	getTicketUC := usecases.NewGetTicketUseCase(c.ticketRepo, log)
	listTicketsUC := usecases.NewListTicketsUseCase(c.ticketRepo, log)
	watchTicketUC := usecases.NewWatchTicketUseCase(c.ticketRepo, c.hub, log)

	allowedOrigins := cfg.Server.AllowedOrigins
	c.ticketHandler = tickethandlers.NewTicketHandler(submitTicketUC, getTicketUC, listTicketsUC, log)
	c.streamHandler = tickethandlers.NewStreamHandler(watchTicketUC, cfg.Hub, func(origin string) bool {
		return middleware.OriginAllowed(origin, allowedOrigins)
	}, log.Named("ticket-stream"))
	c.healthHandler = handlers.NewHealthHandler(c.generator.Configured(), c.hub, c.ticketRepo)
}

// Shutdown waits for in-flight generation workers until ctx is done, flushes
// the event mirror, then releases the Redis connection.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.workers.Wait(ctx)
	if err != nil {
		c.log.Warnw("generation workers still running at shutdown", "error", err)
	}

	c.broadcaster.Close()

	if c.redis != nil {
		if cerr := c.redis.Close(); cerr != nil {
			c.log.Warnw("failed to close Redis client", "error", cerr)
		}
	}
	return err
}
