package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chatconnect.app/assistant/common/id"
	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/common/otel"
	"chatconnect.app/assistant/core/config"
	"chatconnect.app/assistant/core/db"
	"chatconnect.app/assistant/internal/assistant"
	"chatconnect.app/assistant/internal/http/handler"
	"chatconnect.app/assistant/internal/http/middleware"
	httprouter "chatconnect.app/assistant/internal/http/router"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/provider"
	"chatconnect.app/assistant/internal/queue"
	"chatconnect.app/assistant/internal/session"
	"chatconnect.app/assistant/internal/store"
	"chatconnect.app/assistant/internal/store/memory"
	"chatconnect.app/assistant/internal/store/pebble"
	"chatconnect.app/assistant/internal/store/postgres"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "assistant starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.Assistant.SnowflakeNode); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open store", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer closeStore()
	slog.InfoContext(ctx, "store opened", "driver", cfg.Store.Driver)

	var agent llm.AgentClient
	if cfg.LLM.Enabled() {
		agent, err = llm.NewAgentClient(llm.Config{
			Provider:        cfg.LLM.Provider,
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			MaxTokens:       cfg.LLM.MaxTokens,
			ReasoningEffort: llm.ReasoningEffort(cfg.LLM.ReasoningEffort),
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create llm client", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "llm client ready", "provider", agent.Provider(), "model", agent.Model())
	} else {
		slog.WarnContext(ctx, "llm not configured, messages will be rejected")
	}

	var (
		redisClient *redis.Client
		producer    queue.Producer
		relay       handler.PageRelay
	)
	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.InfoContext(ctx, "redis connected", "stream_prefix", cfg.Redis.CommandStreamPrefix)

		producer = queue.NewRedisProducer(redisClient, cfg.Redis.CommandStreamPrefix, slog.Default())
		defer producer.Close()
		relay = page.NewRelay(redisClient, page.RelayConfig{
			StreamPrefix:    cfg.Redis.CommandStreamPrefix,
			ResultKeyPrefix: cfg.Redis.ResultKeyPrefix,
		})
	} else {
		slog.WarnContext(ctx, "redis not configured, page tools disabled")
	}

	sessions := session.NewManager(func(ctx context.Context, sessionID string) (*assistant.Orchestrator, error) {
		deps := assistant.Deps{Store: st}
		if agent != nil {
			deps.Provider = provider.NewLLMAdapter(agent)
		}
		if redisClient != nil {
			deps.Page = page.NewBridge(redisClient, producer, sessionID, page.BridgeConfig{
				ResultKeyPrefix: cfg.Redis.ResultKeyPrefix,
				Timeout:         cfg.Redis.CommandTimeout,
				ContextTimeout:  cfg.Redis.ContextTimeout,
			})
		}
		return assistant.New(assistant.Config{
			SessionID:        sessionID,
			Model:            cfg.LLM.Model,
			TitleMaxLength:   cfg.Assistant.TitleMaxLength,
			AutoExecuteTools: cfg.Assistant.AutoExecuteTools,
		}, deps), nil
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, sessions, relay)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: state streams stay open
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	sessions.Close()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	var st store.Store
	switch cfg.Store.Driver {
	case config.StoreDriverPebble:
		ps, err := pebble.Open(cfg.Store.PebblePath)
		if err != nil {
			return nil, nil, err
		}
		st = ps
	case config.StoreDriverPostgres:
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		st = postgres.New(database)
	default:
		st = memory.New()
	}

	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("initializing store: %w", err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			slog.Error("closing store failed", "error", err)
		}
	}, nil
}

func setupRouter(cfg config.Config, sessions *session.Manager, relay handler.PageRelay) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, httprouter.RouterConfig{
		Sessions: sessions,
		Relay:    relay,
	})

	return router
}

const banner = `
 chatconnect assistant
 ---------------------
`
