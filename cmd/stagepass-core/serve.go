package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/admission"
	"github.com/stagepass/go-stagepass-core/audit"
	"github.com/stagepass/go-stagepass-core/config"
	"github.com/stagepass/go-stagepass-core/gateway"
	"github.com/stagepass/go-stagepass-core/health"
	"github.com/stagepass/go-stagepass-core/limiter"
	"github.com/stagepass/go-stagepass-core/logger"
	"github.com/stagepass/go-stagepass-core/middleware"
	"github.com/stagepass/go-stagepass-core/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.InitManager(cfg.Logger)
	log := logger.GetLogger("server")

	// limiter store, shared by admission and the gateway
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	limiterBus := limiter.NewEventBus(500)
	lim := limiter.New(store, limiter.WithEventBus(limiterBus))
	defer lim.Close()

	sink, err := buildAuditSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()
	limiterBus.Subscribe(audit.LimiterListener(sink))

	sampler := health.NewSampler(cfg.Health)
	sampler.Start(ctx)
	defer sampler.Stop()

	controller, err := admission.NewController(cfg.Admission, lim, sampler,
		admission.WithAuditSink(sink))
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg.Gateway, lim)
	if err != nil {
		return err
	}
	defer gw.Close()
	if bus := gw.Breakers().GetEventBus(); bus != nil {
		bus.Subscribe(audit.BreakerListener(sink))
	}

	router := buildRouter(cfg, controller, sampler, gw)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config) (limiter.Store, error) {
	if cfg.Limiter.Store != "redis" {
		return limiter.NewMemoryStore(), nil
	}
	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	return limiter.NewRedisStore(client, "stagepass:"), nil
}

func buildAuditSink(cfg config.Config) (audit.Sink, error) {
	logSink := audit.NewLogSink(logger.GetLogger("audit"))
	if !cfg.Audit.KafkaEnabled {
		return logSink, nil
	}
	kafkaSink, err := audit.NewKafkaSink(cfg.Audit.Kafka, logger.GetLogger("audit"))
	if err != nil {
		return nil, err
	}
	return audit.NewMultiSink(logSink, kafkaSink), nil
}

func buildRouter(cfg config.Config, controller *admission.Controller, sampler *health.Sampler, gw *gateway.Gateway) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.TraceID(),
		middleware.Throttle(controller),
	)

	router.GET("/health", func(c *gin.Context) {
		snap := sampler.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":         "up",
			"classification": snap.Classification,
			"cpuPercent":     snap.CPUPercent,
			"memoryPercent":  snap.MemoryPercent,
			"load":           snap.Load(),
			"sampledAt":      snap.LastUpdatedAt,
		})
	})

	registerAPIRoutes(router, cfg, gw)
	return router
}
