package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/gate-control/internal/config"
	"github.com/CyberwizD/gate-control/internal/consumer"
	"github.com/CyberwizD/gate-control/internal/repository"
	"github.com/CyberwizD/gate-control/internal/routes"
	"github.com/CyberwizD/gate-control/internal/services"
	"github.com/CyberwizD/gate-control/pkg/logger"
	"github.com/CyberwizD/gate-control/pkg/metrics"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel)
	logr.Info("starting gate relay", slog.String("app", cfg.AppName))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	account, err := services.LoadServiceAccount(cfg.ServiceAccountFile, cfg.ServiceAccountJSON)
	if err != nil {
		logr.Error("failed to load service account", slog.Any("error", err))
		os.Exit(1)
	}
	projectID := cfg.FCMProjectID
	if projectID == "" {
		projectID = account.ProjectID
	}

	var tokenCache *cache.Cache
	if cfg.FCMTokenCache {
		tokenCache = cache.New(time.Hour, 10*time.Minute)
	}

	commandStore := repository.NewCommandStore(db, cfg.CommandsTable)
	tokenStore := repository.NewTokenStore(db, cfg.TokensTable)
	if err := commandStore.AutoMigrate(); err != nil {
		logr.Error("failed to migrate commands table", slog.Any("error", err))
		os.Exit(1)
	}
	if err := tokenStore.AutoMigrate(); err != nil {
		logr.Error("failed to migrate tokens table", slog.Any("error", err))
		os.Exit(1)
	}
	metricsCollector := metrics.New("gate_relay")

	opts := []services.RelayOption{services.WithMetrics(metricsCollector)}
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		redisRepo := repository.NewRedisRepository(rdb, cfg.SuppressTokenTTL)
		defer redisRepo.Close()
		if err := redisRepo.Ping(context.Background()); err != nil {
			logr.Warn("redis unreachable, token suppression degraded", slog.Any("error", err))
		}
		opts = append(opts, services.WithSuppressor(redisRepo, cfg.SuppressTokenTTL))
	}
	if cfg.TrackCommandStatus {
		opts = append(opts, services.WithStatusUpdater(services.NewStatusUpdater(commandStore, logr)))
	}

	relay := services.NewRelay(
		commandStore,
		tokenStore,
		services.NewTokenSource(account, cfg.FCMTokenEndpoint, cfg.ProviderTimeout, tokenCache),
		services.NewFCMProvider(services.SendEndpoint(cfg.FCMEndpoint, projectID), cfg.ProviderTimeout, logr),
		logr,
		opts...,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := routes.NewRelayRouter(relay, metricsCollector, routes.RelayOptions{
		APIKey:          cfg.APIKey,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
		Started:         time.Now(),
	}, logr)
	httpSrv := startHTTPServer(cfg.HTTPPort, router, logr)

	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			logr.Error("failed to connect rabbitmq", slog.Any("error", err))
			os.Exit(1)
		}
		defer conn.Close()

		base := consumer.NewBaseConsumer(conn, cfg.CommandQueue, cfg.DeadLetterQueue, cfg.PrefetchCount, cfg.WorkerCount, logr)
		go func() {
			if err := consumer.NewCommandConsumer(base, relay, logr).Start(ctx); err != nil {
				logr.Error("command consumer exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	shutdownHTTP(httpSrv, logr)
	logr.Info("gate relay stopped")
}

func startHTTPServer(port string, handler http.Handler, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
