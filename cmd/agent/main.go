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

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/gate-control/internal/agent"
	"github.com/CyberwizD/gate-control/internal/config"
	"github.com/CyberwizD/gate-control/internal/repository"
	"github.com/CyberwizD/gate-control/internal/routes"
	"github.com/CyberwizD/gate-control/pkg/logger"
	"github.com/CyberwizD/gate-control/pkg/metrics"
)

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel)
	logr.Info("starting gate agent", slog.String("app", cfg.AppName), slog.String("device_id", cfg.DeviceID))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commandStore := repository.NewCommandStore(db, cfg.CommandsTable)
	tokenStore := repository.NewTokenStore(db, cfg.TokensTable)

	if cfg.DeviceID != "" && cfg.DevicePushToken != "" {
		if err := tokenStore.Upsert(ctx, cfg.DeviceID, cfg.DevicePushToken); err != nil {
			logr.Error("failed to register device token", slog.Any("error", err))
			os.Exit(1)
		}
		logr.Info("device token registered")
	}

	pool, err := agent.OpenModemPool(ctx, cfg, logr)
	if err != nil {
		logr.Error("failed to open modems", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metricsCollector := metrics.New("gate_agent")
	results := agent.NewRegistry(logr)
	dispatcher := agent.NewDispatcher(pool, results, metricsCollector, logr)
	mailbox := agent.NewMailbox(dispatcher, cfg.MailboxSize, logr)
	if err := mailbox.Start(); err != nil {
		logr.Error("failed to start sms mailbox", slog.Any("error", err))
		os.Exit(1)
	}
	defer mailbox.Stop()

	receiver := agent.NewReceiver(commandStore, mailbox, agent.ReceiverConfig{
		GatePhoneNumber: cfg.GatePhoneNumber,
		GateOpenMessage: cfg.GateOpenMessage,
	}, logr)

	router := routes.NewAgentRouter(routes.AgentDeps{
		Push:       receiver,
		Dispatcher: dispatcher,
		Mailbox:    mailbox,
		Results:    results,
		Metrics:    metricsCollector,
		Started:    time.Now(),
	}, logr)
	httpSrv := startHTTPServer(cfg.HTTPPort, router, logr)

	<-ctx.Done()
	shutdownHTTP(httpSrv, logr)
	logr.Info("gate agent stopped")
}

func startHTTPServer(port string, handler http.Handler, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "8081"
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
