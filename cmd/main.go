package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telemetry_dashboard/internal/clock"
	"telemetry_dashboard/internal/config"
	"telemetry_dashboard/internal/handlers"
	"telemetry_dashboard/internal/live"
	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/metrics"
	"telemetry_dashboard/internal/repository"
	"telemetry_dashboard/internal/repository/rest"
	"telemetry_dashboard/internal/server"
	"telemetry_dashboard/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

const (
	issuedTokenTTL  = 24 * time.Hour
	initialFetchTTL = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// @title                       Telemetry Dashboard API
// @version                     1.0
// @description                 Reconciled machine telemetry timeline: snapshot pulls merged with live events.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		// logger level is part of the config, so fall back to the default here
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)
	clk := clock.Real()

	auth := service.NewAuthService(cfg.API.SigningKey, clk)
	if cfg.IssueToken != "" {
		issueToken(auth, cfg.IssueToken, log)
		return
	}
	checkCredential(cfg.Auth.Token, clk, log)

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// wire dependencies
	client, err := rest.NewClient(cfg.Collector.BaseURL, cfg.Collector.Timeout, rest.StaticCredential(cfg.Auth.Token))
	if err != nil {
		log.Fatalw("failed to init collector client", "err", err)
	}
	repos := repository.NewRepository(client, clk)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := service.NewEngine(repos.Snapshots, clk, log.With("component", "engine"), m, service.EngineConfig{
		DefaultDevice: cfg.Dashboard.DefaultDevice,
		Capacity:      cfg.Dashboard.Capacity,
	})
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx)
	}()

	initialFetch(ctx, engine, log)

	adapter := startLive(ctx, cfg, engine, m, log)

	scheduler := service.NewScheduler(func(ctx context.Context) {
		if _, err := engine.StartRefresh(ctx); err != nil && ctx.Err() == nil {
			log.Warnw("auto_refresh_trigger_failed", "err", err)
		}
	}, clk, log.With("component", "scheduler"), m)
	if err := scheduler.Configure(cfg.Refresh.Enabled, cfg.Refresh.Interval); err != nil {
		log.Fatalw("invalid refresh settings", "err", err)
	}

	services := service.NewService(repos, engine, scheduler, auth, service.Deps{Log: log, Metrics: m})
	apiHandler := handlers.NewHandler(services, log).
		WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("dashboard_started", "port", cfg.Port, "collector", cfg.Collector.BaseURL, "live", cfg.Live.Transport)

	// graceful shutdown
	waitForShutdown(log)

	if adapter != nil {
		if err := adapter.Stop(); err != nil {
			log.Warnw("live_stop_failed", "err", err)
		}
	}
	scheduler.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	cancel()
	<-engineDone
	log.Infow("dashboard_stopped")
}

func issueToken(auth *service.AuthService, subject string, log *logger.Logger) {
	token, err := auth.IssueToken(subject, issuedTokenTTL)
	if err != nil {
		log.Fatalw("failed to issue token", "subject", subject, "err", err)
	}
	fmt.Println(token)
}

// checkCredential warns about a collector credential that is already expired
// or close to it. The credential is never refreshed by this process.
func checkCredential(token string, clk clock.Clock, log *logger.Logger) {
	if token == "" {
		log.Warnw("collector_credential_missing")
		return
	}
	exp, ok := service.CredentialExpiry(token)
	if !ok {
		return
	}
	switch left := exp.Sub(clk.Now()); {
	case left <= 0:
		log.Warnw("collector_credential_expired", "expired_at", exp)
	case left < time.Hour:
		log.Warnw("collector_credential_expiring", "expires_at", exp, "left", left.String())
	}
}

// initialFetch loads the default device before the live channel opens.
// A failure only leaves a warning in the view.
func initialFetch(ctx context.Context, engine *service.Engine, log *logger.Logger) {
	fetchCtx, cancel := context.WithTimeout(ctx, initialFetchTTL)
	defer cancel()
	if err := engine.Refresh(fetchCtx); err != nil {
		log.Warnw("initial_fetch_failed", "err", err)
	}
}

// startLive opens the configured live transport. It returns nil when the
// live channel is disabled or could not be opened.
func startLive(ctx context.Context, cfg *config.Config, engine *service.Engine, m *metrics.Metrics, log *logger.Logger) *live.Adapter {
	credential := rest.StaticCredential(cfg.Auth.Token)
	liveLog := log.With("component", "live")

	var (
		transport live.Transport
		err       error
	)
	switch cfg.Live.Transport {
	case config.TransportWebSocket:
		transport, err = live.NewWebSocketTransport(live.WebSocketConfig{
			URL:          cfg.Live.URL,
			Credential:   credential,
			ReconnectMin: cfg.Live.ReconnectMin,
			ReconnectMax: cfg.Live.ReconnectMax,
		}, liveLog)
	case config.TransportMQTT:
		transport, err = live.NewMQTTTransport(live.MQTTConfig{
			Broker:       cfg.Live.MQTT.Broker,
			ClientID:     cfg.Live.MQTT.ClientID,
			TopicPrefix:  cfg.Live.MQTT.TopicPrefix,
			QoS:          byte(cfg.Live.MQTT.QoS),
			Credential:   credential,
			ReconnectMax: cfg.Live.ReconnectMax,
		}, liveLog)
	default:
		log.Infow("live_channel_disabled")
		return nil
	}
	if err != nil {
		log.Fatalw("failed to init live transport", "transport", cfg.Live.Transport, "err", err)
	}

	adapter := live.NewAdapter(transport, engine, cfg.Dashboard.Room, liveLog, m)
	if err := adapter.Start(ctx); err != nil {
		log.Errorw("live_start_failed", "err", err)
		return nil
	}
	return adapter
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
}
