package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/api"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/gateway"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/integration"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/live"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/monitor"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/dashboard-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// 选择历史存储: 配了 DSN 用 Postgres, 否则退回内存
	var store storage.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PostgresOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		store = pg
		log.Info().Msg("Connected to database")
	} else {
		store = storage.NewMemoryStore()
		log.Warn().Msg("No database configured, history will not survive restarts")
	}
	defer store.Close()

	// 把日志同时写进活动日志表, 网页端日志页从那里读
	mirrorLevel, err := zerolog.ParseLevel(cfg.Log.MirrorLevel)
	if err != nil {
		mirrorLevel = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Hook(storage.NewActivityHook(store, mirrorLevel))

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := config.NewManager(cfg)
	settings := manager.Settings()

	// Companion gateway transport
	gw := gateway.NewClient(settings.CompanionHost, settings.CompanionPort)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		gw.Run(ctx)
	}()

	// Live snapshot distribution
	hub := live.NewHub()
	defer hub.Close()

	// Optional NATS event publishing
	var events monitor.EventPublisher
	if cfg.NATS.URL != "" {
		publisher, err := integration.Connect(integration.ConnectOptions{
			URL:               cfg.NATS.URL,
			MaxReconnects:     cfg.NATS.MaxReconnects,
			ReconnectInterval: cfg.NATS.ReconnectInterval,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without event publishing")
		} else {
			defer publisher.Close()
			events = publisher
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	// Poll scheduler
	table := monitor.NewStateTable(settings.StaleThreshold())
	scheduler := monitor.NewScheduler(manager, gw, table, store, hub, events)

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// 历史数据按保留期整点清理
	reaper := monitor.NewReaper(manager, store)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	// On-demand pings
	pings := monitor.NewPingCoordinator(manager, gw, table, hub)

	// REST API server
	apiServer := api.NewRESTServer(cfg, manager, store, table, pings, hub)

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// 先停 API, 再取消后台任务; 进行中的轮询调用自然收尾
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	cancel()
	wg.Wait()

	log.Info().Msg("Dashboard server stopped")
}
