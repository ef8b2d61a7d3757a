package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"flowreplay/internal/api/handlers"
	"flowreplay/internal/api/routes"
	"flowreplay/internal/browser"
	"flowreplay/internal/config"
	"flowreplay/internal/events"
	"flowreplay/internal/executor"
	"flowreplay/internal/recorder"
	"flowreplay/internal/services"
	"flowreplay/internal/storage"
	"flowreplay/pkg/database"
	"flowreplay/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	if err := database.InitDatabase(cfg); err != nil {
		zlog.Fatal("database initialization failed", zap.Error(err))
	}

	store := storage.NewGormStore(database.DB, zlog)
	bus := events.NewBus()

	executor.InitExecutor(cfg, store, bus, zlog)

	recordingManager := recorder.NewManager(browser.Options{
		ChromePath: cfg.Chrome.ExecPath,
		Width:      cfg.Chrome.WindowWidth,
		Height:     cfg.Chrome.WindowHeight,
	}, zlog)

	handlers.Init(store, recordingManager, bus, zlog)

	if err := services.InitScheduler(store, zlog); err != nil {
		zlog.Fatal("scheduler initialization failed", zap.Error(err))
	}

	statusSync := services.NewStatusSyncService(store, zlog)
	statusSync.Start()

	router := routes.SetupRoutes(cfg)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		zlog.Info("shutting down")

		if services.GlobalScheduler != nil {
			services.GlobalScheduler.Stop()
		}
		statusSync.Stop()

		zlog.Info("shutdown complete")
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zlog.Info("server starting", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
