package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dcasim/config"
	"dcasim/internal/api"
	"dcasim/internal/events"
	"dcasim/internal/logging"
	"dcasim/internal/marketdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("structured logging initialized")

	eventBus := events.NewEventBus()
	eventBus.SubscribeAll(func(e events.Event) {
		logger.WithComponent("events").WithFields(e.Data).Info(string(e.Type))
	})

	store, err := marketdata.NewStore(marketdata.PostgresConfig{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal("failed to connect to market data store", "error", err.Error())
	}
	defer store.Close()

	migrationCtx, cancelMigration := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.RunMigrations(migrationCtx); err != nil {
		logger.Fatal("failed to run market data migrations", "error", err.Error())
	}
	cancelMigration()

	var cache *marketdata.Cache
	if cfg.RedisConfig.Enabled {
		cache, err = marketdata.NewCache(marketdata.RedisConfig{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
			Enabled:  cfg.RedisConfig.Enabled,
		})
		if err != nil {
			logger.Warn("market data cache disabled", "error", err.Error())
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	provider := marketdata.NewProvider(store, cache)

	server := api.NewServer(api.ServerConfig{
		Port:            cfg.ServerConfig.Port,
		Host:            cfg.ServerConfig.Host,
		AllowedOrigins:  cfg.ServerConfig.AllowedOrigins,
		ReadTimeout:     cfg.ServerConfig.ReadTimeout,
		WriteTimeout:    cfg.ServerConfig.WriteTimeout,
		ShutdownTimeout: cfg.ServerConfig.ShutdownTimeout,
		ProductionMode:  cfg.LoggingConfig.Level != "debug",
	}, provider, eventBus)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", "error", err.Error())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err.Error())
	}

	logger.Info("shutdown complete")
}
