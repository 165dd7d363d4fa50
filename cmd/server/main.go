package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ride-marketplace/internal/config"
	"github.com/example/ride-marketplace/internal/dispatch"
	httpapi "github.com/example/ride-marketplace/internal/http"
	"github.com/example/ride-marketplace/internal/ingest"
	"github.com/example/ride-marketplace/internal/logging"
	"github.com/example/ride-marketplace/internal/payments"
	"github.com/example/ride-marketplace/internal/presence"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	reg := registry.New(cfg.CompanyName)
	reg.Logger = logger

	if err := reg.LoadAll(repo); err != nil {
		logger.Error("restore from storage failed", "error", err)
		os.Exit(1)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		reg.Events = producer
		logger.Info("kafka producer enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.RedisAddr != "" {
		reg.Presence = presence.NewStore(cfg.RedisAddr, cfg.RedisPassword)
		logger.Info("redis presence mirror enabled", "addr", cfg.RedisAddr)
	}

	wsreg := dispatch.NewWSRegistry(logger)
	if cfg.PushEndpoint != "" {
		reg.Notifier = dispatch.NewPushDispatcher(cfg.PushEndpoint, cfg.PushKey, wsreg)
	} else {
		reg.Notifier = wsreg
	}

	srv := httpapi.NewServer(reg, repo, wsreg, logger)
	if cfg.StripeAPIKey != "" {
		srv.Stripe = payments.NewStripeGateway(cfg.StripeAPIKey)
		srv.StripeCurrency = cfg.StripeCurrency
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "company", cfg.CompanyName)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := reg.SaveAll(repo); err != nil {
		logger.Error("final snapshot failed", "error", err)
		os.Exit(1)
	}
	logger.Info("state persisted, bye")
}

func openRepository(cfg config.ServerConfig) (storage.Repository, error) {
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			if err := runMigrations(cfg.PGDSN); err != nil {
				return nil, err
			}
		}
		return storage.NewPostgresRepository(cfg.PGDSN)
	}
	return storage.NewFileRepository(cfg.DataDir)
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_schema.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
