package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealhub/internal/app"
	"dealhub/internal/config"
	"dealhub/internal/db"
	"dealhub/internal/revocation"
	"dealhub/pkg/rabbitmq"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	setupLogging(cfg)

	// --- Database ---
	gdb, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}

	deps := app.Deps{DB: gdb}

	// --- Token revocation store ---
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
		deps.Revocations = revocation.NewRedisStore(rdb, cfg.TokenTTL)
		logrus.WithField("addr", cfg.RedisAddr).Info("Using Redis for token revocation")
	}

	// --- RabbitMQ ---
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize RabbitMQ client")
		}
		defer mqClient.Close()
		deps.Events = mqClient
	} else {
		logrus.Info("RABBITMQ_URL is not set, deal events are disabled")
	}

	server, err := app.New(cfg, deps)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build app")
	}

	// --- Image cleanup consumer ---
	if mqClient != nil {
		if err := mqClient.Consume(server.ImageCleanup.Handle); err != nil {
			logrus.WithError(err).Error("Failed to start image cleanup consumer")
		}
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":          cfg.AppPort,
			"database":      cfg.DatabaseDriver,
			"image_storage": cfg.ImageStorage,
		}).Info("Starting server")
		if err := server.Fiber.Listen(cfg.AppPort); err != nil {
			logrus.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-quit
	logrus.Info("Shutting down server...")
	if err := server.Shutdown(); err != nil {
		logrus.WithError(err).Error("Error during shutdown")
	}
	logrus.Info("Server gracefully stopped")
}

// setupLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
