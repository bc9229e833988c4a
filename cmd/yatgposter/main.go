// Command yatgposter serves the channel poster HTTP API and sends scheduled
// posts in the background.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YaCodeDev/YaTgPoster/config"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/YaCodeDev/YaTgPoster/yaposthttp"
	"github.com/YaCodeDev/YaTgPoster/yapoststore"
	"github.com/YaCodeDev/YaTgPoster/yapublisher"
	"github.com/YaCodeDev/YaTgPoster/yascheduler"
	"github.com/gin-gonic/gin"
)

// RedisConfig is read from REDIS_*. An empty address keeps post claims in memory.
type RedisConfig struct {
	Addr     string `default:""`
	Password string `default:""`
	DB       int    `default:"0"`
}

// Config is read from the environment and an optional .env file.
type Config struct {
	HTTPAddr            string `default:":8080"`
	DatabasePath        string `default:"yatgposter.db"`
	TokenSecret         string
	Redis               RedisConfig
	Schedule            string         `default:"@every 1m"`
	DispatchLimit       int            `default:"50"`
	LockTTL             time.Duration  `default:"5m"`
	TelegramAPIEndpoint string         `default:""`
	TelegramTimeout     time.Duration  `default:"30s"`
	ButtonsFollowUpText string         `default:""`
	LogLevel            yalogger.Level `default:"info"`
	LogJSON             bool           `default:"false"`
	ShutdownTimeout     time.Duration  `default:"15s"`
}

func main() {
	var cfg Config

	config.LoadConfigStructFromEnv(&cfg, yalogger.Default())

	log := yalogger.NewBaseLogger(&yalogger.Config{
		BaseLoggerType: yalogger.Logrus,
		Level:          cfg.LogLevel,
		JSON:           cfg.LogJSON,
		FullTimestamp:  true,
	}).NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolDB, err := yapoststore.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	repo, err := yapoststore.NewGormRepo(poolDB, cfg.TokenSecret)
	if err != nil {
		log.Fatalf("Failed to prepare database: %v", err)
	}

	var locker yascheduler.Locker = yascheduler.NewMemoryLocker()

	if cfg.Redis.Addr != "" {
		client, err := yascheduler.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}

		defer func() { _ = client.Close() }()

		locker = yascheduler.NewRedisLocker(client)
	}

	publisher := yapublisher.New(yapublisher.Config{
		Endpoint:            cfg.TelegramAPIEndpoint,
		Timeout:             cfg.TelegramTimeout,
		ButtonsFollowUpText: cfg.ButtonsFollowUpText,
	}, log)

	dispatcher := yascheduler.NewDispatcher(repo, publisher, locker, yascheduler.DispatcherConfig{
		Limit:   cfg.DispatchLimit,
		LockTTL: cfg.LockTTL,
	}, log)

	scheduler := yascheduler.NewScheduler(dispatcher, cfg.Schedule, log)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.LogLevel < yalogger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           yaposthttp.New(repo, publisher, dispatcher, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Errorf("Scheduler shutdown failed: %v", err)
	}
}
