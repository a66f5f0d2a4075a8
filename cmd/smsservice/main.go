package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robosms/twilio-sms-service/internal/cache"
	redisCache "github.com/robosms/twilio-sms-service/internal/cache/redis"
	"github.com/robosms/twilio-sms-service/internal/config"
	httpHandler "github.com/robosms/twilio-sms-service/internal/handler/http"
	"github.com/robosms/twilio-sms-service/internal/service"
	"github.com/robosms/twilio-sms-service/internal/telemetry"
	"gorm.io/gorm"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM)
	defer stop()

	// parse flags
	flag.Parse()

	// load optional .env overlay before the config file is read
	_ = godotenv.Load()

	// parse config
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// initialize external dependencies
	db, store, dedup, err := initExternalDependencies(notifyCtx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize external dependencies: %v", err)
	}

	// init command service with the initial configuration snapshot
	svc := service.NewService(store, dedup, logger.With(slog.String("component", "commandService")))
	if err := svc.Reconfigure(cfg); err != nil {
		log.Fatalf("failed to apply configuration: %v", err)
	}

	// init http handler
	handler := httpHandler.NewHttpHandler(
		fmt.Sprintf(":%d", cfg.HTTPPort),
		svc,
		&fileReconfigurer{path: *configFile, svc: svc},
	)

	wg := sync.WaitGroup{}
	// run http handler
	wg.Go(func() {
		if err := handler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	})

	// graceful shutdown
	wg.Go(func() {
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		svc.Close()
		handler.Shutdown(shutDownCtx)
		if db != nil {
			telemetry.ClosePostgres(db)
		}
	})

	wg.Wait()
	os.Exit(0)
}

func initExternalDependencies(ctx context.Context, cfg *config.Config) (db *gorm.DB, store telemetry.Store, dedup cache.Cache, err error) {
	// the telemetry store and the dedup cache are both optional; the
	// service runs vendor-direct without them
	if cfg.PostgresDSN != "" {
		db, err = telemetry.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return
		}
		store = telemetry.NewPostgresStore(db)
	}

	if cfg.RedisAddr != "" {
		dedup, err = redisCache.NewRedisCache(ctx, cfg.RedisAddr)
	}

	return
}

// fileReconfigurer reloads the config file on demand and swaps the
// service's active snapshot.
type fileReconfigurer struct {
	path string
	svc  *service.Service
}

func (r *fileReconfigurer) Reconfigure() error {
	cfg, err := config.Load(r.path)
	if err != nil {
		return err
	}
	return r.svc.Reconfigure(cfg)
}
