// adforged is the pipeline daemon: it owns the project store, runs the
// transition engine behind an HTTP API, and dispatches generation work onto
// the task queue when enabled.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"adforge/internal/api"
	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/engine"
	"adforge/internal/logging"
	"adforge/internal/progress"
	"adforge/internal/project"
)

func main() {
	// Optional; operators may keep redis credentials in a local .env.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, cfgPath, found, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if found {
		logger.Info("configuration loaded", logging.String("path", cfgPath))
	} else {
		logger.Info("using default configuration", logging.String("path", cfgPath))
	}

	lock := flock.New(cfg.Paths.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("acquire daemon lock", logging.Error(err))
		return
	}
	if !locked {
		logger.Error("another adforged instance holds the lock",
			logging.String("lock_file", cfg.Paths.LockFile))
		return
	}
	defer lock.Unlock() //nolint:errcheck

	store, err := project.Open(cfg)
	if err != nil {
		logger.Error("open project store", logging.Error(err))
		return
	}
	defer store.Close()

	var dispatcher engine.Dispatcher = engine.NoopDispatcher{}
	if cfg.Dispatch.Enabled {
		asynqDispatcher := dispatch.NewAsynq(cfg, logger)
		defer asynqDispatcher.Close()
		dispatcher = asynqDispatcher
	}

	eng := engine.New(cfg, store, dispatcher, logger)
	reporter := progress.NewReporter(store, logger)
	server := api.NewServer(cfg, eng, store, reporter, logger)

	httpServer := &http.Server{
		Addr:              cfg.Paths.APIBind,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", logging.String("bind", cfg.Paths.APIBind))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", logging.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdown(logger, httpServer)
}

func shutdown(logger *slog.Logger, httpServer *http.Server) {
	logger.Info("adforged shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", logging.Error(err))
	}
}
