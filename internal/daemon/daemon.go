package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chr1syy/maestro/internal/api"
	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/tracing"
)

// LockFileName is the lock file held in the data dir while maestrod runs.
const LockFileName = "maestrod.lock"

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// ErrAlreadyRunning is returned when another maestrod holds the data dir lock.
var ErrAlreadyRunning = errors.New("maestrod already running (lock held by another process)")

// AcquireLock takes the exclusive data dir lock without blocking.
func AcquireLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fileLock := flock.New(filepath.Join(dataDir, LockFileName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return fileLock, nil
}

// Run serves the HTTP API until ctx is cancelled, then shuts down: the
// listener stops, every managed process is killed and the stores close.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	fileLock, err := AcquireLock(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = fileLock.Unlock() }()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	svc, err := NewServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	provided, bridge, err := svc.ProvideBus()
	if err != nil {
		_ = svc.Close(context.Background())
		return err
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Manager:       svc.Manager,
		Bus:           provided.Bus,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		Settings:      svc.Settings,
		TabNamer:      svc.TabNamer,
		Detector:      svc.Detector,
		Logger:        log,
	})
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// The bridge outlives ctx so exit events from the final KillAll still
	// reach the bus; it returns once the manager closes its subscriptions.
	var g errgroup.Group
	sub := svc.Manager.Subscribe()
	g.Go(func() error {
		bridge.Run(context.Background(), sub)
		return nil
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info("maestrod listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down maestrod...")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := svc.Manager.KillAll(sctx); err != nil {
		log.Warn("Failed to kill all processes", zap.Error(err))
	}
	svc.Manager.Close()
	_ = g.Wait()

	if err := svc.Close(sctx); err != nil {
		log.Warn("Failed to close services", zap.Error(err))
	}
	log.Info("maestrod stopped")
	return runErr
}
