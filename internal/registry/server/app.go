// Package server initializes and runs the registry application: it opens
// the metadata database, runs migrations, wires the blob store and
// services together, and serves HTTP until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conanshim/registry/internal/logging"
	"github.com/conanshim/registry/internal/registry/audit"
	"github.com/conanshim/registry/internal/registry/auth"
	"github.com/conanshim/registry/internal/registry/blobstore"
	"github.com/conanshim/registry/internal/registry/broker"
	"github.com/conanshim/registry/internal/registry/config"
	"github.com/conanshim/registry/internal/registry/httpapi"
	"github.com/conanshim/registry/internal/registry/manifest"
	"github.com/conanshim/registry/internal/registry/repomanager"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	auditSink *audit.Sink
	handler   http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blobstore.NewS3Store(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	authSvc := auth.NewService(rm.Users(db), logger)
	auditSink := audit.NewSink(rm.Audit(db), logger)

	srv := httpapi.NewServer(
		logger,
		authSvc,
		rm.Recipes(db),
		broker.New(blobs),
		manifest.NewReader(blobs, logger),
		blobs,
		auditSink,
		cfg.MaxProxyBytes,
	)

	return &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		auditSink: auditSink,
		handler:   srv,
	}, nil
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains in-flight requests and the audit queue.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	httpServer := &http.Server{
		Addr:    app.config.ListenAddr,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting registry", "addr", app.config.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.shutdownResources(ctx)
			return err
		}
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "http shutdown error", "error", err)
	}

	app.shutdownResources(ctx)
	return nil
}

func (app *App) shutdownResources(ctx context.Context) {
	app.auditSink.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}
