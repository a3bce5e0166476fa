// Package server wires the configured storage backend, locks, token and
// payment services into the HTTP API and runs it until a termination
// signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/server/auth"
	"github.com/dmitrijs2005/trainingpay/internal/server/config"
	"github.com/dmitrijs2005/trainingpay/internal/server/httpapi"
	"github.com/dmitrijs2005/trainingpay/internal/server/locks"
	"github.com/dmitrijs2005/trainingpay/internal/server/metrics"
	"github.com/dmitrijs2005/trainingpay/internal/server/payments"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trainingpay/internal/server/services"
	"github.com/redis/go-redis/v9"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   repomanager.RepositoryManager
	redis   *redis.Client
	handler http.Handler
}

// openStore is a seam for tests.
var openStore = func(ctx context.Context, cfg *config.Config) (repomanager.RepositoryManager, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return repomanager.NewPostgresRepositoryManager(db), nil
	case config.StorageMongo:
		client, err := repomanager.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return repomanager.NewMongoRepositoryManager(client, cfg.MongoDatabase), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)
	return newApp(c, logger)
}

func newApp(c *config.Config, logger logging.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	tokens, err := auth.NewTokenService(c.SecretKey, c.TokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	store, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{config: c, logger: logger, store: store}

	var locker locks.Locker = locks.NewLocalLocker()
	if c.RedisURL != "" {
		rc, err := locks.OpenRedis(ctx, c.RedisURL)
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		app.redis = rc
		locker = locks.NewRedisLocker(rc, logger.With("module", "locks"))
	}

	mtr := metrics.New()
	us := services.NewUserService(store, tokens, locker, mtr, logger)

	gateway := payments.NewClient(&http.Client{}, c.GatewayURL, c.GatewayTimeout, mtr, logger.With("module", "gateway"))
	ps := payments.NewService(store.Users(), store.Transactions(),
		payments.Merchant{
			ID:               c.MerchantID,
			RedirectURL:      c.RedirectURL,
			CallbackURL:      c.CallbackURL,
			AmountMultiplier: c.AmountMultiplier,
		},
		payments.Signing{EndpointPath: c.GatewayEndpointPath, SaltKey: c.SaltKey, SaltIndex: c.SaltIndex},
		gateway, logger)

	app.handler = httpapi.NewRouter(httpapi.NewHandler(us, ps, logger), tokens, mtr.Handler())
	return app, nil
}

// initSignalHandler cancels on the first shutdown signal. The returned
// channel is closed once signal delivery has been stopped, which happens
// after a signal or when ctx ends.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// shuts the server down and closes the store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	sigDone := app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	cancelFunc()
	<-sigDone
	app.close()
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close", "error", err)
		}
	}
	if err := app.store.Close(ctx); err != nil {
		app.logger.Error(ctx, "store close", "error", err)
	}
	app.logger.Info(ctx, "app stopped")
}
