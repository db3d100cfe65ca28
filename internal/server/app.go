// Package server wires the coderoom server together: storage, sessions,
// the REST API, the realtime rooms, metrics and the gRPC health endpoint.
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

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/coderoom/internal/logging"
	"github.com/dmitrijs2005/coderoom/internal/server/aimention"
	"github.com/dmitrijs2005/coderoom/internal/server/config"
	"github.com/dmitrijs2005/coderoom/internal/server/gate"
	"github.com/dmitrijs2005/coderoom/internal/server/genai"
	"github.com/dmitrijs2005/coderoom/internal/server/httpapi"
	"github.com/dmitrijs2005/coderoom/internal/server/metrics"
	"github.com/dmitrijs2005/coderoom/internal/server/realtime"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/coderoom/internal/server/revocation"
	"github.com/dmitrijs2005/coderoom/internal/server/room"
	"github.com/dmitrijs2005/coderoom/internal/server/services"
	"github.com/dmitrijs2005/coderoom/internal/server/snapshots"

	gs "github.com/dmitrijs2005/coderoom/internal/server/grpc"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 10 * time.Minute
)

var sqlOpen = sql.Open

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	repos   repomanager.RepositoryManager
	sweeper *revocation.RepositoryCache
	health  *gs.HealthServer
	socket  *realtime.Handler
	http    *http.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)
	return newApp(c, logger)
}

func newApp(c *config.Config, logger logging.Logger) (*App, error) {
	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	m := metrics.New()

	var (
		cache   revocation.Cache
		sweeper *revocation.RepositoryCache
	)
	switch c.RevocationBackend {
	case config.RevocationPostgres:
		sweeper = revocation.NewRepositoryCache(repos.Revocations(db))
		cache = sweeper
	case config.RevocationMemory, "":
		cache = revocation.NewMemoryCache()
	default:
		_ = db.Close()
		return nil, fmt.Errorf("unknown revocation backend %q", c.RevocationBackend)
	}

	var store services.SnapshotStore = snapshots.Nop{}
	if c.S3Enabled {
		s3store, err := snapshots.NewS3Store(context.Background(), c)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("snapshot store init error: %w", err)
		}
		store = s3store
	}

	g := gate.New([]byte(c.SecretKey), cache)
	users := services.NewUserService(db, repos, g, c)
	projects := services.NewProjectService(db, repos, store, logger)

	if c.AIAPIKey == "" {
		logger.Warn(context.Background(), "AI API key is not set, @ai requests will fail")
	}
	gen := genai.NewGeminiClient(c.AIAPIKey, c.AIModel, c.AIBaseURL,
		genai.WithRequestsPerMinute(c.AIRequestsPerMinute),
		genai.WithTimeout(c.AITimeout),
	)
	interceptor := aimention.New(gen, logger,
		aimention.WithFailureNotice(c.AIErrorBroadcast),
		aimention.WithObserver(func(o aimention.Outcome) { m.ObserveAI(string(o)) }),
	)

	router := room.NewRouter(m, room.DefaultQueueSize)
	socket := realtime.NewHandler(g, projects, router, interceptor, m, logger,
		realtime.WithAllowedOrigin(c.CORSOrigin))

	handler := httpapi.NewRouter(httpapi.Deps{
		Users:        users,
		Projects:     projects,
		AI:           gen,
		Gate:         g,
		Logger:       logger,
		Socket:       socket,
		Metrics:      m.Handler(),
		CORSOrigin:   c.CORSOrigin,
		StaticDir:    c.StaticDir,
		CookieMaxAge: int(c.TokenValidityDuration / time.Second),
	})

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		repos:   repos,
		sweeper: sweeper,
		health:  gs.NewHealthServer(c.EndpointAddrGRPC, logger),
		socket:  socket,
		http: &http.Server{
			Addr:              c.EndpointAddrHTTP,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// waitForDB pings with exponential backoff; the database container often
// comes up after the server.
func waitForDB(ctx context.Context, db *sql.DB, logger logging.Logger, b retry.Backoff) error {
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(8, retry.NewExponential(250*time.Millisecond))
}

func (app *App) sweepRevocations(ctx context.Context) error {
	if app.sweeper == nil {
		return nil
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := app.sweeper.Sweep(ctx)
			if err != nil {
				app.logger.Warn(ctx, "revocation sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired revocations removed", "count", n)
			}
		}
	}
}

func (app *App) serveHTTP(ctx context.Context) error {
	app.logger.Info(ctx, "Starting HTTP server", "address", app.http.Addr)
	if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) shutdown(ctx context.Context) {
	app.logger.Info(ctx, "Stopping app...")
	app.health.SetServing(false)

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.http.Shutdown(sctx); err != nil {
		app.logger.Warn(sctx, "http shutdown", "error", err)
	}
	if err := app.socket.Shutdown(sctx); err != nil {
		app.logger.Warn(sctx, "realtime shutdown", "error", err)
	}
}

// Run blocks until a signal arrives or a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := waitForDB(ctx, app.db, app.logger, defaultBackoff()); err != nil {
		return fmt.Errorf("db connect error: %w", err)
	}
	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	app.health.SetServing(true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.serveHTTP(ctx) })
	g.Go(func() error { return app.health.Run(ctx) })
	g.Go(func() error { return app.sweepRevocations(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		app.shutdown(ctx)
		return nil
	})

	return g.Wait()
}
