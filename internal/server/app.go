// Package server initializes and runs the main application server. It
// opens the store, runs migrations, starts the event bus subscription and
// the subscription hub, and serves SSH until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/config"
	"github.com/itter-sh/itter/internal/server/event"
	"github.com/itter-sh/itter/internal/server/feed"
	"github.com/itter-sh/itter/internal/server/hub"
	"github.com/itter-sh/itter/internal/server/render"
	"github.com/itter-sh/itter/internal/server/repositories/repomanager"
	"github.com/itter-sh/itter/internal/server/session"
	"github.com/itter-sh/itter/internal/server/social"
	"github.com/itter-sh/itter/internal/server/sshd"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	bus    event.Bus
	hub    *hub.Hub
	sshd   *sshd.Server
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
		return nil, fmt.Errorf("migration error: %w", err)
	}

	userRepo := rm.Users(db)
	eetRepo := rm.Eets(db)
	followRepo := rm.Follows(db)

	var bus event.Bus
	switch cfg.EventSourceDriver {
	case "memory":
		bus = event.NewMemoryBus()
	case "postgres":
		bus = event.NewPostgresBus(cfg.DatabaseDSN, cfg.EventReconnectDelay, logger)
	default:
		return nil, fmt.Errorf("unknown event source driver %q", cfg.EventSourceDriver)
	}

	// One upstream subscription per process; the hub re-fans-out.
	events, err := bus.Subscribe(ctx, event.TopicEets)
	if err != nil {
		return nil, fmt.Errorf("event source error: %w", err)
	}
	h := hub.New(events, cfg.SubscriptionQueueSize, logger)

	renderer := render.New()
	feedSvc := feed.NewService(eetRepo, userRepo, bus, cfg.IPHashSalt, logger)
	socialSvc := social.NewService(userRepo, followRepo, logger)
	sessions := session.NewManager(feedSvc, socialSvc, h, renderer, logger)

	signer, err := sshd.LoadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("host key error: %w", err)
	}
	srv := sshd.NewServer(cfg.EndpointAddrSSH, signer, userRepo, socialSvc, sessions, renderer, logger)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		bus:    bus,
		hub:    h,
		sshd:   srv,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.sshd.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "stopped")
}
