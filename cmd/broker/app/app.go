// Package app wires together the broker's components: the registry, the
// wire-protocol server, and the ambient admin HTTP server. It is the
// in-process equivalent of what main.go would otherwise do inline, kept
// separate so it can be constructed and shut down from a test.
package app

import (
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/a838242002/mini-kafka/internal/adminhttp"
	"github.com/a838242002/mini-kafka/internal/broker"
	"github.com/a838242002/mini-kafka/internal/config"
	applog "github.com/a838242002/mini-kafka/internal/log"
	"github.com/a838242002/mini-kafka/internal/server"
)

// App owns every long-lived component the broker process runs.
type App struct {
	cfg      config.Config
	registry *broker.Registry
	server   *server.Server
	admin    *adminhttp.Server

	shutdownRequested *atomic.Bool
}

// New builds an App from cfg. It binds both the wire-protocol listener and
// the admin HTTP listener before returning, so a bind failure on either one
// surfaces immediately rather than after Run has started.
func New(cfg config.Config) (*App, error) {
	applog.InitLogger(cfg.LogLevel)
	logger := applog.Logger

	registry := broker.NewRegistry(cfg.DataDir, cfg.ReadHandleCacheSize, cfg.LockShards, logger)

	srv, err := server.New(cfg.ListenAddr, registry, cfg.MaxFrameBytes, logger)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}

	admin, err := adminhttp.New(cfg.AdminAddr)
	if err != nil {
		_ = srv.Close()
		_ = registry.Close()
		return nil, err
	}

	return &App{
		cfg:               cfg,
		registry:          registry,
		server:            srv,
		admin:             admin,
		shutdownRequested: atomic.NewBool(false),
	}, nil
}

// ShuttingDown reports whether Shutdown has been called.
func (a *App) ShuttingDown() bool {
	return a.shutdownRequested.Load()
}

// Run blocks until either listener stops on its own (e.g. a non-Close
// accept error). A clean Close of both during Shutdown makes Run return
// nil for each.
func (a *App) Run() error {
	errCh := make(chan error, 2)
	go func() { errCh <- a.server.Serve() }()
	go func() { errCh <- a.admin.Serve() }()

	level.Info(applog.Logger).Log(
		"msg", "broker started",
		"listen_addr", a.server.Addr().String(),
		"admin_addr", a.admin.Addr().String(),
		"data_dir", a.cfg.DataDir,
	)

	return <-errCh
}

// Shutdown closes every component, aggregating whatever errors each Close
// call returns rather than stopping at the first one.
func (a *App) Shutdown() error {
	a.shutdownRequested.Store(true)

	var errs error
	errs = multierr.Append(errs, a.server.Close())
	errs = multierr.Append(errs, a.admin.Close())
	errs = multierr.Append(errs, a.registry.Close())
	return errs
}
