// Command broker runs the mini-kafka message broker: the wire-protocol
// listener and the ambient admin HTTP server, using the fixed defaults in
// internal/config — no flags, no environment variables.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"

	"github.com/a838242002/mini-kafka/cmd/broker/app"
	"github.com/a838242002/mini-kafka/internal/config"
	"github.com/a838242002/mini-kafka/internal/log"
)

func main() {
	cfg := config.Default()

	a, err := app.New(cfg)
	if err != nil {
		level.Error(log.Logger).Log("msg", "failed to start broker", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- a.Run() }()

	select {
	case sig := <-sigCh:
		level.Info(log.Logger).Log("msg", "received signal, shutting down", "signal", sig.String())
	case err := <-runErrCh:
		if err != nil {
			level.Error(log.Logger).Log("msg", "broker stopped unexpectedly", "err", err)
		}
	}

	if err := a.Shutdown(); err != nil {
		level.Error(log.Logger).Log("msg", "error during shutdown", "err", err)
		os.Exit(1)
	}
}
