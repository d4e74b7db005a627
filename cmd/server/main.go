package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/config"
	"github.com/agentterm/termd/internal/jsonrpc"
	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/monitoring"
	"github.com/agentterm/termd/internal/server"
	"github.com/agentterm/termd/internal/session"
	"github.com/agentterm/termd/internal/tools"
)

const shutdownGrace = 10 * time.Second

func main() {
	stdio := flag.Bool("stdio", false, "serve JSON-RPC over stdin/stdout instead of HTTP")
	port := flag.String("port", "", "override listen port")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log = logging.NewDefault()
		log.Warn("invalid log config, using defaults", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	metrics := monitoring.NewMetrics()
	manager := session.NewManager(cfg.Session, log, metrics)

	registry := tools.NewRegistry()
	provider := tools.NewTerminalProvider(manager, metrics)
	if err := provider.Register(registry); err != nil {
		log.Fatal("failed to register tools", zap.Error(err))
	}
	dispatcher := tools.NewDispatcher(registry, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *stdio {
		runStdio(ctx, dispatcher, manager, log)
		return
	}
	runHTTP(ctx, cfg, log, metrics, manager, dispatcher)
}

// runStdio drives the dispatcher over stdin/stdout. A signal closes the
// transport, which unblocks the pending Receive and ends the loop.
func runStdio(ctx context.Context, dispatcher *tools.Dispatcher, manager *session.Manager, log *logging.Logger) {
	transport := jsonrpc.NewStdio(os.Stdin, os.Stdout)
	defer transport.Close()

	go func() {
		<-ctx.Done()
		_ = transport.Close()
	}()

	log.Info("serving JSON-RPC on stdio")
	if err := dispatcher.Serve(ctx, transport); err != nil {
		log.Error("stdio serve ended with error", zap.Error(err))
	}
	manager.StopAll()
}

func runHTTP(ctx context.Context, cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics, manager *session.Manager, dispatcher *tools.Dispatcher) {
	srv := server.New(cfg, log, metrics, manager, dispatcher)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	manager.StopAll()
}
