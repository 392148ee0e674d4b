package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/systemstart/secrets-bootstrap/pkg/demoapp"
	"github.com/systemstart/secrets-bootstrap/pkg/logging"
)

var version = "dev"

const (
	_ = iota
	exitLoggingSetupFailed
	exitServeFailed
)

const shutdownTimeout = 10 * time.Second

var cli struct {
	Port     string           `help:"Listen port." default:"3000" env:"PORT"`
	LogType  string           `help:"Logging type: json, text or tint." default:"json" enum:"json,text,tint"`
	LogLevel string           `help:"Logging level: debug, info, warn, error." default:"info" enum:"debug,info,warn,error"`
	Version  kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("example-app"),
		kong.Description("Serve a report of the secret-derived environment without exposing its values."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := logging.Initialize(cli.LogType, cli.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(exitLoggingSetupFailed)
	}

	app := demoapp.NewServer(os.LookupEnv, os.Environ)
	if missing := app.Startup(); len(missing) > 0 {
		slog.Warn("starting without required variables", "missing", missing)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, app); err != nil {
		slog.Error("server failed", "error", err)
		stop()
		os.Exit(exitServeFailed)
	}
	slog.Info("server stopped")
}

func serve(ctx context.Context, app *demoapp.Server) error {
	addr := net.JoinHostPort("", cli.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log("INFO", "Web server starting on port "+cli.Port)
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
