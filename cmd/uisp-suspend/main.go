package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afrietaadmin/uisp-service-suspension/internal/buildinfo"
	"github.com/afrietaadmin/uisp-service-suspension/internal/config"
	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load dotenv (optional) and validate environment config
	envFile, err := config.LoadEnvFile(os.Getenv("UISP_ENV_FILE"), config.DefaultEnvFile, config.LegacyEnvFile)
	if err != nil {
		return err
	}
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}

	// 2. Logger
	out, closeOut, err := logOutput(envCfg.LogFile)
	if err != nil {
		return err
	}
	defer closeOut()
	log, err := logging.New(logging.Options{Level: envCfg.LogLevel, Format: envCfg.LogFormat, Output: out})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting uisp-suspend",
		zap.String("version", buildinfo.String()),
		zap.String("env", envCfg.Env),
		zap.String("env_file", envFile),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Wire components
	app, err := newApp(rootCtx, envCfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	// 4. Serve until signalled
	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("API server listening", zap.String("addr", app.server.Addr()))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envCfg.ShutdownTimeout)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func logOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
