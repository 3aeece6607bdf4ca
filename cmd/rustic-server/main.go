// Command rustic-server serves a directory of static files over HTTP,
// handling each connection on a fixed-size worker pool.
//
// Usage:
//
//	rustic-server [-config server.yaml] [address port]
//
// Settings are read from the config file, then RUSTIC_* environment
// variables (a .env file in the working directory is loaded first), then
// the positional address and port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/swap-10/rustic-server/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("rustic-server failed")
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := loadConfig(args, stderr)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(cfg,
		server.WithLogger(logger),
		server.WithMetricsRegisterer(registry),
	)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"addr":       cfg.ListenAddr(),
		"static_dir": cfg.StaticDir,
		"workers":    cfg.Workers,
	}).Info("rustic-server starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return server.ServeMetrics(ctx, cfg.MetricsAddr, registry, logger)
		})
	}

	err = g.Wait()
	logger.Info("rustic-server stopped")
	return err
}

// loadConfig builds the configuration from the optional config file, the
// environment and the positional arguments, in increasing precedence
func loadConfig(args []string, stderr io.Writer) (*server.Config, error) {
	fs := flag.NewFlagSet("rustic-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: rustic-server [-config file.yaml] [address port]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := server.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = server.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}

	if err := server.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 2:
		cfg.Address, cfg.Port = rest[0], rest[1]
	default:
		fs.Usage()
		return nil, fmt.Errorf("expected address and port, got %d arguments", len(rest))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
