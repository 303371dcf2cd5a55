package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/sujalbistaa/retroboard/internal/app"
	"github.com/sujalbistaa/retroboard/internal/config"
)

func runServe(ctx context.Context, port int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log := app.NewLogger(cfg.Log)
	log.Info("starting retroboard",
		slog.String("version", app.BuildVersion()),
		slog.String("log_level", cfg.Log.Level))

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Serve(ctx)
}

func runAggregate(ctx context.Context, out io.Writer, pretty bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log := app.NewLogger(cfg.Log)
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	result, err := a.AggregateOnce(ctx)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func runConfig(out io.Writer) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg.Masked())
}
