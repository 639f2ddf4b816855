package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexanderramin/chapterwise/internal/cli"
	"github.com/alexanderramin/chapterwise/internal/config"
	"github.com/alexanderramin/chapterwise/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	app := &cli.App{
		Config:     cfg,
		Logger:     logger,
		Open:       cli.OpenRuntime,
		IsTerminal: cli.StdoutIsTerminal,
	}
	return cli.Execute(context.Background(), app, os.Args[1:])
}
