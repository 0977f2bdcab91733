package main

import (
	"fmt"
	"os"

	"voidorchestra/internal/cli"
	"voidorchestra/internal/config"
	"voidorchestra/internal/logging"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	store, err := storage.New(cfg.Paths.Database)
	if err != nil {
		return fmt.Errorf("failed to open mirror database: %w", err)
	}
	defer store.Close()

	client := panoptes.New(cfg.Zooniverse.Endpoint, cfg.Zooniverse.Username, cfg.Zooniverse.Password, nil)

	root := cli.NewRoot(cfg, logger, store, client)
	return cli.NewRootCmd(root).Execute()
}
