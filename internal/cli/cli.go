package cli

import (
	"log/slog"

	"voidorchestra/internal/config"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/progress"
	"voidorchestra/internal/storage"
)

// Version is the voidorchestra release version.
const Version = "0.2.0"

// Root wires CLI commands to the store, platform client, and config.
type Root struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *storage.Store
	client *panoptes.Client
	hub    *progress.Hub

	commitEvery int
	verbose     bool
	debug       bool
}

// NewRoot constructs the CLI wiring.
func NewRoot(cfg *config.Config, logger *slog.Logger, store *storage.Store, client *panoptes.Client) *Root {
	return &Root{
		cfg:         cfg,
		log:         logger,
		store:       store,
		client:      client,
		hub:         progress.NewHub(),
		commitEvery: cfg.Sync.CommitEvery,
	}
}

// sourceID resolves an optional --id override against the configured
// default for the given source kind.
func (r *Root) sourceID(override int64, fallback int64) int64 {
	if override != 0 {
		return override
	}
	return fallback
}
