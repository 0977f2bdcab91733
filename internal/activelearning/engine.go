// Package activelearning maintains the weighted sampling scheme: it keeps
// a contiguous run of priority subject sets on the platform, bins subjects
// into them by machine confidence, and pushes per-set sampling weights so
// uncertain subjects are shown to classifiers more often.
package activelearning

import (
	"fmt"
	"log/slog"

	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/progress"
	"voidorchestra/internal/storage"
)

// Engine runs the rebalancing pipeline against an injected store and
// platform client. It is single-threaded; one run owns the store.
type Engine struct {
	store  *storage.Store
	client *panoptes.Client
	log    *slog.Logger
	hub    *progress.Hub
}

// New constructs an engine. hub may be nil when no observer is attached.
func New(store *storage.Store, client *panoptes.Client, logger *slog.Logger, hub *progress.Hub) *Engine {
	return &Engine{
		store:  store,
		client: client,
		log:    logger,
		hub:    hub,
	}
}

// Bucket pairs a mirrored priority subject set with its remote handle.
// Remote subject membership writes are queued on the bucket and flushed
// at binning checkpoints.
type Bucket struct {
	Local  storage.SubjectSetRecord
	Remote *panoptes.SubjectSet

	pendingAdd    []int64
	pendingRemove []int64
}

// Priority returns the bucket's priority rank, 0 when unset.
func (b *Bucket) Priority() int {
	if b.Local.Priority == nil {
		return 0
	}
	return *b.Local.Priority
}

// ConfigError signals a misconfigured weight list or bucket assignment.
// Fatal and never retried; the message names the offending value.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func (e *Engine) publish(kind string, processed, total int) {
	if e.hub != nil {
		e.hub.Publish(progress.Event{Kind: kind, Processed: processed, Total: total})
	}
}
