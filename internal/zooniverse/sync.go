// Package zooniverse keeps the local mirror in step with the platform:
// subject sets, subjects, and consensus classifications. The platform is
// authoritative; mirror rows whose remote counterpart vanished are
// pruned.
package zooniverse

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"voidorchestra/internal/logging"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/progress"
	"voidorchestra/internal/storage"
)

// Syncer updates the local mirror from platform state.
type Syncer struct {
	store  *storage.Store
	client *panoptes.Client
	log    *slog.Logger
	hub    *progress.Hub
}

// NewSyncer constructs a syncer. hub may be nil.
func NewSyncer(store *storage.Store, client *panoptes.Client, logger *slog.Logger, hub *progress.Hub) *Syncer {
	return &Syncer{
		store:  store,
		client: client,
		log:    logger,
		hub:    hub,
	}
}

// SyncSubjectSets prunes mirror rows deleted on the platform, then
// upserts every subject set matching the filter. The priority rank comes
// from the "#priority" metadata key, falling back to trailing digits of
// the display name, null when neither is present.
func (s *Syncer) SyncSubjectSets(ctx context.Context, filter panoptes.ListFilter) (int, error) {
	runID, err := s.store.StartSyncRun("subject-sets")
	if err != nil {
		return 0, err
	}

	processed, total, err := s.syncSubjectSets(ctx, filter)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if finishErr := s.store.FinishSyncRun(runID, processed, total, errMsg); finishErr != nil && err == nil {
		return processed, finishErr
	}
	return processed, err
}

func (s *Syncer) syncSubjectSets(ctx context.Context, filter panoptes.ListFilter) (int, int, error) {
	if err := s.pruneMissingSubjectSets(ctx); err != nil {
		return 0, 0, err
	}

	sets, total, err := s.client.ListSubjectSets(ctx, filter)
	if err != nil {
		return 0, total, err
	}

	for i, set := range sets {
		rec := storage.SubjectSetRecord{
			ZooniverseID: set.ID,
			ProjectID:    set.ProjectID,
			Priority:     subjectSetPriority(set),
			DisplayName:  set.DisplayName,
		}
		if len(set.WorkflowIDs) > 0 {
			wf := set.WorkflowIDs[0]
			rec.WorkflowID = &wf
		}
		if err := s.store.UpsertSubjectSet(rec); err != nil {
			return i, total, err
		}
	}

	logging.LogProgress(s.log, "syncing subject sets", len(sets), total)
	s.publish("subject-sets", len(sets), total)
	return len(sets), total, nil
}

func (s *Syncer) pruneMissingSubjectSets(ctx context.Context) error {
	sets, err := s.store.AllSubjectSets()
	if err != nil {
		return err
	}
	for _, rec := range sets {
		_, err := s.client.FindSubjectSet(ctx, rec.ZooniverseID)
		if errors.Is(err, panoptes.ErrNotFound) {
			s.log.Debug("pruning subject set deleted on platform", "subject_set", rec.ZooniverseID)
			if err := s.store.DeleteSubjectSet(rec.ZooniverseID); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// subjectSetPriority extracts the priority rank from a platform subject
// set, nil when it carries none.
func subjectSetPriority(set panoptes.SubjectSet) *int {
	if raw, ok := set.Metadata["#priority"]; ok {
		if p, ok := parseDigits(raw); ok {
			return &p
		}
	}
	// Fall back to trailing digits of the display name, e.g.
	// "WF42 Sonification Priority #3".
	fields := strings.Fields(set.DisplayName)
	if len(fields) == 0 {
		return nil
	}
	if p, ok := parseDigits(fields[len(fields)-1]); ok {
		return &p
	}
	return nil
}

func parseDigits(raw string) (int, bool) {
	digits := strings.Builder{}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	value := 0
	for _, r := range digits.String() {
		value = value*10 + int(r-'0')
	}
	return value, true
}

func (s *Syncer) publish(kind string, processed, total int) {
	if s.hub != nil {
		s.hub.Publish(progress.Event{Kind: kind, Processed: processed, Total: total})
	}
}
