package zooniverse

import (
	"context"
	"errors"

	"voidorchestra/internal/logging"
	"voidorchestra/internal/storage"
)

// SyncClassifications merges the workflow's consensus reductions into
// the mirror. Reductions for subjects not mirrored locally are skipped;
// known reductions are updated in place when consensus changed.
func (s *Syncer) SyncClassifications(ctx context.Context, workflowID int64, commitEvery int) (int, error) {
	runID, err := s.store.StartSyncRun("classifications")
	if err != nil {
		return 0, err
	}

	processed, total, err := s.syncClassifications(ctx, workflowID, commitEvery)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if finishErr := s.store.FinishSyncRun(runID, processed, total, errMsg); finishErr != nil && err == nil {
		return processed, finishErr
	}
	return processed, err
}

func (s *Syncer) syncClassifications(ctx context.Context, workflowID int64, commitEvery int) (int, int, error) {
	if commitEvery < 1 {
		commitEvery = 1
	}

	reductions, total, err := s.client.ListReductions(ctx, workflowID)
	if err != nil {
		return 0, total, err
	}

	processed := 0
	for i, reduction := range reductions {
		subject, err := s.store.SubjectByZooniverseID(reduction.SubjectID)
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Debug("reduction for unmirrored subject skipped",
				"classification", reduction.ID, "subject", reduction.SubjectID)
			continue
		}
		if err != nil {
			return processed, total, err
		}

		if err := s.store.MergeClassification(storage.ClassificationRecord{
			ZooniverseID: reduction.ID,
			SubjectID:    subject.ID,
			Answer:       reduction.Answer,
			Reducer:      reduction.Reducer,
		}); err != nil {
			return processed, total, err
		}
		processed++

		if (i+1)%commitEvery == 0 {
			logging.LogProgress(s.log, "syncing classifications", i+1, total)
			s.publish("classifications", i+1, total)
		}
	}

	logging.LogProgress(s.log, "syncing classifications", total, total)
	s.publish("classifications", total, total)
	return processed, total, nil
}
