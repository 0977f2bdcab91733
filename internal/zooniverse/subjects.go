package zooniverse

import (
	"context"
	"errors"

	"voidorchestra/internal/logging"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

// SyncSubjects upserts every subject matching the filter into the
// mirror. Subjects whose metadata carries no content name, or whose
// content is unknown locally, are skipped with a warning. Changes are
// committed every commitEvery subjects.
func (s *Syncer) SyncSubjects(ctx context.Context, filter panoptes.ListFilter, workflowID int64, commitEvery int) (int, error) {
	runID, err := s.store.StartSyncRun("subjects")
	if err != nil {
		return 0, err
	}

	processed, total, err := s.syncSubjects(ctx, filter, workflowID, commitEvery)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if finishErr := s.store.FinishSyncRun(runID, processed, total, errMsg); finishErr != nil && err == nil {
		return processed, finishErr
	}
	return processed, err
}

func (s *Syncer) syncSubjects(ctx context.Context, filter panoptes.ListFilter, workflowID int64, commitEvery int) (int, int, error) {
	if commitEvery < 1 {
		commitEvery = 1
	}

	subjects, total, err := s.client.ListSubjects(ctx, filter)
	if err != nil {
		return 0, total, err
	}

	tx, err := s.store.Begin()
	if err != nil {
		return 0, total, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	processed := 0
	for i, subject := range subjects {
		ref, ok := s.resolveContent(subject)
		if !ok {
			continue
		}

		retired, err := s.client.SubjectRetired(ctx, subject.ID, workflowID)
		if err != nil {
			return processed, total, err
		}

		rec := storage.SubjectRecord{
			ZooniverseID: subject.ID,
			Content:      ref,
			Retired:      retired,
		}
		if len(subject.SubjectSetIDs) > 0 {
			setID := subject.SubjectSetIDs[0]
			rec.SubjectSetID = &setID
			wf := workflowID
			rec.WorkflowID = &wf
		}
		if err := tx.UpsertSubject(rec); err != nil {
			return processed, total, err
		}
		processed++

		if (i+1)%commitEvery == 0 {
			if err := tx.Commit(); err != nil {
				tx = nil
				return processed, total, err
			}
			if tx, err = s.store.Begin(); err != nil {
				return processed, total, err
			}
			logging.LogProgress(s.log, "syncing subjects", i+1, total)
			s.publish("subjects", i+1, total)
		}
	}

	if err := tx.Commit(); err != nil {
		tx = nil
		return processed, total, err
	}
	tx = nil
	logging.LogProgress(s.log, "syncing subjects", total, total)
	s.publish("subjects", total, total)
	return processed, total, nil
}

// resolveContent matches a platform subject to local content through the
// metadata name, trying each content kind in turn.
func (s *Syncer) resolveContent(subject panoptes.Subject) (storage.ContentRef, bool) {
	name := subject.Metadata["name"]
	if name == "" {
		s.log.Warn("subject has no content name in metadata", "subject", subject.ID)
		return nil, false
	}
	for _, kind := range []string{storage.KindSonification, storage.KindStamp} {
		rec, err := s.store.ContentByName(kind, name)
		if err == nil {
			ref, refErr := storage.RefFor(kind, rec.ID)
			if refErr != nil {
				return nil, false
			}
			return ref, true
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("content lookup failed", "subject", subject.ID, "error", err)
			return nil, false
		}
	}
	s.log.Warn("subject has no matching local content", "subject", subject.ID, "name", name)
	return nil, false
}
