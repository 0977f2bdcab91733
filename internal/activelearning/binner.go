package activelearning

import (
	"context"
	"errors"

	"voidorchestra/internal/logging"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

// bucketIndex bins a confidence in [0, 1] into one of n buckets.
// Confidence 1.0 lands in the last bucket, not one past it; missing
// confidence is treated as 0 so uncertain items surface quickly.
func bucketIndex(confidence *float64, n int) int {
	c := 0.0
	if confidence != nil {
		c = *confidence
	}
	idx := int(c * float64(n))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// BinSubjects reassigns every active (non-retired) subject to the bucket
// matching its machine confidence. Bucket membership is recomputed from
// scratch each run, so a crashed run is finished by simply re-running.
//
// Remote membership writes are queued per bucket and flushed together
// with a local commit every commitEvery subjects, and once more at the
// end. The batching is a throughput tradeoff, not a correctness boundary.
//
// Returns the number of subjects examined and the active total, for the
// caller's audit row.
func (e *Engine) BinSubjects(ctx context.Context, buckets []*Bucket, workflowID int64, commitEvery int) (int, int, error) {
	n := len(buckets)
	if n == 0 {
		return 0, 0, configErrorf("no priority subject sets to bin into")
	}
	if commitEvery < 1 {
		commitEvery = 1
	}

	subjects, err := e.store.ActiveSubjects()
	if err != nil {
		return 0, 0, err
	}
	total := len(subjects)

	// Buckets a subject may need removing from, keyed by remote id.
	// Out-of-scheme sets a subject migrates away from get appended as
	// they are discovered so later subjects reuse the handle.
	working := make(map[int64]*Bucket, n)
	flushSet := make([]*Bucket, 0, n)
	for _, b := range buckets {
		working[b.Remote.ID] = b
		flushSet = append(flushSet, b)
	}

	tx, err := e.store.Begin()
	if err != nil {
		return 0, total, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	for i, subject := range subjects {
		target := buckets[bucketIndex(subject.Confidence, n)]

		if subject.SubjectSetID == nil || *subject.SubjectSetID != target.Local.ZooniverseID {
			if subject.SubjectSetID != nil {
				old, ok := working[*subject.SubjectSetID]
				if !ok {
					remote, err := e.client.FindSubjectSet(ctx, *subject.SubjectSetID)
					switch {
					case errors.Is(err, panoptes.ErrNotFound):
						// The old set vanished remotely, nothing to remove from.
					case err != nil:
						return i, total, err
					default:
						old = &Bucket{Remote: remote}
						working[remote.ID] = old
						flushSet = append(flushSet, old)
					}
				}
				if old != nil {
					old.pendingRemove = append(old.pendingRemove, subject.ZooniverseID)
				}
			}

			target.pendingAdd = append(target.pendingAdd, subject.ZooniverseID)
			if err := tx.AssignSubject(subject.ZooniverseID, target.Local.ZooniverseID, workflowID); err != nil {
				return i, total, err
			}
		}

		if (i+1)%commitEvery == 0 {
			if tx, err = e.checkpoint(ctx, tx, flushSet, false); err != nil {
				return i, total, err
			}
			logging.LogProgress(e.log, "binning subjects", i+1, total)
			e.publish("bin", i+1, total)
		}
	}

	if tx, err = e.checkpoint(ctx, tx, flushSet, true); err != nil {
		return total, total, err
	}
	logging.LogProgress(e.log, "binning subjects", total, total)
	e.publish("bin", total, total)
	return total, total, nil
}

// checkpoint flushes queued remote membership writes and commits the
// local transaction. A fresh transaction is opened for the next batch
// unless this was the final flush, in which case the returned Tx is nil.
func (e *Engine) checkpoint(ctx context.Context, tx *storage.Tx, buckets []*Bucket, last bool) (*storage.Tx, error) {
	for _, b := range buckets {
		if len(b.pendingRemove) > 0 {
			if err := e.client.RemoveSubjects(ctx, b.Remote.ID, b.pendingRemove); err != nil {
				return nil, err
			}
			b.pendingRemove = b.pendingRemove[:0]
		}
		if len(b.pendingAdd) > 0 {
			if err := e.client.AddSubjects(ctx, b.Remote.ID, b.pendingAdd); err != nil {
				return nil, err
			}
			b.pendingAdd = b.pendingAdd[:0]
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if last {
		return nil, nil
	}
	return e.store.Begin()
}
