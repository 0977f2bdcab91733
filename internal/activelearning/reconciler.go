package activelearning

import (
	"context"
	"errors"
	"fmt"

	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

// PrioritySetName is the deterministic display name for the priority
// subject set of a given rank within a workflow. Reconcile searches the
// platform for this name before creating a new set.
func PrioritySetName(workflowID int64, rank int) string {
	return fmt.Sprintf("WF%d Sonification Priority #%d", workflowID, rank)
}

// Reconcile makes the local mirror agree with the platform and ensures
// priority subject sets with ranks 1..n exist and are linked to the
// workflow. The returned slice has length n, sorted by priority
// ascending.
//
// Mirror rows whose remote counterpart is gone are pruned first, along
// with the subject rows that referenced them. Any platform failure other
// than not-found or already-linked aborts the run.
func (e *Engine) Reconcile(ctx context.Context, projectID, workflowID int64, n int) ([]*Bucket, error) {
	if n < 1 {
		return nil, configErrorf("num_priority_sets must be at least 1, got %d", n)
	}

	if err := e.pruneMissingSubjectSets(ctx); err != nil {
		return nil, err
	}

	local, err := e.store.SubjectSetsInPriorityRange(workflowID, 1, n)
	if err != nil {
		return nil, err
	}

	missing := missingRanks(local, n)
	if len(missing) > 0 {
		if err := e.createPrioritySets(ctx, projectID, workflowID, missing); err != nil {
			return nil, err
		}
		local, err = e.store.SubjectSetsInPriorityRange(workflowID, 1, n)
		if err != nil {
			return nil, err
		}
	}

	if len(local) != n {
		return nil, fmt.Errorf("expected %d priority subject sets for workflow %d, have %d", n, workflowID, len(local))
	}

	buckets := make([]*Bucket, 0, n)
	for _, rec := range local {
		remote, err := e.client.FindSubjectSet(ctx, rec.ZooniverseID)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, &Bucket{Local: rec, Remote: remote})
	}
	return buckets, nil
}

// pruneMissingSubjectSets drops mirror rows for subject sets deleted on
// the platform.
func (e *Engine) pruneMissingSubjectSets(ctx context.Context) error {
	sets, err := e.store.AllSubjectSets()
	if err != nil {
		return err
	}
	for _, rec := range sets {
		_, err := e.client.FindSubjectSet(ctx, rec.ZooniverseID)
		if errors.Is(err, panoptes.ErrNotFound) {
			e.log.Debug("pruning subject set deleted on platform",
				"subject_set", rec.ZooniverseID, "display_name", rec.DisplayName)
			if err := e.store.DeleteSubjectSet(rec.ZooniverseID); err != nil {
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

// missingRanks returns the ranks in 1..n that the fetched sets do not
// cover. A full contiguous run returns nil.
func missingRanks(local []storage.SubjectSetRecord, n int) []int {
	present := make(map[int]bool, len(local))
	for _, rec := range local {
		if rec.Priority != nil {
			present[*rec.Priority] = true
		}
	}
	var missing []int
	for rank := 1; rank <= n; rank++ {
		if !present[rank] {
			missing = append(missing, rank)
		}
	}
	return missing
}

// createPrioritySets fills in the missing ranks, reusing a platform set
// whose display name matches the naming convention when one exists.
func (e *Engine) createPrioritySets(ctx context.Context, projectID, workflowID int64, ranks []int) error {
	remote, _, err := e.client.ListSubjectSets(ctx, panoptes.ListFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	byName := make(map[string]*panoptes.SubjectSet, len(remote))
	for i := range remote {
		byName[remote[i].DisplayName] = &remote[i]
	}

	for _, rank := range ranks {
		name := PrioritySetName(workflowID, rank)

		set := byName[name]
		if set == nil {
			created, err := e.client.CreateSubjectSet(ctx, projectID, name)
			if err != nil {
				return err
			}
			set = created
			e.log.Info("created priority subject set", "display_name", name, "subject_set", set.ID)
		} else {
			e.log.Debug("reusing existing subject set", "display_name", name, "subject_set", set.ID)
		}

		// Re-linking an already linked set is fine, the platform just
		// rejects the duplicate.
		err := e.client.LinkSubjectSets(ctx, workflowID, []int64{set.ID})
		if errors.Is(err, panoptes.ErrAlreadyLinked) {
			e.log.Debug("subject set already linked to workflow",
				"subject_set", set.ID, "workflow", workflowID)
		} else if err != nil {
			return err
		}

		rank := rank
		wf := workflowID
		if err := e.store.UpsertSubjectSet(storage.SubjectSetRecord{
			ZooniverseID: set.ID,
			ProjectID:    projectID,
			WorkflowID:   &wf,
			Priority:     &rank,
			DisplayName:  name,
		}); err != nil {
			return err
		}
	}
	return nil
}

// UnlinkUnusedBuckets detaches from the workflow every linked subject set
// whose priority falls outside [1, n] or is null. The platform unlink is
// one batched call; local rows persist for audit with their workflow
// reference nulled.
func (e *Engine) UnlinkUnusedBuckets(ctx context.Context, workflowID int64, n int) error {
	unused, err := e.store.SubjectSetsOutsidePriorityRange(workflowID, 1, n)
	if err != nil {
		return err
	}
	if len(unused) == 0 {
		return nil
	}

	ids := make([]int64, len(unused))
	for i, rec := range unused {
		ids[i] = rec.ZooniverseID
		e.log.Debug("unlinking subject set from workflow",
			"subject_set", rec.ZooniverseID, "display_name", rec.DisplayName, "workflow", workflowID)
	}

	if err := e.client.UnlinkSubjectSets(ctx, workflowID, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.store.SetSubjectSetWorkflow(id, nil); err != nil {
			return err
		}
	}
	return nil
}
