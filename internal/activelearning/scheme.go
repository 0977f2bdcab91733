package activelearning

import (
	"context"
	"fmt"
)

// SchemeParams bundles the configuration-supplied inputs for one
// rebalancing run.
type SchemeParams struct {
	ProjectID       int64
	WorkflowID      int64
	NumPrioritySets int
	Weights         []float64
	CommitEvery     int
}

// UpdateWeightedSamplingScheme runs the full rebalancing pipeline:
//
//  1. Reconcile the mirror and ensure priority subject sets 1..N exist.
//  2. Bin subjects into them by machine confidence.
//  3. Push the selection weights to the workflow.
//  4. Unlink subject sets that fell outside the priority range.
//
// A failed run leaves the mirror and the platform in the last-committed
// consistent state; re-running completes the reconciliation.
func (e *Engine) UpdateWeightedSamplingScheme(ctx context.Context, params SchemeParams) error {
	runID, err := e.store.StartSyncRun("rebalance")
	if err != nil {
		return err
	}

	processed, total, err := e.updateScheme(ctx, params)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if finishErr := e.store.FinishSyncRun(runID, processed, total, errMsg); finishErr != nil && err == nil {
		return finishErr
	}
	return err
}

func (e *Engine) updateScheme(ctx context.Context, params SchemeParams) (int, int, error) {
	if len(params.Weights) != params.NumPrioritySets {
		return 0, 0, configErrorf("selection_weighting has %d entries but num_priority_sets is %d",
			len(params.Weights), params.NumPrioritySets)
	}

	buckets, err := e.Reconcile(ctx, params.ProjectID, params.WorkflowID, params.NumPrioritySets)
	if err != nil {
		return 0, 0, fmt.Errorf("reconcile priority subject sets: %w", err)
	}

	processed, total, err := e.BinSubjects(ctx, buckets, params.WorkflowID, params.CommitEvery)
	if err != nil {
		return processed, total, fmt.Errorf("bin subjects: %w", err)
	}

	ids := make([]int64, len(buckets))
	for i, b := range buckets {
		ids[i] = b.Remote.ID
	}
	if err := e.SetWeights(ctx, ids, params.Weights, params.WorkflowID); err != nil {
		return processed, total, fmt.Errorf("set selection weights: %w", err)
	}

	if err := e.UnlinkUnusedBuckets(ctx, params.WorkflowID, params.NumPrioritySets); err != nil {
		return processed, total, fmt.Errorf("unlink unused subject sets: %w", err)
	}
	return processed, total, nil
}
