package activelearning

import (
	"context"
	"errors"
	"math"
	"strconv"

	"voidorchestra/internal/storage"
)

// weightSumTolerance matches standard floating-point isclose semantics.
const weightSumTolerance = 1e-9

func weightsSumToOne(weights []float64) bool {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return math.Abs(sum-1.0) <= weightSumTolerance*math.Max(math.Abs(sum), 1.0)
}

// SetWeights assigns a sampling weight to each priority subject set and
// writes the mapping into the workflow's platform configuration. The
// weights alter how often the platform selects subjects from each set:
// three sets weighted [0.9, 0.05, 0.05] show roughly nine subjects from
// the first set for every one from the others.
//
// The weight list must be the same length as the id list and sum to 1;
// every id must belong to the workflow. Violations are configuration
// errors, surfaced immediately with the offending value.
func (e *Engine) SetWeights(ctx context.Context, subjectSetIDs []int64, weights []float64, workflowID int64) error {
	if len(subjectSetIDs) != len(weights) {
		return configErrorf("mismatch in length between subject set ids (%d) and selection weights (%d)",
			len(subjectSetIDs), len(weights))
	}
	if !weightsSumToOne(weights) {
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		return configErrorf("selection weights do not sum to 1, but to %v", sum)
	}

	for _, id := range subjectSetIDs {
		rec, err := e.store.SubjectSetByZooniverseID(id)
		if errors.Is(err, storage.ErrNotFound) {
			return configErrorf("subject set %d is not part of workflow %d", id, workflowID)
		}
		if err != nil {
			return err
		}
		if rec.WorkflowID == nil || *rec.WorkflowID != workflowID {
			return configErrorf("subject set %d is not part of workflow %d", id, workflowID)
		}
	}

	// All ids checked out; only now touch the mirror.
	for i, id := range subjectSetIDs {
		if err := e.store.SetSubjectSetWeight(id, weights[i]); err != nil {
			return err
		}
	}

	// Reload before writing: the platform intermittently rejects
	// configuration writes against a stale workflow copy.
	workflow, err := e.client.FindWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	configuration := workflow.Configuration
	if configuration == nil {
		configuration = make(map[string]any)
	}
	mapping := make(map[string]float64, len(subjectSetIDs))
	for i, id := range subjectSetIDs {
		mapping[strconv.FormatInt(id, 10)] = weights[i]
	}
	configuration["subject_set_weights"] = mapping

	if err := e.client.SaveWorkflowConfiguration(ctx, workflowID, configuration); err != nil {
		return err
	}

	e.log.Info("updated subject set selection weights",
		"workflow", workflowID, "subject_sets", len(subjectSetIDs))
	return nil
}
