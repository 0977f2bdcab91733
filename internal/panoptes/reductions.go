package panoptes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Reduction is one consensus judgment produced by the platform's
// reducers for a subject in a workflow.
type Reduction struct {
	ID        int64  `json:"id"`
	SubjectID int64  `json:"subject_id"`
	Answer    string `json:"answer"`
	Reducer   string `json:"reducer"`
}

// ListReductions returns the consensus reductions for a workflow,
// walking the paged collection, along with the total count.
func (c *Client) ListReductions(ctx context.Context, workflowID int64) ([]Reduction, int, error) {
	var all []Reduction
	total := 0
	page := 1
	for {
		q := ListFilter{}.query()
		q.Set("page", strconv.Itoa(page))

		var resp struct {
			Reductions []Reduction `json:"reductions"`
			Meta       meta        `json:"meta"`
		}
		path := fmt.Sprintf("/workflows/%d/reductions", workflowID)
		if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
			return nil, 0, err
		}
		all = append(all, resp.Reductions...)
		total = resp.Meta.Count
		if resp.Meta.NextPage == nil {
			return all, total, nil
		}
		page = *resp.Meta.NextPage
	}
}
