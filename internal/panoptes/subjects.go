package panoptes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// FindSubject fetches one subject by id.
func (c *Client) FindSubject(ctx context.Context, id int64) (*Subject, error) {
	var subject Subject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/subjects/%d", id), nil, nil, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListSubjects returns every subject matching the filter, walking the
// paged collection, along with the total count the platform reports.
func (c *Client) ListSubjects(ctx context.Context, filter ListFilter) ([]Subject, int, error) {
	var all []Subject
	total := 0
	page := 1
	for {
		q := filter.query()
		q.Set("page", strconv.Itoa(page))

		var resp struct {
			Subjects []Subject `json:"subjects"`
			Meta     meta      `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, "/subjects", q, nil, &resp); err != nil {
			return nil, 0, err
		}
		all = append(all, resp.Subjects...)
		total = resp.Meta.Count
		if resp.Meta.NextPage == nil {
			return all, total, nil
		}
		page = *resp.Meta.NextPage
	}
}

// SubjectRetired reports whether a subject has been retired in a
// workflow. A subject not in the workflow is simply not retired.
func (c *Client) SubjectRetired(ctx context.Context, subjectID, workflowID int64) (bool, error) {
	q := url.Values{}
	q.Set("workflow_id", strconv.FormatInt(workflowID, 10))

	var status struct {
		RetiredAt *string `json:"retired_at"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/subjects/%d/status", subjectID), q, nil, &status)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status.RetiredAt != nil, nil
}
