package panoptes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// FindSubjectSet fetches one subject set by id.
func (c *Client) FindSubjectSet(ctx context.Context, id int64) (*SubjectSet, error) {
	var set SubjectSet
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/subject_sets/%d", id), nil, nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (f ListFilter) query() url.Values {
	q := url.Values{}
	if f.ProjectID != 0 {
		q.Set("project_id", strconv.FormatInt(f.ProjectID, 10))
	}
	if f.WorkflowID != 0 {
		q.Set("workflow_id", strconv.FormatInt(f.WorkflowID, 10))
	}
	if f.SubjectSetID != 0 {
		q.Set("subject_set_id", strconv.FormatInt(f.SubjectSetID, 10))
	}
	return q
}

// ListSubjectSets returns every subject set matching the filter, walking
// the paged collection, along with the total count the platform reports.
func (c *Client) ListSubjectSets(ctx context.Context, filter ListFilter) ([]SubjectSet, int, error) {
	var all []SubjectSet
	total := 0
	page := 1
	for {
		q := filter.query()
		q.Set("page", strconv.Itoa(page))

		var resp struct {
			SubjectSets []SubjectSet `json:"subject_sets"`
			Meta        meta         `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, "/subject_sets", q, nil, &resp); err != nil {
			return nil, 0, err
		}
		all = append(all, resp.SubjectSets...)
		total = resp.Meta.Count
		if resp.Meta.NextPage == nil {
			return all, total, nil
		}
		page = *resp.Meta.NextPage
	}
}

// CreateSubjectSet creates a subject set linked to a project.
func (c *Client) CreateSubjectSet(ctx context.Context, projectID int64, displayName string) (*SubjectSet, error) {
	body := map[string]any{
		"display_name": displayName,
		"project_id":   projectID,
	}
	var set SubjectSet
	if err := c.do(ctx, http.MethodPost, "/subject_sets", nil, body, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// AddSubjects adds subjects to a subject set.
func (c *Client) AddSubjects(ctx context.Context, setID int64, subjectIDs []int64) error {
	body := map[string]any{"subject_ids": subjectIDs}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/subject_sets/%d/subjects", setID), nil, body, nil)
}

// RemoveSubjects removes subjects from a subject set.
func (c *Client) RemoveSubjects(ctx context.Context, setID int64, subjectIDs []int64) error {
	body := map[string]any{"subject_ids": subjectIDs}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/subject_sets/%d/subjects", setID), nil, body, nil)
}
