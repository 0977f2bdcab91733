package panoptes

import (
	"context"
	"fmt"
	"net/http"
)

// FindProject fetches one project by id.
func (c *Client) FindProject(ctx context.Context, id int64) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindWorkflow fetches one workflow by id. Also used to reload a stale
// workflow before configuration writes.
func (c *Client) FindWorkflow(ctx context.Context, id int64) (*Workflow, error) {
	var workflow Workflow
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d", id), nil, nil, &workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// LinkSubjectSets links subject sets to a workflow. The platform rejects
// a duplicate link with a conflict, surfaced as ErrAlreadyLinked.
func (c *Client) LinkSubjectSets(ctx context.Context, workflowID int64, setIDs []int64) error {
	body := map[string]any{"subject_set_ids": setIDs}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/subject_sets", workflowID), nil, body, nil)
}

// UnlinkSubjectSets removes subject sets from a workflow in one batched
// call.
func (c *Client) UnlinkSubjectSets(ctx context.Context, workflowID int64, setIDs []int64) error {
	body := map[string]any{"subject_set_ids": setIDs}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/workflows/%d/subject_sets", workflowID), nil, body, nil)
}

// SaveWorkflowConfiguration replaces the workflow's free-form
// configuration mapping.
func (c *Client) SaveWorkflowConfiguration(ctx context.Context, workflowID int64, configuration map[string]any) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/workflows/%d/configuration", workflowID), nil, configuration, nil)
}
