package panoptes

// Project is a top-level platform project grouping workflows and
// subject sets.
type Project struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Workflow bundles a task definition with the subject sets shown to
// classifiers. Configuration is a free-form mapping owned by the
// platform; the weight setter stores the sampling weights there.
type Workflow struct {
	ID            int64          `json:"id"`
	DisplayName   string         `json:"display_name"`
	Version       string         `json:"version"`
	SubjectsCount int            `json:"subjects_count"`
	SubjectSetIDs []int64        `json:"subject_set_ids"`
	Configuration map[string]any `json:"configuration"`
}

// SubjectSet is a named grouping of subjects on the platform.
type SubjectSet struct {
	ID          int64             `json:"id"`
	DisplayName string            `json:"display_name"`
	ProjectID   int64             `json:"project_id"`
	WorkflowIDs []int64           `json:"workflow_ids"`
	Metadata    map[string]string `json:"metadata"`
}

// Subject is one classifiable item on the platform. The metadata "name"
// key carries the content hash that ties it back to local content.
type Subject struct {
	ID            int64             `json:"id"`
	ProjectID     int64             `json:"project_id"`
	SubjectSetIDs []int64           `json:"subject_set_ids"`
	Metadata      map[string]string `json:"metadata"`
}

// ListFilter selects which subjects or subject sets to list. Zero fields
// are omitted from the query.
type ListFilter struct {
	ProjectID    int64
	WorkflowID   int64
	SubjectSetID int64
}

type meta struct {
	Count    int  `json:"count"`
	NextPage *int `json:"next_page"`
}
