package storage

import (
	"database/sql"
	"errors"
)

// SubjectSetRecord mirrors one Zooniverse subject set. Priority and
// WorkflowID are nil for sets outside the active priority scheme.
type SubjectSetRecord struct {
	ID           int64
	ZooniverseID int64
	ProjectID    int64
	WorkflowID   *int64
	Priority     *int
	DisplayName  string
	Weight       float64
}

const subjectSetColumns = `id, zooniverse_id, zooniverse_project_id, zooniverse_workflow_id, priority, display_name, weight`

func scanSubjectSet(row interface{ Scan(...any) error }) (SubjectSetRecord, error) {
	var rec SubjectSetRecord
	var project, workflow, priority sql.NullInt64
	var name sql.NullString
	err := row.Scan(&rec.ID, &rec.ZooniverseID, &project, &workflow, &priority, &name, &rec.Weight)
	if err != nil {
		return SubjectSetRecord{}, err
	}
	if project.Valid {
		rec.ProjectID = project.Int64
	}
	if workflow.Valid {
		w := workflow.Int64
		rec.WorkflowID = &w
	}
	if priority.Valid {
		p := int(priority.Int64)
		rec.Priority = &p
	}
	if name.Valid {
		rec.DisplayName = name.String
	}
	return rec, nil
}

// UpsertSubjectSet inserts a subject set mirror row, or refreshes the
// existing row keyed by the Zooniverse id. The sampling weight is
// preserved on update; it is owned by the weight setter.
func (s *Store) UpsertSubjectSet(rec SubjectSetRecord) error {
	var workflow any
	if rec.WorkflowID != nil {
		workflow = *rec.WorkflowID
	}
	var priority any
	if rec.Priority != nil {
		priority = *rec.Priority
	}
	_, err := s.DB.Exec(`INSERT INTO subject_sets (zooniverse_id, zooniverse_project_id, zooniverse_workflow_id, priority, display_name)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(zooniverse_id) DO UPDATE SET
            zooniverse_project_id=excluded.zooniverse_project_id,
            zooniverse_workflow_id=excluded.zooniverse_workflow_id,
            priority=excluded.priority,
            display_name=excluded.display_name;`,
		rec.ZooniverseID, rec.ProjectID, workflow, priority, rec.DisplayName)
	return err
}

// SubjectSetByZooniverseID fetches a single mirror row.
func (s *Store) SubjectSetByZooniverseID(zooniverseID int64) (SubjectSetRecord, error) {
	row := s.DB.QueryRow(`SELECT `+subjectSetColumns+` FROM subject_sets WHERE zooniverse_id=?;`, zooniverseID)
	rec, err := scanSubjectSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SubjectSetRecord{}, ErrNotFound
	}
	return rec, err
}

// AllSubjectSets returns every mirrored subject set.
func (s *Store) AllSubjectSets() ([]SubjectSetRecord, error) {
	return s.querySubjectSets(`SELECT ` + subjectSetColumns + ` FROM subject_sets ORDER BY id;`)
}

// SubjectSetsInPriorityRange returns the sets linked to workflowID whose
// priority falls within [lo, hi], sorted by priority ascending.
func (s *Store) SubjectSetsInPriorityRange(workflowID int64, lo, hi int) ([]SubjectSetRecord, error) {
	return s.querySubjectSets(`SELECT `+subjectSetColumns+` FROM subject_sets
        WHERE zooniverse_workflow_id=? AND priority BETWEEN ? AND ?
        ORDER BY priority;`, workflowID, lo, hi)
}

// SubjectSetsOutsidePriorityRange returns the sets linked to workflowID
// whose priority is outside [lo, hi] or null.
func (s *Store) SubjectSetsOutsidePriorityRange(workflowID int64, lo, hi int) ([]SubjectSetRecord, error) {
	return s.querySubjectSets(`SELECT `+subjectSetColumns+` FROM subject_sets
        WHERE zooniverse_workflow_id=? AND (priority IS NULL OR priority < ? OR priority > ?)
        ORDER BY id;`, workflowID, lo, hi)
}

func (s *Store) querySubjectSets(query string, args ...any) ([]SubjectSetRecord, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SubjectSetRecord
	for rows.Next() {
		rec, err := scanSubjectSet(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SetSubjectSetWorkflow points a mirrored set at a workflow, or detaches
// it when workflowID is nil.
func (s *Store) SetSubjectSetWorkflow(zooniverseID int64, workflowID *int64) error {
	var workflow any
	if workflowID != nil {
		workflow = *workflowID
	}
	res, err := s.DB.Exec(`UPDATE subject_sets SET zooniverse_workflow_id=? WHERE zooniverse_id=?;`, workflow, zooniverseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSubjectSetWeight persists the sampling weight for a mirrored set.
func (s *Store) SetSubjectSetWeight(zooniverseID int64, weight float64) error {
	res, err := s.DB.Exec(`UPDATE subject_sets SET weight=? WHERE zooniverse_id=?;`, weight, zooniverseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSubjectSet removes a mirror row whose remote counterpart is gone,
// along with the subject rows that referenced it.
func (s *Store) DeleteSubjectSet(zooniverseID int64) error {
	if _, err := s.DB.Exec(`DELETE FROM subjects WHERE zooniverse_subject_set_id=?;`, zooniverseID); err != nil {
		return err
	}
	_, err := s.DB.Exec(`DELETE FROM subject_sets WHERE zooniverse_id=?;`, zooniverseID)
	return err
}
