package storage

import (
	"database/sql"
	"errors"
)

// SubjectRecord mirrors one Zooniverse subject. SubjectSetID and
// WorkflowID are the Zooniverse ids of the current links, nil when the
// subject is not assigned.
type SubjectRecord struct {
	ID           int64
	ZooniverseID int64
	Content      ContentRef
	SubjectSetID *int64
	WorkflowID   *int64
	Retired      bool
}

// ActiveSubject is a non-retired subject joined with the machine
// confidence of its content.
type ActiveSubject struct {
	SubjectRecord
	Confidence *float64
}

const subjectColumns = `id, zooniverse_id, content_kind, content_id, zooniverse_subject_set_id, zooniverse_workflow_id, retired`

func scanSubject(row interface{ Scan(...any) error }, extra ...any) (SubjectRecord, error) {
	var rec SubjectRecord
	var kind string
	var contentID int64
	var subjectSet, workflow sql.NullInt64
	dest := []any{&rec.ID, &rec.ZooniverseID, &kind, &contentID, &subjectSet, &workflow, &rec.Retired}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return SubjectRecord{}, err
	}
	ref, err := RefFor(kind, contentID)
	if err != nil {
		return SubjectRecord{}, err
	}
	rec.Content = ref
	if subjectSet.Valid {
		v := subjectSet.Int64
		rec.SubjectSetID = &v
	}
	if workflow.Valid {
		v := workflow.Int64
		rec.WorkflowID = &v
	}
	return rec, nil
}

// UpsertSubject inserts a subject mirror row, or refreshes the existing
// row keyed by the Zooniverse id.
func (s *Store) UpsertSubject(rec SubjectRecord) error {
	return upsertSubject(s.DB, rec)
}

// UpsertSubject is the transactional variant used by batched sync.
func (t *Tx) UpsertSubject(rec SubjectRecord) error {
	return upsertSubject(t.tx, rec)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertSubject(db execer, rec SubjectRecord) error {
	var subjectSet any
	if rec.SubjectSetID != nil {
		subjectSet = *rec.SubjectSetID
	}
	var workflow any
	if rec.WorkflowID != nil {
		workflow = *rec.WorkflowID
	}
	_, err := db.Exec(`INSERT INTO subjects (zooniverse_id, content_kind, content_id, zooniverse_subject_set_id, zooniverse_workflow_id, retired)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(zooniverse_id) DO UPDATE SET
            zooniverse_subject_set_id=excluded.zooniverse_subject_set_id,
            zooniverse_workflow_id=excluded.zooniverse_workflow_id,
            retired=excluded.retired;`,
		rec.ZooniverseID, rec.Content.Kind(), rec.Content.ContentID(), subjectSet, workflow, rec.Retired)
	return err
}

// SubjectByZooniverseID fetches a single subject mirror row.
func (s *Store) SubjectByZooniverseID(zooniverseID int64) (SubjectRecord, error) {
	row := s.DB.QueryRow(`SELECT `+subjectColumns+` FROM subjects WHERE zooniverse_id=?;`, zooniverseID)
	rec, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SubjectRecord{}, ErrNotFound
	}
	return rec, err
}

// ActiveSubjects returns every non-retired subject joined with the
// machine confidence of its content. Iteration order is unspecified.
func (s *Store) ActiveSubjects() ([]ActiveSubject, error) {
	rows, err := s.DB.Query(`SELECT ` + subjectColumns + `,
            CASE s.content_kind
                WHEN 'sonification' THEN (SELECT machine_confidence FROM sonifications WHERE id = s.content_id)
                WHEN 'stamp' THEN (SELECT machine_confidence FROM stamps WHERE id = s.content_id)
            END AS machine_confidence
        FROM subjects s WHERE NOT retired;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ActiveSubject
	for rows.Next() {
		var conf sql.NullFloat64
		rec, err := scanSubject(rows, &conf)
		if err != nil {
			return nil, err
		}
		active := ActiveSubject{SubjectRecord: rec}
		if conf.Valid {
			c := conf.Float64
			active.Confidence = &c
		}
		recs = append(recs, active)
	}
	return recs, rows.Err()
}

// CountSubjects returns the total and retired subject counts.
func (s *Store) CountSubjects() (total, retired int, err error) {
	err = s.DB.QueryRow(`SELECT COUNT(*), COALESCE(SUM(retired), 0) FROM subjects;`).Scan(&total, &retired)
	return total, retired, err
}

// AssignSubject moves a subject into a subject set within a workflow.
// Part of the binner's batched transaction.
func (t *Tx) AssignSubject(zooniverseID, subjectSetID, workflowID int64) error {
	res, err := t.tx.Exec(`UPDATE subjects SET zooniverse_subject_set_id=?, zooniverse_workflow_id=? WHERE zooniverse_id=?;`,
		subjectSetID, workflowID, zooniverseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
