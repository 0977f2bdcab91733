package storage

import (
	"database/sql"
	"errors"
)

// ClassificationRecord mirrors one consensus reduction for a subject.
type ClassificationRecord struct {
	ID           int64
	ZooniverseID int64
	SubjectID    int64 // local subjects.id
	Answer       string
	Reducer      string
}

// MergeClassification inserts a classification, or updates the consensus
// answer when the remote reduction changed. Keyed by the Zooniverse
// classification id so re-syncing never duplicates rows.
func (s *Store) MergeClassification(rec ClassificationRecord) error {
	_, err := s.DB.Exec(`INSERT INTO classifications (zooniverse_id, subject_id, answer, reducer)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(zooniverse_id) DO UPDATE SET
            answer=excluded.answer,
            reducer=excluded.reducer,
            updated_at=CURRENT_TIMESTAMP;`,
		rec.ZooniverseID, rec.SubjectID, rec.Answer, rec.Reducer)
	return err
}

// ClassificationsForSubject returns the stored reductions for a subject.
func (s *Store) ClassificationsForSubject(subjectID int64) ([]ClassificationRecord, error) {
	rows, err := s.DB.Query(`SELECT id, zooniverse_id, subject_id, answer, reducer
        FROM classifications WHERE subject_id=? ORDER BY id;`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ClassificationRecord
	for rows.Next() {
		var rec ClassificationRecord
		var answer, reducer sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ZooniverseID, &rec.SubjectID, &answer, &reducer); err != nil {
			return nil, err
		}
		if answer.Valid {
			rec.Answer = answer.String
		}
		if reducer.Valid {
			rec.Reducer = reducer.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ClassificationByZooniverseID fetches a single reduction.
func (s *Store) ClassificationByZooniverseID(zooniverseID int64) (ClassificationRecord, error) {
	var rec ClassificationRecord
	var answer, reducer sql.NullString
	err := s.DB.QueryRow(`SELECT id, zooniverse_id, subject_id, answer, reducer
        FROM classifications WHERE zooniverse_id=?;`, zooniverseID).
		Scan(&rec.ID, &rec.ZooniverseID, &rec.SubjectID, &answer, &reducer)
	if errors.Is(err, sql.ErrNoRows) {
		return ClassificationRecord{}, ErrNotFound
	}
	if err != nil {
		return ClassificationRecord{}, err
	}
	if answer.Valid {
		rec.Answer = answer.String
	}
	if reducer.Valid {
		rec.Reducer = reducer.String
	}
	return rec, nil
}
