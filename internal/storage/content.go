package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// Content kinds stored in subjects.content_kind.
const (
	KindSonification = "sonification"
	KindStamp        = "stamp"
)

// ContentRef identifies the content a subject represents. Each content
// kind (sonification, stamp) has its own table and its own implementation.
type ContentRef interface {
	Kind() string
	ContentID() int64
}

// SonificationRef points at a row in the sonifications table.
type SonificationRef int64

func (r SonificationRef) Kind() string     { return KindSonification }
func (r SonificationRef) ContentID() int64 { return int64(r) }

// StampRef points at a row in the stamps table.
type StampRef int64

func (r StampRef) Kind() string     { return KindStamp }
func (r StampRef) ContentID() int64 { return int64(r) }

// RefFor reconstructs a ContentRef from its persisted kind and id.
func RefFor(kind string, id int64) (ContentRef, error) {
	switch kind {
	case KindSonification:
		return SonificationRef(id), nil
	case KindStamp:
		return StampRef(id), nil
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
}

func contentTable(kind string) (string, error) {
	switch kind {
	case KindSonification:
		return "sonifications", nil
	case KindStamp:
		return "stamps", nil
	default:
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
}

// ContentRecord captures one sonification or stamp row.
type ContentRecord struct {
	ID         int64
	Name       string
	SourcePath string
	Confidence *float64
}

// AddContent inserts a content row if its name is new and returns a ref to
// the stored row either way.
func (s *Store) AddContent(kind, name, sourcePath string) (ContentRef, error) {
	table, err := contentTable(kind)
	if err != nil {
		return nil, err
	}
	_, err = s.DB.Exec(
		fmt.Sprintf(`INSERT INTO %s (name, source_path) VALUES (?, ?) ON CONFLICT(name) DO NOTHING;`, table),
		name, sourcePath)
	if err != nil {
		return nil, err
	}
	rec, err := s.ContentByName(kind, name)
	if err != nil {
		return nil, err
	}
	return RefFor(kind, rec.ID)
}

// ContentByName looks up a content row by its unique name.
func (s *Store) ContentByName(kind, name string) (ContentRecord, error) {
	table, err := contentTable(kind)
	if err != nil {
		return ContentRecord{}, err
	}
	var rec ContentRecord
	var source sql.NullString
	var conf sql.NullFloat64
	err = s.DB.QueryRow(
		fmt.Sprintf(`SELECT id, name, source_path, machine_confidence FROM %s WHERE name=?;`, table),
		name).Scan(&rec.ID, &rec.Name, &source, &conf)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentRecord{}, ErrNotFound
	}
	if err != nil {
		return ContentRecord{}, err
	}
	if source.Valid {
		rec.SourcePath = source.String
	}
	if conf.Valid {
		c := conf.Float64
		rec.Confidence = &c
	}
	return rec, nil
}

// SetMachineConfidence records the machine score for a content row.
func (s *Store) SetMachineConfidence(ref ContentRef, confidence float64) error {
	table, err := contentTable(ref.Kind())
	if err != nil {
		return err
	}
	res, err := s.DB.Exec(
		fmt.Sprintf(`UPDATE %s SET machine_confidence=? WHERE id=?;`, table),
		confidence, ref.ContentID())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
