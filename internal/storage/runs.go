package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SyncRunRecord captures one mirror-sync or rebalancing run for audit.
type SyncRunRecord struct {
	ID         string
	Kind       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int
	Total      int
	Error      string
}

// StartSyncRun records the beginning of a run and returns its id.
func (s *Store) StartSyncRun(kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.Exec(`INSERT INTO sync_runs (id, kind) VALUES (?, ?);`, id, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishSyncRun finalizes a run with its counters and outcome.
func (s *Store) FinishSyncRun(id string, processed, total int, errMsg string) error {
	_, err := s.DB.Exec(`UPDATE sync_runs SET finished_at=CURRENT_TIMESTAMP, processed=?, total=?, error_message=? WHERE id=?;`,
		processed, total, errMsg, id)
	return err
}

// RecentSyncRuns returns the latest runs up to limit.
func (s *Store) RecentSyncRuns(limit int) ([]SyncRunRecord, error) {
	rows, err := s.DB.Query(`SELECT id, kind, started_at, finished_at, processed, total, error_message
        FROM sync_runs ORDER BY started_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SyncRunRecord
	for rows.Next() {
		var rec SyncRunRecord
		var finished sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.StartedAt, &finished, &rec.Processed, &rec.Total, &errMsg); err != nil {
			return nil, err
		}
		if finished.Valid {
			rec.FinishedAt = &finished.Time
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
