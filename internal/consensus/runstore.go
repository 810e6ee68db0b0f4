package consensus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses recorded in the registry.
const (
	RunStatusRunning   = "running"
	RunStatusDone      = "done"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Run is the registry record of one consensus run.
type Run struct {
	RunID               string          `json:"run_id"`
	Status              string          `json:"status"`
	IterationsRequested int             `json:"iterations_requested"`
	IterationsDone      int             `json:"iterations_done"`
	SampleFraction      float64         `json:"sample_fraction"`
	Seed                int64           `json:"seed"`
	CellCount           int             `json:"cell_count"`
	ClusterCount        int             `json:"cluster_count"`
	ParamsJSON          json.RawMessage `json:"params_json,omitempty"`
	Error               string          `json:"error,omitempty"`
	CreatedAt           int64           `json:"created_at"`
	UpdatedAt           int64           `json:"updated_at"`
}

// RunStore persists consensus run metadata in SQLite.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	now := time.Now().UnixNano()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO consensus_runs (
				run_id, status, iterations_requested, iterations_done,
				sample_fraction, seed, cell_count, cluster_count,
				params_json, error, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Status, run.IterationsRequested, run.IterationsDone,
			run.SampleFraction, run.Seed, run.CellCount, run.ClusterCount,
			paramsStr, run.Error, run.CreatedAt, run.UpdatedAt,
		)
		return err
	})
}

// UpdateProgress records iteration progress for a running run.
func (s *RunStore) UpdateProgress(runID string, iterationsDone int) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			UPDATE consensus_runs
			SET iterations_done = ?, updated_at = ?
			WHERE run_id = ?`,
			iterationsDone, time.Now().UnixNano(), runID)
		return err
	})
}

// Finish records the terminal status of a run.
func (s *RunStore) Finish(runID, status string, iterationsDone, clusterCount int, runErr string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE consensus_runs
			SET status = ?, iterations_done = ?, cluster_count = ?, error = ?, updated_at = ?
			WHERE run_id = ?`,
			status, iterationsDone, clusterCount, runErr, time.Now().UnixNano(), runID)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, status, iterations_requested, iterations_done,
		       sample_fraction, seed, cell_count, cluster_count,
		       params_json, error, created_at, updated_at
		FROM consensus_runs
		WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return run, err
}

// List returns runs ordered by creation time descending, optionally
// filtered by status ("" means all).
func (s *RunStore) List(status string) ([]*Run, error) {
	query := `
		SELECT run_id, status, iterations_requested, iterations_done,
		       sample_fraction, seed, cell_count, cluster_count,
		       params_json, error, created_at, updated_at
		FROM consensus_runs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var paramsStr, errStr sql.NullString
	var clusterCount sql.NullInt64
	err := row.Scan(
		&run.RunID, &run.Status, &run.IterationsRequested, &run.IterationsDone,
		&run.SampleFraction, &run.Seed, &run.CellCount, &clusterCount,
		&paramsStr, &errStr, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paramsStr.Valid {
		run.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	if errStr.Valid {
		run.Error = errStr.String
	}
	if clusterCount.Valid {
		run.ClusterCount = int(clusterCount.Int64)
	}
	return &run, nil
}

// retryOnBusy retries fn a few times when SQLite reports a locked or busy
// database, backing off linearly between attempts.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		msg := err.Error()
		if !strings.Contains(msg, "database is locked") && !strings.Contains(msg, "SQLITE_BUSY") {
			return err
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}
