package state

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunAccepted    RunStatus = "accepted"
	RunRejected    RunStatus = "rejected"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one invocation of the correction loop.
type Run struct {
	ID            string     `json:"id"`
	Command       string     `json:"command"`
	DocumentPath  string     `json:"document_path"`
	QuestionsPath string     `json:"questions_path"`
	MaxAttempts   int        `json:"max_attempts"`
	Cycles        int        `json:"cycles"`
	PID           int        `json:"pid"`
	Status        RunStatus  `json:"status"`
	Error         string     `json:"error"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
}

// CycleRecord is the persisted form of one validation cycle.
type CycleRecord struct {
	RunID             string        `json:"run_id"`
	Attempt           int           `json:"attempt"`
	DocumentPath      string        `json:"document_path"`
	Document          string        `json:"document"`
	SyntaxOK          bool          `json:"syntax_ok"`
	Passed            int           `json:"passed"`
	Total             int           `json:"total"`
	Accepted          bool          `json:"accepted"`
	ConsistencyIssues []string      `json:"consistency_issues"`
	Report            string        `json:"report"`
	Duration          time.Duration `json:"duration"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Run CRUD operations

// CreateRun creates a new run. A zero StartedAt is set to now and an
// empty Status to running.
func (db *DB) CreateRun(r *Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, command, document_path, questions_path, max_attempts, cycles, pid, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Command, r.DocumentPath, r.QuestionsPath, r.MaxAttempts, r.Cycles, r.PID,
		string(r.Status), r.Error, formatTime(r.StartedAt))
	if err != nil {
		return errors.Wrap(err, "create run")
	}
	return nil
}

const runColumns = `id, command, COALESCE(document_path, ''), COALESCE(questions_path, ''),
	max_attempts, cycles, COALESCE(pid, 0), status, COALESCE(error, ''), started_at, finished_at`

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := scan(&r.ID, &r.Command, &r.DocumentPath, &r.QuestionsPath, &r.MaxAttempts,
		&r.Cycles, &r.PID, &r.Status, &r.Error, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run by ID. It returns nil, nil when there is none.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get run")
	}
	return r, nil
}

// FinishRun records the terminal status of a run.
func (db *DB) FinishRun(id string, status RunStatus, cycles int, errMsg string) error {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, cycles = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), cycles, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return errors.Wrap(err, "finish run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf("run %s not found", id)
	}
	return nil
}

// DeleteRun deletes a run and its cycles.
func (db *DB) DeleteRun(id string) error {
	if _, err := db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "delete run")
	}
	return nil
}

// ListRuns lists runs, newest first, optionally filtered by status. A
// limit of zero or less returns every run.
func (db *DB) ListRuns(status *RunStatus, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Cycle operations

// RecordCycle stores one cycle and bumps the run's cycle count.
func (db *DB) RecordCycle(c *CycleRecord) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	issues, err := json.Marshal(c.ConsistencyIssues)
	if err != nil {
		return errors.Wrap(err, "marshal consistency issues")
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO cycles (run_id, attempt, document_path, document, syntax_ok, passed, total,
				accepted, consistency_issues, report, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.RunID, c.Attempt, c.DocumentPath, c.Document, c.SyntaxOK, c.Passed, c.Total,
			c.Accepted, string(issues), c.Report, c.Duration.Milliseconds(), formatTime(c.CreatedAt))
		if err != nil {
			return errors.Wrapf(err, "record cycle %d of run %s", c.Attempt, c.RunID)
		}
		if _, err := tx.Exec(`UPDATE runs SET cycles = cycles + 1 WHERE id = ?`, c.RunID); err != nil {
			return errors.Wrap(err, "update run cycle count")
		}
		return nil
	})
}

// ListCycles returns the cycles of a run in attempt order.
func (db *DB) ListCycles(runID string) ([]CycleRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, attempt, COALESCE(document_path, ''), document, syntax_ok, passed, total,
			accepted, COALESCE(consistency_issues, '[]'), report, duration_ms, created_at
		FROM cycles WHERE run_id = ? ORDER BY attempt
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list cycles")
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var c CycleRecord
		var issues, createdAt string
		var durationMS int64
		if err := rows.Scan(&c.RunID, &c.Attempt, &c.DocumentPath, &c.Document, &c.SyntaxOK,
			&c.Passed, &c.Total, &c.Accepted, &issues, &c.Report, &durationMS, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan cycle")
		}
		if err := json.Unmarshal([]byte(issues), &c.ConsistencyIssues); err != nil {
			return nil, errors.Wrap(err, "decode consistency issues")
		}
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.CreatedAt, _ = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
