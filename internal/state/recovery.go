package state

import (
	"os"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
)

// InterruptedRun is a run left in the running state by a process that no
// longer exists.
type InterruptedRun struct {
	RunID     string
	StartedAt time.Time
	Cycles    int
	PID       int
}

// RecoveryManager handles detection and cleanup of interrupted runs.
type RecoveryManager struct {
	db *DB
	// alive reports whether a process exists; replaced in tests.
	alive func(pid int) bool
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db, alive: isProcessAlive}
}

// CheckForInterrupted lists running runs whose process has gone away. A
// run owned by the calling process is never reported.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedRun, error) {
	status := RunRunning
	runs, err := rm.db.ListRuns(&status, 0)
	if err != nil {
		return nil, errors.Wrap(err, "list running runs")
	}

	var out []InterruptedRun
	for _, r := range runs {
		if r.PID == os.Getpid() || rm.alive(r.PID) {
			continue
		}
		out = append(out, InterruptedRun{
			RunID:     r.ID,
			StartedAt: r.StartedAt,
			Cycles:    r.Cycles,
			PID:       r.PID,
		})
	}
	return out, nil
}

// Clean marks every interrupted run as such. Returns how many were marked.
func (rm *RecoveryManager) Clean() (int, error) {
	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}
	for _, r := range interrupted {
		if err := rm.db.FinishRun(r.RunID, RunInterrupted, r.Cycles, "process exited before the run finished"); err != nil {
			return 0, errors.Wrapf(err, "mark run %s interrupted", r.RunID)
		}
	}
	return len(interrupted), nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
