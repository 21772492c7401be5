package state

import "io"

// RunStore handles run persistence.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	FinishRun(id string, status RunStatus, cycles int, errMsg string) error
	ListRuns(status *RunStatus, limit int) ([]Run, error)
}

// CycleStore handles per-cycle persistence.
type CycleStore interface {
	RecordCycle(c *CycleRecord) error
	ListCycles(runID string) ([]CycleRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore is everything the CLI needs from the history database.
type HistoryStore interface {
	io.Closer
	Migrator
	RunStore
	CycleStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ CycleStore   = (*DB)(nil)
)
