package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckForInterrupted_None(t *testing.T) {
	rm := NewRecoveryManager(setupTestDB(t))
	runs, err := rm.CheckForInterrupted()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCheckForInterrupted(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateRun(&Run{ID: "dead", Command: "fix", PID: 1001}))
	require.NoError(t, db.CreateRun(&Run{ID: "alive", Command: "fix", PID: 1002}))
	require.NoError(t, db.CreateRun(&Run{ID: "self", Command: "fix", PID: os.Getpid()}))
	require.NoError(t, db.CreateRun(&Run{ID: "done", Command: "fix", PID: 1003}))
	require.NoError(t, db.FinishRun("done", RunAccepted, 1, ""))

	rm := NewRecoveryManager(db)
	rm.alive = func(pid int) bool { return pid == 1002 }

	runs, err := rm.CheckForInterrupted()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "dead", runs[0].RunID)
	assert.Equal(t, 1001, runs[0].PID)
}

func TestClean_MarksInterrupted(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateRun(&Run{ID: "dead", Command: "fix", PID: 1001}))
	require.NoError(t, db.RecordCycle(&CycleRecord{RunID: "dead", Document: "d", Report: "r"}))

	rm := NewRecoveryManager(db)
	rm.alive = func(int) bool { return false }

	n, err := rm.Clean()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := db.GetRun("dead")
	require.NoError(t, err)
	assert.Equal(t, RunInterrupted, r.Status)
	assert.Equal(t, 1, r.Cycles)
	assert.NotNil(t, r.FinishedAt)

	n, err = rm.Clean()
	require.NoError(t, err)
	assert.Zero(t, n, "already marked")
}

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, isProcessAlive(os.Getpid()))
	assert.False(t, isProcessAlive(0))
	assert.False(t, isProcessAlive(-1))
}
