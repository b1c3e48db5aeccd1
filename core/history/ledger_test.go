package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/roomrank/core/model"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func recordRun(t *testing.T, l *Ledger, runID string, valMSEs []float64) {
	t.Helper()
	require.NoError(t, l.BeginRun(runID, model.DefaultTrainerConfig("ckpt")))

	best := valMSEs[0] + 1
	for i, mse := range valMSEs {
		improved := mse < best
		if improved {
			best = mse
		}
		require.NoError(t, l.RecordEpoch(runID, model.EpochStats{
			Epoch:    i + 1,
			TrainMSE: mse + 0.1,
			ValMSE:   mse,
			LR:       0.0005,
			Improved: improved,
			Duration: 10 * time.Millisecond,
		}))
	}
	require.NoError(t, l.FinishRun(runID, best, "completed"))
}

func TestLedger(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		openLedger(t)
	})

	t.Run("records a full run", func(t *testing.T) {
		l := openLedger(t)
		recordRun(t, l, "run-1", []float64{0.9, 0.7, 0.8, 0.5})

		runs, err := l.Runs(10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-1", runs[0].RunID)
		assert.Equal(t, "completed", runs[0].Status)
		assert.Equal(t, 0.5, runs[0].BestValMSE)
	})

	t.Run("checkpoint history is strictly decreasing", func(t *testing.T) {
		l := openLedger(t)
		recordRun(t, l, "run-1", []float64{0.9, 0.7, 0.8, 0.5, 0.6})

		history, err := l.CheckpointHistory("run-1")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.9, 0.7, 0.5}, history)
		for i := 1; i < len(history); i++ {
			assert.Less(t, history[i], history[i-1])
		}
	})

	t.Run("runs list newest first", func(t *testing.T) {
		l := openLedger(t)
		recordRun(t, l, "run-1", []float64{0.9})
		recordRun(t, l, "run-2", []float64{0.8})

		runs, err := l.Runs(10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
	})

	t.Run("limit caps the listing", func(t *testing.T) {
		l := openLedger(t)
		recordRun(t, l, "run-1", []float64{0.9})
		recordRun(t, l, "run-2", []float64{0.8})

		runs, err := l.Runs(1)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("duplicate run id is rejected", func(t *testing.T) {
		l := openLedger(t)
		cfg := model.DefaultTrainerConfig("ckpt")
		require.NoError(t, l.BeginRun("run-1", cfg))
		assert.Error(t, l.BeginRun("run-1", cfg))
	})

	t.Run("use after close", func(t *testing.T) {
		l, err := Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		require.NoError(t, l.Close())

		assert.ErrorIs(t, l.BeginRun("run-1", model.DefaultTrainerConfig("ckpt")), ErrLedgerClosed)
		_, err = l.Runs(10)
		assert.ErrorIs(t, err, ErrLedgerClosed)
		assert.NoError(t, l.Close(), "double close is safe")
	})
}

func TestLedgerIsRunRecorder(t *testing.T) {
	var _ model.RunRecorder = (*Ledger)(nil)
}
