// Package history records training runs in a local SQLite database: one row
// per run and one per epoch, with checkpoint events marked. The ledger is a
// durable audit trail; training proceeds even if recording fails.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adalundhe/roomrank/core/model"
)

// ErrLedgerClosed indicates use after Close.
var ErrLedgerClosed = errors.New("history: ledger is closed")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP,
	status        TEXT NOT NULL DEFAULT 'running',
	learning_rate REAL NOT NULL,
	batch_size    INTEGER NOT NULL,
	max_epochs    INTEGER NOT NULL,
	patience      INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	best_val_mse  REAL
);

CREATE TABLE IF NOT EXISTS epochs (
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	epoch       INTEGER NOT NULL,
	train_mse   REAL NOT NULL,
	val_mse     REAL NOT NULL,
	lr          REAL NOT NULL,
	improved    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, epoch)
);
`

// Ledger is the SQLite-backed run history. Safe for concurrent use; SQLite
// access is serialized through a single connection.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// Open creates or opens the ledger database, creating parent directories
// and the schema as needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// BeginRun inserts the run row. Implements model.RunRecorder.
func (l *Ledger) BeginRun(runID string, cfg model.TrainerConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLedgerClosed
	}

	_, err := l.db.Exec(
		`INSERT INTO runs (run_id, started_at, learning_rate, batch_size, max_epochs, patience, seed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC(), cfg.LearningRate, cfg.BatchSize, cfg.MaxEpochs, cfg.Patience, cfg.Seed,
	)
	if err != nil {
		return fmt.Errorf("history: begin run: %w", err)
	}
	return nil
}

// RecordEpoch inserts one epoch row. Implements model.RunRecorder.
func (l *Ledger) RecordEpoch(runID string, stats model.EpochStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLedgerClosed
	}

	improved := 0
	if stats.Improved {
		improved = 1
	}
	_, err := l.db.Exec(
		`INSERT INTO epochs (run_id, epoch, train_mse, val_mse, lr, improved, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, stats.Epoch, stats.TrainMSE, stats.ValMSE, stats.LR, improved,
		stats.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: record epoch: %w", err)
	}
	return nil
}

// FinishRun closes out the run row. Implements model.RunRecorder.
func (l *Ledger) FinishRun(runID string, bestValMSE float64, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLedgerClosed
	}

	_, err := l.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, best_val_mse = ? WHERE run_id = ?`,
		time.Now().UTC(), status, bestValMSE, runID,
	)
	if err != nil {
		return fmt.Errorf("history: finish run: %w", err)
	}
	return nil
}

// CheckpointHistory returns the validation MSE of every improving epoch of
// a run, in epoch order. Since checkpoints are written only on improvement,
// this sequence is strictly decreasing for a healthy run.
func (l *Ledger) CheckpointHistory(runID string) ([]float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}

	rows, err := l.db.Query(
		`SELECT val_mse FROM epochs WHERE run_id = ? AND improved = 1 ORDER BY epoch`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query checkpoints: %w", err)
	}
	defer rows.Close()

	var history []float64
	for rows.Next() {
		var mse float64
		if err := rows.Scan(&mse); err != nil {
			return nil, fmt.Errorf("history: scan checkpoint row: %w", err)
		}
		history = append(history, mse)
	}
	return history, rows.Err()
}

// Runs lists run ids with status, newest first.
func (l *Ledger) Runs(limit int) ([]RunSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(
		`SELECT run_id, started_at, status, COALESCE(best_val_mse, 0) FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.Status, &r.BestValMSE); err != nil {
			return nil, fmt.Errorf("history: scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	Status     string
	BestValMSE float64
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
