// Package journal records the accounting of every tick to a SQL database so
// runs can be compared after the fact.
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/driver"
)

const writeTimeout = 5 * time.Second

// Journal buffers tick records and writes them in batches, one transaction
// per batch. A run row ties the ticks of one session together.
type Journal struct {
	db    *DB
	log   *zap.Logger
	runID xid.ID
	batch int

	mu       sync.Mutex
	pending  []driver.TickRecord
	advanced uint64
	started  bool
}

func New(db *DB, batchSize int, log *zap.Logger) *Journal {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Journal{
		db:      db,
		log:     log,
		runID:   xid.New(),
		batch:   batchSize,
		pending: make([]driver.TickRecord, 0, batchSize),
	}
}

func (j *Journal) RunID() xid.ID { return j.runID }

// Begin writes the run row. It must be called before the first Record.
func (j *Journal) Begin(ctx context.Context, scene string, ticksPerSecond uint32) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.db.SQL.ExecContext(ctx, j.db.rebind(
		`INSERT INTO journal_runs (run_id, scene, ticks_per_second, started_at) VALUES (?, ?, ?, ?)`),
		j.runID.String(), scene, int64(ticksPerSecond), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	j.started = true
	j.log.Info("journal run started", zap.String("run_id", j.runID.String()), zap.String("scene", scene))
	return nil
}

// Record queues rec and flushes once a batch is full.
func (j *Journal) Record(rec driver.TickRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pending = append(j.pending, rec)
	j.advanced++
	if len(j.pending) < j.batch {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return j.flush(ctx)
}

// Flush writes every queued record.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush(ctx)
}

func (j *Journal) flush(ctx context.Context) error {
	if len(j.pending) == 0 {
		return nil
	}
	if !j.started {
		return fmt.Errorf("journal flush: run %s not started", j.runID)
	}

	tx, err := j.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, j.db.rebind(
		`INSERT INTO journal_ticks
		 (run_id, seq, props, states, materialized, bound, unbound, misses, collected, expired, released, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("journal prepare: %w", err)
	}
	defer stmt.Close()

	run := j.runID.String()
	for _, r := range j.pending {
		if _, err := stmt.ExecContext(ctx,
			run, int64(r.Seq), r.Props, r.States, r.Materialized, r.Bound, r.Unbound,
			r.Misses, r.Collected, r.Expired, r.Released, r.Duration.Microseconds(),
		); err != nil {
			return fmt.Errorf("journal insert tick %d: %w", r.Seq, err)
		}
	}
	if _, err := tx.ExecContext(ctx, j.db.rebind(
		`UPDATE journal_runs SET advanced = ? WHERE run_id = ?`), int64(j.advanced), run,
	); err != nil {
		return fmt.Errorf("journal update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}

	j.log.Debug("journal flushed", zap.Int("ticks", len(j.pending)))
	j.pending = j.pending[:0]
	return nil
}

// End flushes what is left and stamps the run as finished.
func (j *Journal) End(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.started {
		return nil
	}
	if err := j.flush(ctx); err != nil {
		return err
	}
	if _, err := j.db.SQL.ExecContext(ctx, j.db.rebind(
		`UPDATE journal_runs SET finished_at = ? WHERE run_id = ?`), time.Now().UTC(), j.runID.String(),
	); err != nil {
		return fmt.Errorf("journal end: %w", err)
	}
	j.started = false
	j.log.Info("journal run finished", zap.String("run_id", j.runID.String()), zap.Uint64("advanced", j.advanced))
	return nil
}

// Pending is the number of records not yet written.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// RunSummary is the stored view of one run.
type RunSummary struct {
	RunID    string
	Scene    string
	Advanced int64
	Ticks    int64
	Released int64
	Finished bool
}

// Summary reads back what was stored for run.
func (j *Journal) Summary(ctx context.Context, run xid.ID) (RunSummary, error) {
	s := RunSummary{RunID: run.String()}
	var finished any
	if err := j.db.SQL.QueryRowContext(ctx, j.db.rebind(
		`SELECT scene, advanced, finished_at FROM journal_runs WHERE run_id = ?`), s.RunID,
	).Scan(&s.Scene, &s.Advanced, &finished); err != nil {
		return s, fmt.Errorf("journal summary: %w", err)
	}
	s.Finished = finished != nil

	if err := j.db.SQL.QueryRowContext(ctx, j.db.rebind(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN released THEN 1 ELSE 0 END), 0)
		 FROM journal_ticks WHERE run_id = ?`), s.RunID,
	).Scan(&s.Ticks, &s.Released); err != nil {
		return s, fmt.Errorf("journal summary ticks: %w", err)
	}
	return s, nil
}
