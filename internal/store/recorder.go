package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/spikenet/internal/trace"
	"github.com/nvandessel/spikenet/internal/world"
)

// RunInfo describes a run at the time recording starts.
type RunInfo struct {
	Seed   uint64
	Config string
}

// Recorder is a trace.Sink that stores the network layout, every spike and
// the final synaptic strengths of one run.
type Recorder struct {
	db    *sql.DB
	store *world.Store
	runID int64
	ticks uint64
}

// Open opens (or creates) the SQLite database at path and initializes its schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// NewRecorder opens the database at path, registers a new run and writes the
// neurons and synapses of s. The store must be frozen.
func NewRecorder(ctx context.Context, path string, s *world.Store, info RunInfo) (*Recorder, error) {
	if !s.Frozen() {
		return nil, fmt.Errorf("recorder: store must be frozen")
	}
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{db: db, store: s}
	if err := r.writeLayout(ctx, info); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) writeLayout(ctx context.Context, info RunInfo) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, seed, neurons, synapses, config) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), strconv.FormatUint(info.Seed, 10), r.store.NumNeurons(), r.store.NumSynapses(), nullString(info.Config))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if r.runID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}

	neuronStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO neurons (run_id, id, model, column_index, layer) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare neuron insert: %w", err)
	}
	defer neuronStmt.Close()

	for i := 0; i < r.store.NumNeurons(); i++ {
		id := world.NeuronID(i)
		var column sql.NullInt64
		var layer sql.NullString
		if c, ok := r.store.Coordinates(id); ok {
			column = sql.NullInt64{Int64: int64(c.Column), Valid: true}
			layer = nullString(c.Layer.String())
		}
		if _, err := neuronStmt.ExecContext(ctx, r.runID, i, r.store.Model(id).String(), column, layer); err != nil {
			return fmt.Errorf("failed to insert neuron %d: %w", i, err)
		}
	}

	synStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO synapses (run_id, id, pre, post, delay, initial_strength) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare synapse insert: %w", err)
	}
	defer synStmt.Close()

	for i := 0; i < r.store.NumSynapses(); i++ {
		syn, _ := r.store.Synapse(world.SynapseID(i))
		if _, err := synStmt.ExecContext(ctx, r.runID, i, int(syn.Pre), int(syn.Post), int64(syn.Delay), syn.Strength); err != nil {
			return fmt.Errorf("failed to insert synapse %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() int64 {
	return r.runID
}

// WriteTick stores the neurons that fired in s inside one transaction.
func (r *Recorder) WriteTick(s trace.Sample) error {
	r.ticks++
	if s.SpikeCount() == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spikes (run_id, tick, neuron) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare spike insert: %w", err)
	}
	defer stmt.Close()

	for i, fired := range s.Spikes {
		if !fired {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.runID, int64(s.Tick), i); err != nil {
			return fmt.Errorf("failed to insert spike of neuron %d at tick %d: %w", i, s.Tick, err)
		}
	}
	return tx.Commit()
}

// Close writes the final synaptic strengths, marks the run finished and
// closes the database.
func (r *Recorder) Close() error {
	err := r.finish(context.Background())
	return errors.Join(err, r.db.Close())
}

func (r *Recorder) finish(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE synapses SET final_strength = ? WHERE run_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare strength update: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < r.store.NumSynapses(); i++ {
		syn, _ := r.store.Synapse(world.SynapseID(i))
		if _, err := stmt.ExecContext(ctx, syn.Strength, r.runID, i); err != nil {
			return fmt.Errorf("failed to update synapse %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ticks = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), int64(r.ticks), r.runID); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return tx.Commit()
}

// SpikeCounts returns the number of recorded spikes per neuron for a run.
// Neurons that never fired are absent from the map.
func SpikeCounts(ctx context.Context, db *sql.DB, runID int64) (map[world.NeuronID]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT neuron, COUNT(*) FROM spikes WHERE run_id = ? GROUP BY neuron`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	counts := make(map[world.NeuronID]int)
	for rows.Next() {
		var neuron, n int
		if err := rows.Scan(&neuron, &n); err != nil {
			return nil, fmt.Errorf("failed to scan spike count: %w", err)
		}
		counts[world.NeuronID(neuron)] = n
	}
	return counts, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
