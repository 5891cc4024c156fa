package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/pathutil"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements ExperimentStore on SQLite.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ ExperimentStore = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and brings its
// schema up to date. Pass MemoryPath for a throwaway store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", pathutil.RedactPath(path), err)
	}

	// SQLite works best with single writer; an in-memory database also
	// lives only as long as its one connection.
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// SaveExperiment implements ExperimentStore. An empty exp.ID gets a fresh
// UUID and a zero CreatedAt is set to now.
func (s *SQLiteStore) SaveExperiment(ctx context.Context, exp Experiment, runs []RunRecord, series [][]models.Snapshot) (string, error) {
	if len(runs) != len(series) {
		return "", fmt.Errorf("run records (%d) and series (%d) differ in length", len(runs), len(series))
	}
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now()
	}
	params, err := json.Marshal(exp.Params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO experiments (id, created_at, label, mode, prep, nodes, network_seed,
			outbreak, runs, weeks, topology, params, csv_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.CreatedAt.UTC().Format(timeLayout), nullString(exp.Label),
		exp.Mode, exp.PrEP, exp.Nodes, int64(exp.NetworkSeed),
		exp.OutbreakProportion, exp.Runs, exp.Weeks, exp.Topology, string(params),
		nullString(exp.CSVPath))
	if err != nil {
		return "", fmt.Errorf("failed to insert experiment: %w", err)
	}

	runStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (experiment_id, run, interaction_seed, seeded, initial_infected, eligible, covered)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare run insert: %w", err)
	}
	defer runStmt.Close()

	snapStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (experiment_id, run, week, susceptible, acute, chronic, aids, dead)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer snapStmt.Close()

	for i, r := range runs {
		if _, err := runStmt.ExecContext(ctx, exp.ID, r.Run, int64(r.InteractionSeed), boolToInt(r.Seeded),
			r.InitialInfected, r.Eligible, r.Covered); err != nil {
			return "", fmt.Errorf("failed to insert run %d: %w", r.Run, err)
		}
		for week, snap := range series[i] {
			if _, err := snapStmt.ExecContext(ctx, exp.ID, r.Run, week,
				snap.Susceptible, snap.Acute, snap.Chronic, snap.AIDS, snap.Dead); err != nil {
				return "", fmt.Errorf("failed to insert run %d week %d: %w", r.Run, week, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit experiment: %w", err)
	}
	return exp.ID, nil
}

const experimentColumns = `id, created_at, label, mode, prep, nodes, network_seed, outbreak,
	runs, weeks, topology, params, csv_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (Experiment, error) {
	var (
		exp       Experiment
		createdAt string
		label     sql.NullString
		seed      int64
		params    sql.NullString
		csvPath   sql.NullString
	)
	if err := row.Scan(&exp.ID, &createdAt, &label, &exp.Mode, &exp.PrEP, &exp.Nodes, &seed,
		&exp.OutbreakProportion, &exp.Runs, &exp.Weeks, &exp.Topology, &params, &csvPath); err != nil {
		return Experiment{}, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment %s: bad created_at %q: %w", exp.ID, createdAt, err)
	}
	exp.CreatedAt = t
	exp.Label = label.String
	exp.NetworkSeed = uint64(seed)
	exp.CSVPath = csvPath.String
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &exp.Params); err != nil {
			return Experiment{}, fmt.Errorf("experiment %s: bad params: %w", exp.ID, err)
		}
	}
	return exp, nil
}

// GetExperiment implements ExperimentStore.
func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id)
	exp, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return &exp, nil
}

// ListExperiments implements ExperimentStore.
func (s *SQLiteStore) ListExperiments(ctx context.Context, filter ListFilter) ([]Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, filter.Mode)
	}
	query := `SELECT ` + experimentColumns + ` FROM experiments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var out []Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

// LoadRuns implements ExperimentStore.
func (s *SQLiteStore) LoadRuns(ctx context.Context, id string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run, interaction_seed, seeded, initial_infected, eligible, covered
		FROM runs WHERE experiment_id = ? ORDER BY run`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r      RunRecord
			seed   int64
			seeded int
		)
		if err := rows.Scan(&r.Run, &seed, &seeded, &r.InitialInfected, &r.Eligible, &r.Covered); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.InteractionSeed = uint64(seed)
		r.Seeded = seeded != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadSeries implements ExperimentStore.
func (s *SQLiteStore) LoadSeries(ctx context.Context, id string) ([][]models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run, week, susceptible, acute, chronic, aids, dead
		FROM snapshots WHERE experiment_id = ? ORDER BY run, week`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	defer rows.Close()

	var (
		out     [][]models.Snapshot
		lastRun = -1
	)
	for rows.Next() {
		var (
			run, week int
			snap      models.Snapshot
		)
		if err := rows.Scan(&run, &week, &snap.Susceptible, &snap.Acute, &snap.Chronic, &snap.AIDS, &snap.Dead); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if run != lastRun {
			out = append(out, nil)
			lastRun = run
		}
		out[len(out)-1] = append(out[len(out)-1], snap)
	}
	return out, rows.Err()
}

// DeleteExperiment implements ExperimentStore.
func (s *SQLiteStore) DeleteExperiment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CopyTo writes a consistent, compacted copy of the database to path, which
// must not exist yet.
func (s *SQLiteStore) CopyTo(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("failed to copy database to %s: %w", pathutil.RedactPath(path), err)
	}
	return nil
}

// Integrity runs ValidateIntegrity on the open database.
func (s *SQLiteStore) Integrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ValidateIntegrity(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM experiments WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
