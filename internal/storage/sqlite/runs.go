package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/pkg/logger"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("run not found")

// timeLayout has a fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunRecord represents one persisted mission solve
type RunRecord struct {
	ID            string                  `json:"id"`
	SessionID     string                  `json:"session_id,omitempty"`
	Aircraft      string                  `json:"aircraft"`
	Status        string                  `json:"status"`
	Error         string                  `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	Duration      time.Duration           `json:"duration_ns"`
	TotalRange    float64                 `json:"total_range"`
	FuelBurnt     float64                 `json:"fuel_burnt"`
	ReserveFuel   float64                 `json:"reserve_fuel"`
	SolverCalls   int                     `json:"solver_calls"` // external solver launches
	Segments      []mission.SegmentResult `json:"segments,omitempty"`
	Report        string                  `json:"-"`
	SegmentsCount int                     `json:"segment_count"`
}

// RunStorage is a SQLite-based store for mission solve history
type RunStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRunStorage opens (creating if needed) the run database at dbPath
func NewRunStorage(dbPath string, log *logger.Logger) (*RunStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create tables if they don't exist
	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &RunStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *RunStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			aircraft TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			total_range REAL NOT NULL DEFAULT 0,
			fuel_burnt REAL NOT NULL DEFAULT 0,
			reserve_fuel REAL NOT NULL DEFAULT 0,
			solver_calls INTEGER NOT NULL DEFAULT 0,
			report TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS run_segments (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			find_range INTEGER NOT NULL DEFAULT 0,
			weight_initial REAL NOT NULL,
			weight_final REAL NOT NULL,
			range_nm REAL NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create run_segments table: %w", err)
	}

	// Create indexes
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`); err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_session_id ON runs(session_id)`); err != nil {
		return fmt.Errorf("failed to create session_id index: %w", err)
	}

	return nil
}

// SaveRun stores a run and its segment results in one transaction
func (s *RunStorage) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs
		(id, session_id, aircraft, status, error, created_at, duration_ms, total_range, fuel_burnt, reserve_fuel, solver_calls, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.SessionID,
		run.Aircraft,
		run.Status,
		run.Error,
		run.CreatedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		run.TotalRange,
		run.FuelBurnt,
		run.ReserveFuel,
		run.SolverCalls,
		run.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_segments
		(run_id, idx, title, kind, find_range, weight_initial, weight_final, range_nm, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range run.Segments {
		data, err := json.Marshal(seg)
		if err != nil {
			return fmt.Errorf("failed to marshal segment %d: %w", seg.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, seg.Index, seg.Title, string(seg.Kind), boolToInt(seg.FindRange), seg.Wi, seg.Wn, seg.Range, string(data)); err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", seg.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("Stored run",
		logger.String("run_id", run.ID),
		logger.String("status", run.Status),
		logger.Int("segments", len(run.Segments)))
	return nil
}

const runColumns = `id, session_id, aircraft, status, error, created_at, duration_ms, total_range, fuel_burnt, reserve_fuel, solver_calls`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, extra ...any) (*RunRecord, error) {
	var (
		run       RunRecord
		sessionID sql.NullString
		errText   sql.NullString
		createdAt string
		duration  int64
	)
	dest := append([]any{
		&run.ID, &sessionID, &run.Aircraft, &run.Status, &errText, &createdAt, &duration,
		&run.TotalRange, &run.FuelBurnt, &run.ReserveFuel, &run.SolverCalls,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	run.SessionID = sessionID.String
	run.Error = errText.String
	run.Duration = time.Duration(duration) * time.Millisecond

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	run.CreatedAt = t
	return &run, nil
}

// GetRun returns a run with its segments and report
func (s *RunStorage) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var report sql.NullString
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`, report FROM runs WHERE id = ?`, id), &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Report = report.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM run_segments WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		var seg mission.SegmentResult
		if err := json.Unmarshal([]byte(data), &seg); err != nil {
			return nil, fmt.Errorf("failed to decode segment: %w", err)
		}
		run.Segments = append(run.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segments: %w", err)
	}
	run.SegmentsCount = len(run.Segments)

	return run, nil
}

// ListRuns returns run summaries, newest first, plus the total count
func (s *RunStorage) ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`, (SELECT COUNT(*) FROM run_segments rs WHERE rs.run_id = runs.id)
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*RunRecord, 0, limit)
	for rows.Next() {
		var count int
		run, err := scanRun(rows, &count)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		run.SegmentsCount = count
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, total, nil
}

// DeleteRun removes a run and its segments
func (s *RunStorage) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
