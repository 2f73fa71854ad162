// Package history records every run and its verdicts in SQLite so outcomes
// can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/snippetcheck/internal/filelock"
	"github.com/harrison/snippetcheck/internal/models"
)

// DefaultDBPath is the history database location relative to the working directory.
var DefaultDBPath = filepath.Join(".snippetcheck", "history.db")

// RunRecord is one stored run summary.
type RunRecord struct {
	ID         int64
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Total      int
	Passed     int
	Failed     int
	Incomplete int
	Cancelled  int
	Catalog    string // Catalog paths the run loaded, comma separated
}

// VerdictRecord is one stored verdict.
type VerdictRecord struct {
	RunID     string
	SnippetID string
	Topic     string
	Index     int
	Outcome   models.Outcome
	Passed    bool
	Duration  time.Duration
	Error     string
	Detail    string
	StartedAt time.Time // Start of the run the verdict belongs to
}

// SnippetStats aggregates one snippet's outcomes across stored runs.
type SnippetStats struct {
	SnippetID   string
	Runs        int
	Passed      int
	LastOutcome models.Outcome
}

// PassRate returns the share of stored runs the snippet passed, 0 when it never ran.
func (s SnippetStats) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Runs)
}

// Store manages the SQLite run history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath and applies
// pending migrations. ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	var store *Store
	err := filelock.WithLock(dbPath, func() error {
		var err error
		store, err = openAndInitStore(dbPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores rep and all of its verdicts in one transaction.
func (s *Store) RecordRun(ctx context.Context, rep models.Report, startedAt time.Time, catalog string) (*RunRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec := &RunRecord{
		RunID:      rep.RunID,
		StartedAt:  startedAt.UTC(),
		Duration:   rep.Duration,
		Total:      rep.TotalCount,
		Passed:     rep.PassedCount,
		Failed:     rep.FailedCount,
		Incomplete: rep.IncompleteCount,
		Cancelled:  rep.CancelledCount,
		Catalog:    catalog,
	}

	result, err := tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, started_at, duration_ms, total, passed, failed, incomplete, cancelled, catalog)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.StartedAt, rec.Duration.Milliseconds(),
		rec.Total, rec.Passed, rec.Failed, rec.Incomplete, rec.Cancelled, rec.Catalog)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if rec.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO verdicts
		(run_id, snippet_id, topic, snippet_index, outcome, passed, duration_ms, error, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare verdict insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range rep.Verdicts() {
		if _, err := stmt.ExecContext(ctx, rep.RunID, v.SnippetID, v.Topic, v.Index,
			string(v.Outcome), v.Passed, v.Duration.Milliseconds(), v.Error, v.Detail); err != nil {
			return nil, fmt.Errorf("insert verdict %s: %w", v.SnippetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT id, run_id, started_at, duration_ms, total, passed, failed, incomplete, cancelled, catalog
		FROM runs ORDER BY started_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.StartedAt, &durationMs,
			&rec.Total, &rec.Passed, &rec.Failed, &rec.Incomplete, &rec.Cancelled, &rec.Catalog); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// GetRunVerdicts returns one run's verdicts in catalog order.
func (s *Store) GetRunVerdicts(ctx context.Context, runID string) ([]*VerdictRecord, error) {
	return s.queryVerdicts(ctx, `WHERE v.run_id = ? ORDER BY v.snippet_index, v.id`, runID)
}

// SnippetHistory returns one snippet's verdicts, most recent run first.
// A non-positive limit returns every stored verdict.
func (s *Store) SnippetHistory(ctx context.Context, snippetID string, limit int) ([]*VerdictRecord, error) {
	clause := `WHERE v.snippet_id = ? ORDER BY r.started_at DESC, v.id DESC`
	args := []interface{}{snippetID}
	if limit > 0 {
		clause += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryVerdicts(ctx, clause, args...)
}

func (s *Store) queryVerdicts(ctx context.Context, clause string, args ...interface{}) ([]*VerdictRecord, error) {
	query := `SELECT v.run_id, v.snippet_id, v.topic, v.snippet_index, v.outcome, v.passed,
			v.duration_ms, v.error, v.detail, r.started_at
		FROM verdicts v JOIN runs r ON r.run_id = v.run_id ` + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []*VerdictRecord
	for rows.Next() {
		rec := &VerdictRecord{}
		var outcome string
		var durationMs int64
		var errText, detail sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.SnippetID, &rec.Topic, &rec.Index, &outcome, &rec.Passed,
			&durationMs, &errText, &detail, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}
		rec.Outcome = models.Outcome(outcome)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if errText.Valid {
			rec.Error = errText.String
		}
		if detail.Valid {
			rec.Detail = detail.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdict rows: %w", err)
	}
	return out, nil
}

// GetSnippetStats aggregates outcomes per snippet, least reliable first.
func (s *Store) GetSnippetStats(ctx context.Context, limit int) ([]SnippetStats, error) {
	query := `
		SELECT
			v.snippet_id,
			COUNT(*) AS runs,
			SUM(CASE WHEN v.passed THEN 1 ELSE 0 END) AS passed,
			(SELECT v2.outcome FROM verdicts v2 JOIN runs r2 ON r2.run_id = v2.run_id
				WHERE v2.snippet_id = v.snippet_id
				ORDER BY r2.started_at DESC, v2.id DESC LIMIT 1) AS last_outcome
		FROM verdicts v
		GROUP BY v.snippet_id
		ORDER BY CAST(SUM(CASE WHEN v.passed THEN 1 ELSE 0 END) AS REAL) / COUNT(*) ASC, v.snippet_id ASC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snippet stats: %w", err)
	}
	defer rows.Close()

	var stats []SnippetStats
	for rows.Next() {
		var st SnippetStats
		var last string
		if err := rows.Scan(&st.SnippetID, &st.Runs, &st.Passed, &last); err != nil {
			return nil, fmt.Errorf("scan snippet stats row: %w", err)
		}
		st.LastOutcome = models.Outcome(last)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snippet stats rows: %w", err)
	}
	return stats, nil
}

// CleanupOldRuns removes runs started more than keepDays ago along with their
// verdicts. Zero or negative keepDays keeps everything. Returns the number of
// deleted runs.
func (s *Store) CleanupOldRuns(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM verdicts WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup old verdicts: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return deleted, nil
}
