// Package history keeps every scan's records in a sqlite database so runs
// can be listed and compared.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// ErrRunNotFound is returned when a run reference matches nothing
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded scan
type Run struct {
	ID        string        `json:"id"`
	Root      string        `json:"root"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Files     int           `json:"files"`
	Records   int           `json:"records"`
	Errors    int           `json:"errors"`
}

// Diff holds records present in only one of two runs
type Diff struct {
	From    Run            `json:"from"`
	To      Run            `json:"to"`
	Added   []asset.Record `json:"added"`
	Removed []asset.Record `json:"removed"`
}

// Store wraps the history database
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the database at path and applies migrations
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun stores a run and its records in one transaction. An empty
// run.ID is replaced by a new UUID; the stored run is returned.
func (s *Store) SaveRun(run Run, records []asset.Record) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Records = len(records)

	err := s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO runs (id, root, started_utc, duration_ms, file_count, record_count, error_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Root, run.StartedAt.Format(startedLayout), run.Duration.Milliseconds(), run.Files, run.Records, run.Errors,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		stmt, err := tx.Prepare(`INSERT INTO records (run_id, position, file, signal, width, category, appeared_in, cia) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer stmt.Close()
		for i, r := range records {
			if _, err := stmt.Exec(run.ID, i, r.SourceFile, r.Signal, r.Width.String(), string(r.Category), r.AppearedIn, r.CIA); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the newest runs first. An empty root lists every root;
// limit <= 0 means no limit.
func (s *Store) ListRuns(root string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, root, started_utc, duration_ms, file_count, record_count, error_count FROM runs`
	var args []any
	if root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY started_utc DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// startedLayout keeps every fraction digit so started_utc sorts as text
const startedLayout = "2006-01-02T15:04:05.000000000Z07:00"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedRaw string
		durationMS int64
	)
	if err := row.Scan(&run.ID, &run.Root, &startedRaw, &durationMS, &run.Files, &run.Records, &run.Errors); err != nil {
		return Run{}, fmt.Errorf("scan run row: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, startedRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", startedRaw, err)
	}
	run.StartedAt = ts.UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// ResolveRun accepts "latest", "previous", a full id or a unique id prefix.
// latest and previous are relative to root when root is set.
func (s *Store) ResolveRun(root, ref string) (Run, error) {
	ref = strings.TrimSpace(ref)
	switch ref {
	case "", "latest", "previous":
		runs, err := s.ListRuns(root, 2)
		if err != nil {
			return Run{}, err
		}
		idx := 0
		if ref == "previous" {
			idx = 1
		}
		if len(runs) <= idx {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, orLatest(ref))
		}
		return runs[idx], nil
	}

	runs, err := s.ListRuns("", 0)
	if err != nil {
		return Run{}, err
	}
	var matches []Run
	for _, r := range runs {
		if r.ID == ref {
			return r, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return Run{}, fmt.Errorf("run prefix %q is ambiguous (%d matches)", ref, len(matches))
}

func orLatest(ref string) string {
	if ref == "" {
		return "latest"
	}
	return ref
}

// LoadRecords returns a run's records in emission order
func (s *Store) LoadRecords(runID string) ([]asset.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load records", func() error {
		var qErr error
		rows, qErr = s.db.Query(
			`SELECT file, signal, width, category, appeared_in, cia FROM records WHERE run_id = ? ORDER BY position`,
			runID,
		)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]asset.Record, 0)
	for rows.Next() {
		var (
			r        asset.Record
			width    string
			category string
		)
		if err := rows.Scan(&r.SourceFile, &r.Signal, &width, &category, &r.AppearedIn, &r.CIA); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		r.Width = asset.ParseWidth(width)
		r.Category = asset.Category(category)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return records, nil
}

// Compare diffs two stored runs
func (s *Store) Compare(from, to Run) (Diff, error) {
	prev, err := s.LoadRecords(from.ID)
	if err != nil {
		return Diff{}, err
	}
	next, err := s.LoadRecords(to.ID)
	if err != nil {
		return Diff{}, err
	}
	d := DiffRecords(prev, next)
	d.From, d.To = from, to
	return d, nil
}

// DiffRecords compares two record lists by Record.Key and width.
// Results are sorted by key.
func DiffRecords(prev, next []asset.Record) Diff {
	return Diff{
		Added:   missingFrom(prev, next),
		Removed: missingFrom(next, prev),
	}
}

func missingFrom(base, other []asset.Record) []asset.Record {
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[diffKey(r)] = true
	}
	out := []asset.Record{}
	for _, r := range other {
		if !seen[diffKey(r)] {
			seen[diffKey(r)] = true
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return diffKey(out[i]) < diffKey(out[j]) })
	return out
}

func diffKey(r asset.Record) string {
	return r.Key() + "|" + r.Width.String() + "|" + r.CIA
}

// Prune deletes all but the newest keep runs for root
func (s *Store) Prune(root string, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	err := s.withRetry("prune runs", func() error {
		var execErr error
		res, execErr = s.db.Exec(
			`DELETE FROM runs WHERE root = ? AND id NOT IN (SELECT id FROM runs WHERE root = ? ORDER BY started_utc DESC, id DESC LIMIT ?)`,
			root, root, keep,
		)
		return execErr
	})
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(n), nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
