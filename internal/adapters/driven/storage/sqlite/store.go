package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Store is a SQLite database holding the ingestion ledger.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.fhir-mcp/data/ledger.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".fhir-mcp", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	// WAL lets the MCP server and CLI read while another process writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IngestionLedger returns an IngestionLedger backed by this store.
func (s *Store) IngestionLedger() driven.IngestionLedger {
	return &ingestionLedger{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_ingestion_runs.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Ingestion Ledger ====================

// ingestionLedger implements driven.IngestionLedger.
type ingestionLedger struct {
	store *Store
}

var _ driven.IngestionLedger = (*ingestionLedger)(nil)

const runColumns = `id, document_id, source_url, format, state, chunks, uploaded, error,
	started_at, updated_at, finished_at`

// SaveRun stores or updates a run.
func (l *ingestionLedger) SaveRun(ctx context.Context, run domain.IngestionRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			format = excluded.format,
			state = excluded.state,
			chunks = excluded.chunks,
			uploaded = excluded.uploaded,
			error = excluded.error,
			updated_at = excluded.updated_at,
			finished_at = excluded.finished_at
	`, run.ID, run.DocumentID, run.SourceURL, string(run.Format), string(run.State),
		run.Chunks, run.Uploaded, run.Error,
		run.StartedAt.UTC(), run.UpdatedAt.UTC(), nullTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving ingestion run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (l *ingestionLedger) GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error) {
	row := l.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingestion_runs WHERE id = ?`, runID)
	return scanRun(row)
}

// LatestRun returns the most recently started run for a document.
func (l *ingestionLedger) LatestRun(ctx context.Context, documentID string) (*domain.IngestionRun, error) {
	row := l.store.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM ingestion_runs
		WHERE document_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`, documentID)
	return scanRun(row)
}

// ListRuns returns a document's runs, newest first.
func (l *ingestionLedger) ListRuns(ctx context.Context, documentID string) ([]domain.IngestionRun, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM ingestion_runs
		WHERE document_id = ?
		ORDER BY started_at DESC, rowid DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing ingestion runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.IngestionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ingestion runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.IngestionRun, error) {
	var run domain.IngestionRun
	var format, state string
	var finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.DocumentID, &run.SourceURL, &format, &state,
		&run.Chunks, &run.Uploaded, &run.Error,
		&run.StartedAt, &run.UpdatedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning ingestion run: %w", err)
	}

	run.Format = domain.Format(format)
	run.State = domain.IngestionState(state)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
