package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"neoview/internal/logging"
	"neoview/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// schemaVersion is the target schema version written to the metadata
// table after migration.
const schemaVersion = 2

// Store is the persistent thumbnail cache: thumbnail blobs with their
// validity tokens, failure records, and sidecar metadata, all keyed by
// content identity.
//
// The store uses a single connection in WAL mode. Each logical
// operation auto-commits; multi-step sequences are not atomic across
// calls.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the store at dbPath and runs the versioned
// migration.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Thumbnail store path: %s", dbPath)

	// busy_timeout guards against transient "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// One writer connection; WAL keeps readers from blocking it.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after migration failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}

	logging.Info("Thumbnail store ready at %s (schema v%d)", dbPath, schemaVersion)
	return s, nil
}

// migrate creates the schema and applies versioned, idempotent
// migrations. The current version lives in the metadata table; each
// step is safe to re-run.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS thumbs (
		key TEXT NOT NULL PRIMARY KEY,
		size INTEGER NOT NULL,
		date INTEGER NOT NULL,
		category TEXT NOT NULL DEFAULT 'file',
		value BLOB,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		accessed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_thumbs_category ON thumbs(category);
	CREATE INDEX IF NOT EXISTS idx_thumbs_accessed ON thumbs(accessed_at);

	CREATE TABLE IF NOT EXISTS failed_thumbnails (
		key TEXT NOT NULL PRIMARY KEY,
		reason TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_attempt INTEGER NOT NULL,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_failed_attempt ON failed_thumbnails(last_attempt);

	CREATE TABLE IF NOT EXISTS sidecar (
		key TEXT NOT NULL PRIMARY KEY,
		rating TEXT,
		manual_tags TEXT,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	version, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version == schemaVersion {
		return nil
	}

	logging.Info("Migrating thumbnail store: schema v%d -> v%d", version, schemaVersion)

	// v1 -> v2: legacy stores kept thumbnails without access tracking.
	if version < 2 {
		var hasAccessed bool
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info('thumbs')
			WHERE name='accessed_at'
		`).Scan(&hasAccessed)
		if err != nil {
			return fmt.Errorf("failed to check for accessed_at column: %w", err)
		}
		if !hasAccessed {
			if _, err := s.db.ExecContext(ctx, `
				ALTER TABLE thumbs ADD COLUMN accessed_at INTEGER NOT NULL DEFAULT 0
			`); err != nil {
				return fmt.Errorf("failed to add accessed_at column: %w", err)
			}
			if _, err := s.db.ExecContext(ctx, `
				UPDATE thumbs SET accessed_at = created_at WHERE accessed_at = 0
			`); err != nil {
				return fmt.Errorf("failed to initialize accessed_at values: %w", err)
			}
		}
	}

	return s.setSchemaVersion(ctx, schemaVersion)
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		"SELECT CAST(value AS INTEGER) FROM metadata WHERE key = 'schema_version'",
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, version)
	return err
}

// Close closes the store connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum optimizes the store file.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
