package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout keeps a fixed fraction width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps the local SQLite database: the key/value cache, the ingestion
// ledger and the conversion history.
type Store struct {
	db *sql.DB
}

// Open opens the database file tonegate.db in dataDir, creating it if
// needed, and brings the schema up to date. ":memory:" opens a private
// in-memory database.
func Open(dataDir string) (*Store, error) {
	dsn, err := dataSource(dataDir)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.upgrade(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// dataSource builds the DSN. Pragmas ride on the DSN so they hold for every
// connection the pool opens.
func dataSource(dataDir string) (string, error) {
	if dataDir == ":memory:" {
		return ":memory:?_pragma=busy_timeout(5000)", nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return "file:" + filepath.Join(dataDir, "tonegate.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)", nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type migration struct {
	version int
	name    string
}

// migrations lists the embedded NNN_name.sql files in version order.
func migrations() ([]migration, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	out := make([]migration, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		prefix, _, ok := strings.Cut(base, "_")
		v, err := strconv.Atoi(prefix)
		if !ok || err != nil || v <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version and '_'", base)
		}
		out = append(out, migration{version: v, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// SchemaVersion reports the schema version recorded in PRAGMA user_version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// upgrade applies every migration newer than SchemaVersion, each in its own
// transaction together with the user_version bump.
func (s *Store) upgrade() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	all, err := migrations()
	if err != nil {
		return err
	}
	for _, m := range all {
		if m.version <= current {
			continue
		}
		body, err := migrationsFS.ReadFile(m.name)
		if err != nil {
			return err
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying %s: %w", path.Base(m.name), err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording schema version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing %s: %w", path.Base(m.name), err)
		}
		current = m.version
	}
	return nil
}

// --- Cache ---

// GetCacheKey returns the value stored under key. ok is false when the key
// is absent.
func (s *Store) GetCacheKey(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow("SELECT value FROM cache WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetCacheKey(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO cache (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteCacheKey removes key. Deleting an absent key is not an error.
func (s *Store) DeleteCacheKey(key string) error {
	_, err := s.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

// --- Ingestion ledger ---

// RecordIngestStatus inserts the file row on first sight and updates its
// status fields afterwards.
func (s *Store) RecordIngestStatus(f IngestFile) error {
	now := time.Now().UTC()
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = f.UpdatedAt
	}
	status := f.Status
	if status == "" {
		status = "pending"
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_files (id, batch_id, company_id, name, status, file_path, documents_processed, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			file_path = excluded.file_path,
			documents_processed = excluded.documents_processed,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		f.ID, f.BatchID, f.CompanyID, f.Name, status, f.FilePath, f.DocumentsProcessed, f.Error,
		f.CreatedAt.UTC().Format(timeLayout), f.UpdatedAt.UTC().Format(timeLayout),
	)
	return err
}

// ListIngestFiles returns the files of a batch in submission order.
// An unknown batch yields ErrNotFound.
func (s *Store) ListIngestFiles(batchID string) ([]IngestFile, error) {
	rows, err := s.db.Query(`
		SELECT id, batch_id, company_id, name, status, file_path, documents_processed, error, created_at, updated_at
		FROM ingest_files WHERE batch_id = ? ORDER BY created_at ASC, rowid ASC`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IngestFile
	for rows.Next() {
		var f IngestFile
		var createdAt, updatedAt string
		if err := rows.Scan(&f.ID, &f.BatchID, &f.CompanyID, &f.Name, &f.Status, &f.FilePath,
			&f.DocumentsProcessed, &f.Error, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for file %s: %w", f.ID, err)
		}
		if f.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for file %s: %w", f.ID, err)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

// --- Conversion history ---

func (s *Store) SaveConversion(c Conversion) error {
	_, err := s.db.Exec(`
		INSERT INTO conversions (id, created_at, capability, context, input_text, output_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.CreatedAt.UTC().Format(timeLayout), c.Capability, c.Context, c.InputText, c.OutputJSON,
	)
	return err
}

func (s *Store) GetConversion(id string) (Conversion, error) {
	var c Conversion
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, created_at, capability, context, input_text, output_json
		FROM conversions WHERE id = ?`, id,
	).Scan(&c.ID, &createdAt, &c.Capability, &c.Context, &c.InputText, &c.OutputJSON)
	if err == sql.ErrNoRows {
		return Conversion{}, ErrNotFound
	}
	if err != nil {
		return Conversion{}, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Conversion{}, fmt.Errorf("parsing created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}

// ListConversions returns the most recent conversions, newest first.
func (s *Store) ListConversions(limit int) ([]Conversion, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, capability, context, input_text, output_json
		FROM conversions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Conversion
	for rows.Next() {
		var c Conversion
		var createdAt string
		if err := rows.Scan(&c.ID, &createdAt, &c.Capability, &c.Context, &c.InputText, &c.OutputJSON); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		c.CreatedAt = t
		results = append(results, c)
	}
	return results, rows.Err()
}
