// Package history persists an audit log of patch operations performed by
// the cotopha CLI: which base hash was targeted, which mod files were
// applied, where the result was written, and how large it came out.
package history

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite"
)

// Entry records one completed patch or compact operation.
type Entry struct {
	ID          int64     `json:"id"`
	BaseHash    string    `json:"base_hash"`
	ModFiles    []string  `json:"mod_files"`
	OutputPath  string    `json:"output_path"`
	Kind        string    `json:"kind"` // "patch" or "compact"
	InputBytes  int64     `json:"input_bytes"`
	OutputBytes int64     `json:"output_bytes"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store handles audit log persistence.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite history database at path.
// An empty path falls back to ~/.cotopha/history.db.
func Open(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home dir: %w", err)
		}
		dir := filepath.Join(home, ".cotopha")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		path = filepath.Join(dir, "history.db")
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		base_hash TEXT NOT NULL,
		mod_files TEXT NOT NULL,
		output_path TEXT NOT NULL,
		kind TEXT NOT NULL,
		input_bytes INTEGER,
		output_bytes INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_operations_base_hash ON operations(base_hash);
	CREATE INDEX IF NOT EXISTS idx_operations_kind ON operations(kind);
	`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Record inserts an Entry. Timestamp is set to the current time if zero.
func (s *Store) Record(e *Entry) error {
	modsJSON, err := json.Marshal(e.ModFiles)
	if err != nil {
		return fmt.Errorf("failed to marshal mod files: %w", err)
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO operations (base_hash, mod_files, output_path, kind, input_bytes, output_bytes, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query, e.BaseHash, string(modsJSON), e.OutputPath, e.Kind, e.InputBytes, e.OutputBytes, ts)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

// SearchParams filters a history query.
type SearchParams struct {
	BaseHash       string
	OutputPathGlob string
	Limit          int
}

// Search returns recorded operations matching params, most recent first.
func (s *Store) Search(params SearchParams) ([]Entry, error) {
	query := "SELECT id, base_hash, mod_files, output_path, kind, input_bytes, output_bytes, timestamp FROM operations WHERE 1=1"
	args := []interface{}{}

	if params.BaseHash != "" {
		query += " AND base_hash = ?"
		args = append(args, params.BaseHash)
	}

	query += " ORDER BY timestamp DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var pathRe *regexp.Regexp
	if params.OutputPathGlob != "" {
		pathRe, err = regexp.Compile(params.OutputPathGlob)
		if err != nil {
			return nil, fmt.Errorf("invalid output path pattern: %w", err)
		}
	}

	var results []Entry
	count := 0
	for rows.Next() {
		if params.Limit > 0 && count >= params.Limit {
			break
		}

		var e Entry
		var modsRaw string
		if err := rows.Scan(&e.ID, &e.BaseHash, &modsRaw, &e.OutputPath, &e.Kind, &e.InputBytes, &e.OutputBytes, &e.Timestamp); err != nil {
			continue
		}
		_ = json.Unmarshal([]byte(modsRaw), &e.ModFiles)

		if pathRe != nil && !pathRe.MatchString(e.OutputPath) {
			continue
		}

		results = append(results, e)
		count++
	}

	return results, nil
}

// HashHex formats a cotopha.Hash-shaped byte slice as lowercase hex for
// storage in the base_hash column.
func HashHex(h []byte) string {
	return hex.EncodeToString(h)
}
