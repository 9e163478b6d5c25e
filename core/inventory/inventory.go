// Package inventory records imported blocks in a SQLite database so a
// course tree can be queried without re-parsing its XML.
package inventory

import (
	"database/sql"
	"time"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/sqlite"
)

// Record describes one imported block.
type Record struct {
	// UsageKey is the block's usage key string, the primary key.
	UsageKey string `json:"usage_key"`
	Category string `json:"category"`
	URLName  string `json:"url_name"`
	// DisplayName is the block's display_name field, "" when unset.
	DisplayName string `json:"display_name,omitempty"`
	// DefinitionPath is the resolved definition file the block was
	// loaded from, "" for inline definitions.
	DefinitionPath string `json:"definition_path,omitempty"`
	// ContentSHA256 is the hex digest of the definition file body.
	ContentSHA256 string    `json:"content_sha256,omitempty"`
	ImportedAt    time.Time `json:"imported_at"`
}

// DB wraps an inventory database.
type DB struct {
	db *sql.DB
}

// Open opens the inventory database at path, creating the schema if
// needed.
func Open(path string) (*DB, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening inventory database")
	}

	inv := &DB{db: db}
	if err := inv.init(); err != nil {
		db.Close()
		return nil, err
	}
	return inv, nil
}

func (d *DB) init() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS blocks (
			usage_key       TEXT PRIMARY KEY,
			category        TEXT NOT NULL,
			url_name        TEXT NOT NULL,
			display_name    TEXT,
			definition_path TEXT,
			content_sha256  TEXT,
			imported_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_blocks_category ON blocks(category);
	`)
	if err != nil {
		return errors.Wrap(err, "creating inventory schema")
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// Upsert inserts the record, replacing any previous record with the
// same usage key. A zero ImportedAt is stamped with the current time.
func (d *DB) Upsert(rec *Record) error {
	if rec.UsageKey == "" {
		return errors.NewValidation("usage_key", "usage key is required")
	}
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now().UTC()
	}

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO blocks
			(usage_key, category, url_name, display_name, definition_path, content_sha256, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UsageKey, rec.Category, rec.URLName, rec.DisplayName,
		rec.DefinitionPath, rec.ContentSHA256, rec.ImportedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return errors.Wrap(err, "upserting block record")
	}
	return nil
}

// Get retrieves the record for a usage key.
func (d *DB) Get(usageKey string) (*Record, error) {
	row := d.db.QueryRow(`
		SELECT usage_key, category, url_name, display_name, definition_path, content_sha256, imported_at
		FROM blocks WHERE usage_key = ?`, usageKey)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("block", usageKey)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading block record")
	}
	return rec, nil
}

// List returns every record ordered by usage key.
func (d *DB) List() ([]*Record, error) {
	return d.list(`
		SELECT usage_key, category, url_name, display_name, definition_path, content_sha256, imported_at
		FROM blocks ORDER BY usage_key`)
}

// ListByCategory returns the records of one category ordered by
// url_name.
func (d *DB) ListByCategory(category string) ([]*Record, error) {
	return d.list(`
		SELECT usage_key, category, url_name, display_name, definition_path, content_sha256, imported_at
		FROM blocks WHERE category = ? ORDER BY url_name`, category)
}

func (d *DB) list(query string, args ...any) ([]*Record, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing block records")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "reading block record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing block records")
	}
	return out, nil
}

// Counts returns the number of records per category.
func (d *DB) Counts() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT category, COUNT(*) FROM blocks GROUP BY category`)
	if err != nil {
		return nil, errors.Wrap(err, "counting block records")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, errors.Wrap(err, "counting block records")
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "counting block records")
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var displayName, definitionPath, contentSHA sql.NullString
	var importedAt string
	if err := row.Scan(&rec.UsageKey, &rec.Category, &rec.URLName,
		&displayName, &definitionPath, &contentSHA, &importedAt); err != nil {
		return nil, err
	}
	rec.DisplayName = displayName.String
	rec.DefinitionPath = definitionPath.String
	rec.ContentSHA256 = contentSHA.String

	ts, err := time.Parse(time.RFC3339, importedAt)
	if err != nil {
		return nil, errors.NewParse("timestamp", rec.UsageKey, err.Error())
	}
	rec.ImportedAt = ts
	return &rec, nil
}
