// Package catalog persists declaration documents in a local SQLite
// database, one named catalog per document.
//
// Connections use WAL journaling with NORMAL synchronous mode and a busy
// timeout, so several typebind processes may read a catalog while one
// writes it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/snapshot"
)

// ErrNotFound is returned for an unknown catalog name.
var ErrNotFound = errors.New("catalog not found")

// pragmas are applied to every connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(OFF)",
	"temp_store(MEMORY)",
}

// Entry describes a stored catalog.
type Entry struct {
	Name        string
	Fingerprint string
	Classes     int
	SavedAt     time.Time
}

// Catalog is a SQLite-backed document store. It is safe for concurrent
// use.
type Catalog struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// Open opens or creates the catalog database at path and applies pending
// schema migrations. The parent directory is created when missing.
func Open(ctx context.Context, path string, opts ...Option) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog: path is required")
	}
	c := &Catalog{path: path, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: creating directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", path, err)
	}
	applied, err := migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	c.db = db

	c.logger.Info("catalog opened", "path", path, "migrations_applied", applied)
	return c, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: closing %s: %w", c.path, err)
	}
	c.logger.Info("catalog closed", "path", c.path)
	return nil
}

// Save stores doc under name, replacing any previous catalog with that
// name.
func (c *Catalog) Save(ctx context.Context, name string, doc *decl.Document) error {
	if name == "" {
		return fmt.Errorf("catalog: name is required")
	}
	fingerprint, err := snapshot.Fingerprint(doc)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: beginning save: %w", err)
	}
	defer tx.Rollback()

	if err := deleteCatalog(ctx, tx, name); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO catalogs (name, fingerprint, saved_at) VALUES (?, ?, ?)",
		name, fingerprint, c.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("catalog: inserting %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("catalog: inserting %s: %w", name, err)
	}

	if err := insertDocument(ctx, tx, id, doc); err != nil {
		return fmt.Errorf("catalog: saving %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: committing %s: %w", name, err)
	}

	c.logger.Info("catalog saved", "name", name, "classes", len(doc.Classes), "fingerprint", fingerprint)
	return nil
}

func insertDocument(ctx context.Context, tx *sql.Tx, id int64, doc *decl.Document) error {
	for i, p := range doc.Params {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO params (catalog_id, position, name, scope, bound) VALUES (?, ?, ?, ?, ?)",
			id, i, p.Name, p.Scope, p.Bound); err != nil {
			return fmt.Errorf("params[%d]: %w", i, err)
		}
	}

	for i, cd := range doc.Classes {
		var provided bool
		var scope, tags string
		if cd.Provided != nil {
			provided = true
			scope = cd.Provided.Scope
			tags = strings.Join(cd.Provided.Tags, ",")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classes (catalog_id, position, name, has_fields, provided, provided_scope, provided_tags)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, cd.Name, cd.Fields != nil, provided, scope, tags); err != nil {
			return fmt.Errorf("classes[%d]: %w", i, err)
		}
		for j, p := range cd.Params {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO templates (catalog_id, class_position, position, param) VALUES (?, ?, ?, ?)",
				id, i, j, p); err != nil {
				return fmt.Errorf("classes[%d]: params[%d]: %w", i, j, err)
			}
		}
		for j, b := range cd.Bases {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO bases (catalog_id, class_position, position, type) VALUES (?, ?, ?, ?)",
				id, i, j, b); err != nil {
				return fmt.Errorf("classes[%d]: bases[%d]: %w", i, j, err)
			}
		}
		for j, f := range cd.Fields {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO fields (catalog_id, class_position, position, name, type) VALUES (?, ?, ?, ?, ?)",
				id, i, j, f.Name, f.Type); err != nil {
				return fmt.Errorf("classes[%d]: fields[%d]: %w", i, j, err)
			}
		}
		if cd.Provided != nil {
			for j, a := range cd.Provided.Aliases {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO aliases (catalog_id, class_position, position, type) VALUES (?, ?, ?, ?)",
					id, i, j, a); err != nil {
					return fmt.Errorf("classes[%d]: aliases[%d]: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

// Load reads the catalog stored under name.
func (c *Catalog) Load(ctx context.Context, name string) (*decl.Document, error) {
	var id int64
	err := c.db.QueryRowContext(ctx, "SELECT id FROM catalogs WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: loading %s: %w", name, err)
	}

	doc := &decl.Document{}
	if err := c.loadParams(ctx, id, doc); err != nil {
		return nil, fmt.Errorf("catalog: loading %s: %w", name, err)
	}
	if err := c.loadClasses(ctx, id, doc); err != nil {
		return nil, fmt.Errorf("catalog: loading %s: %w", name, err)
	}
	return doc, nil
}

func (c *Catalog) loadParams(ctx context.Context, id int64, doc *decl.Document) error {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name, scope, bound FROM params WHERE catalog_id = ? ORDER BY position", id)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p decl.ParamDoc
		if err := rows.Scan(&p.Name, &p.Scope, &p.Bound); err != nil {
			return fmt.Errorf("params: %w", err)
		}
		doc.Params = append(doc.Params, p)
	}
	return rows.Err()
}

func (c *Catalog) loadClasses(ctx context.Context, id int64, doc *decl.Document) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, has_fields, provided, provided_scope, provided_tags
		 FROM classes WHERE catalog_id = ? ORDER BY position`, id)
	if err != nil {
		return fmt.Errorf("classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cd decl.ClassDoc
		var hasFields, provided bool
		var scope, tags string
		if err := rows.Scan(&cd.Name, &hasFields, &provided, &scope, &tags); err != nil {
			return fmt.Errorf("classes: %w", err)
		}
		if hasFields {
			cd.Fields = decl.FieldList{}
		}
		if provided {
			cd.Provided = &decl.ProvisionDoc{Scope: scope}
			if tags != "" {
				cd.Provided.Tags = strings.Split(tags, ",")
			}
		}
		doc.Classes = append(doc.Classes, cd)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("classes: %w", err)
	}

	for _, child := range childQueries {
		if err := c.loadChildren(ctx, id, doc, child.query, child.scan); err != nil {
			return fmt.Errorf("%s: %w", child.table, err)
		}
	}
	return nil
}

// rowScanner reads one child row and returns the position of the class it
// belongs to and the change to apply to that class.
type rowScanner func(rows *sql.Rows) (int, func(*decl.ClassDoc), error)

var childQueries = []struct {
	table string
	query string
	scan  rowScanner
}{
	{
		table: "templates",
		query: "SELECT class_position, param FROM templates WHERE catalog_id = ? ORDER BY class_position, position",
		scan: func(rows *sql.Rows) (int, func(*decl.ClassDoc), error) {
			var pos int
			var p string
			err := rows.Scan(&pos, &p)
			return pos, func(cd *decl.ClassDoc) { cd.Params = append(cd.Params, p) }, err
		},
	},
	{
		table: "bases",
		query: "SELECT class_position, type FROM bases WHERE catalog_id = ? ORDER BY class_position, position",
		scan: func(rows *sql.Rows) (int, func(*decl.ClassDoc), error) {
			var pos int
			var b string
			err := rows.Scan(&pos, &b)
			return pos, func(cd *decl.ClassDoc) { cd.Bases = append(cd.Bases, b) }, err
		},
	},
	{
		table: "fields",
		query: "SELECT class_position, name, type FROM fields WHERE catalog_id = ? ORDER BY class_position, position",
		scan: func(rows *sql.Rows) (int, func(*decl.ClassDoc), error) {
			var pos int
			var f decl.FieldDoc
			err := rows.Scan(&pos, &f.Name, &f.Type)
			return pos, func(cd *decl.ClassDoc) { cd.Fields = append(cd.Fields, f) }, err
		},
	},
	{
		table: "aliases",
		query: "SELECT class_position, type FROM aliases WHERE catalog_id = ? ORDER BY class_position, position",
		scan: func(rows *sql.Rows) (int, func(*decl.ClassDoc), error) {
			var pos int
			var a string
			err := rows.Scan(&pos, &a)
			return pos, func(cd *decl.ClassDoc) {
				if cd.Provided == nil {
					cd.Provided = &decl.ProvisionDoc{}
				}
				cd.Provided.Aliases = append(cd.Provided.Aliases, a)
			}, err
		},
	},
}

func (c *Catalog) loadChildren(ctx context.Context, id int64, doc *decl.Document, query string, scan rowScanner) error {
	rows, err := c.db.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		pos, apply, err := scan(rows)
		if err != nil {
			return err
		}
		if pos < 0 || pos >= len(doc.Classes) {
			return fmt.Errorf("row refers to missing class %d", pos)
		}
		apply(&doc.Classes[pos])
	}
	return rows.Err()
}

// List returns every stored catalog ordered by name.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.name, c.fingerprint, c.saved_at,
		       (SELECT COUNT(*) FROM classes WHERE catalog_id = c.id)
		FROM catalogs c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var saved int64
		if err := rows.Scan(&e.Name, &e.Fingerprint, &saved, &e.Classes); err != nil {
			return nil, fmt.Errorf("catalog: listing: %w", err)
		}
		e.SavedAt = time.Unix(0, saved).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: listing: %w", err)
	}
	return entries, nil
}

// Delete removes the catalog stored under name.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: beginning delete: %w", err)
	}
	defer tx.Rollback()

	if err := deleteCatalog(ctx, tx, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: committing delete of %s: %w", name, err)
	}
	c.logger.Info("catalog deleted", "name", name)
	return nil
}

func deleteCatalog(ctx context.Context, tx *sql.Tx, name string) error {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM catalogs WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("catalog %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("catalog: looking up %s: %w", name, err)
	}
	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE catalog_id = ?", id); err != nil {
			return fmt.Errorf("catalog: deleting %s from %s: %w", name, table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM catalogs WHERE id = ?", id); err != nil {
		return fmt.Errorf("catalog: deleting %s: %w", name, err)
	}
	return nil
}
