package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order. The index of the last applied entry
// plus one is stored in PRAGMA user_version.
var migrations = []string{
	`
CREATE TABLE catalogs (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	fingerprint TEXT NOT NULL,
	saved_at    INTEGER NOT NULL
);

CREATE TABLE params (
	catalog_id INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL,
	scope      TEXT NOT NULL,
	bound      TEXT NOT NULL,
	PRIMARY KEY (catalog_id, position)
);

CREATE TABLE classes (
	catalog_id     INTEGER NOT NULL,
	position       INTEGER NOT NULL,
	name           TEXT NOT NULL,
	has_fields     INTEGER NOT NULL,
	provided       INTEGER NOT NULL,
	provided_scope TEXT NOT NULL,
	provided_tags  TEXT NOT NULL,
	PRIMARY KEY (catalog_id, position)
);

CREATE TABLE templates (
	catalog_id     INTEGER NOT NULL,
	class_position INTEGER NOT NULL,
	position       INTEGER NOT NULL,
	param          TEXT NOT NULL,
	PRIMARY KEY (catalog_id, class_position, position)
);

CREATE TABLE bases (
	catalog_id     INTEGER NOT NULL,
	class_position INTEGER NOT NULL,
	position       INTEGER NOT NULL,
	type           TEXT NOT NULL,
	PRIMARY KEY (catalog_id, class_position, position)
);

CREATE TABLE fields (
	catalog_id     INTEGER NOT NULL,
	class_position INTEGER NOT NULL,
	position       INTEGER NOT NULL,
	name           TEXT NOT NULL,
	type           TEXT NOT NULL,
	PRIMARY KEY (catalog_id, class_position, position)
);
`,
	`
CREATE TABLE aliases (
	catalog_id     INTEGER NOT NULL,
	class_position INTEGER NOT NULL,
	position       INTEGER NOT NULL,
	type           TEXT NOT NULL,
	PRIMARY KEY (catalog_id, class_position, position)
);
`,
}

// childTables hold per-catalog rows. Referential integrity is kept by
// hand: deleting a catalog deletes from each of them.
var childTables = []string{"params", "classes", "templates", "bases", "fields", "aliases"}

// migrate brings the schema up to date inside one transaction.
func migrate(ctx context.Context, db *sql.DB) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if version > len(migrations) {
		return 0, fmt.Errorf("schema version %d is newer than supported version %d", version, len(migrations))
	}
	for i := version; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return 0, fmt.Errorf("applying migration %d: %w", i+1, err)
		}
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return 0, fmt.Errorf("writing schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing migration: %w", err)
	}
	return len(migrations) - version, nil
}
