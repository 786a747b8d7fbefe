/*
Copyright 2026 The Harbase Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dbschema owns the SQL schema for a harbase database and its
// forward-only migrations, mirroring the meta-table versioning approach
// used by Perkeep's pkg/index/sqlite and pkg/sorted/sqlite packages.
package dbschema

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// CurrentVersion is the schema version this build of harbase writes.
// Opening an older database upgrades it in place with ALTER TABLE ADD
// COLUMN; opening a newer database is refused.
const CurrentVersion = 1

// createTables lists the base schema in dependency order. Never rename
// or drop a column here; add new columns via a migration step instead.
var createTables = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS imports (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file    TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'in_progress',
		started_at     TEXT NOT NULL,
		completed_at   TEXT,
		entries_total  INTEGER,
		entry_count    INTEGER NOT NULL DEFAULT 0,
		entries_skipped INTEGER NOT NULL DEFAULT 0,
		creator_name   TEXT,
		creator_version TEXT,
		browser_name   TEXT,
		browser_version TEXT,
		log_comment    TEXT,
		log_extensions TEXT,
		error          TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS imports_source_file_idx ON imports(source_file, status)`,
	`CREATE TABLE IF NOT EXISTS pages (
		import_id      INTEGER NOT NULL REFERENCES imports(id),
		page_id        TEXT NOT NULL,
		title          TEXT,
		started_at     TEXT,
		on_content_load REAL,
		on_load        REAL,
		extensions     TEXT,
		PRIMARY KEY (import_id, page_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blobs (
		hash           TEXT PRIMARY KEY,
		size           INTEGER NOT NULL,
		mime_type      TEXT,
		content        BLOB NOT NULL DEFAULT (x''),
		external_path  TEXT,
		ref_count      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id                       INTEGER PRIMARY KEY AUTOINCREMENT,
		import_id                INTEGER NOT NULL REFERENCES imports(id),
		page_id                  TEXT,
		entry_hash               TEXT,
		started_at               TEXT NOT NULL,
		time_ms                  REAL,
		method                   TEXT NOT NULL,
		url                      TEXT NOT NULL,
		host                     TEXT,
		path                     TEXT,
		query_string             TEXT,
		http_version             TEXT,
		status                   INTEGER NOT NULL,
		status_text              TEXT,
		is_redirect              INTEGER NOT NULL DEFAULT 0,
		request_headers          TEXT,
		request_cookies          TEXT,
		request_body_hash        TEXT REFERENCES blobs(hash),
		request_body_size        INTEGER,
		response_headers         TEXT,
		response_cookies         TEXT,
		response_mime_type       TEXT,
		response_body_hash       TEXT REFERENCES blobs(hash),
		response_body_size       INTEGER,
		response_body_hash_raw   TEXT REFERENCES blobs(hash),
		response_body_size_raw   INTEGER,
		content_encoding         TEXT,
		graphql_operation_type   TEXT,
		graphql_operation_name   TEXT,
		graphql_batch_index      INTEGER,
		request_extensions       TEXT,
		response_extensions      TEXT,
		content_extensions       TEXT,
		timings_extensions       TEXT,
		postdata_extensions      TEXT,
		entry_extensions         TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS graphql_fields (
		entry_id   INTEGER NOT NULL REFERENCES entries(id),
		field      TEXT NOT NULL,
		field_type TEXT NOT NULL DEFAULT 'field',
		PRIMARY KEY (entry_id, field)
	)`,
	`CREATE INDEX IF NOT EXISTS graphql_fields_field_idx ON graphql_fields(field, entry_id)`,
}

// entriesIndexes mirrors spec.md's required index list on entries.
var entriesIndexes = []string{
	`CREATE INDEX IF NOT EXISTS entries_url_idx ON entries(url)`,
	`CREATE INDEX IF NOT EXISTS entries_host_idx ON entries(host)`,
	`CREATE INDEX IF NOT EXISTS entries_status_idx ON entries(status)`,
	`CREATE INDEX IF NOT EXISTS entries_method_idx ON entries(method)`,
	`CREATE INDEX IF NOT EXISTS entries_mime_idx ON entries(response_mime_type)`,
	`CREATE INDEX IF NOT EXISTS entries_started_at_idx ON entries(started_at)`,
	`CREATE INDEX IF NOT EXISTS entries_import_id_idx ON entries(import_id)`,
	`CREATE INDEX IF NOT EXISTS entries_entry_hash_idx ON entries(entry_hash)`,
	`CREATE INDEX IF NOT EXISTS entries_gql_op_type_idx ON entries(graphql_operation_type)`,
	`CREATE INDEX IF NOT EXISTS entries_gql_op_name_idx ON entries(graphql_operation_name)`,
}

// column is one forward migration step: adding a column that an older
// database file may be missing.
type column struct {
	table, name, decl string
}

// migrations lists columns added after CurrentVersion 1 shipped. It is
// empty today; future schema growth appends here, never above.
var migrations []column

// Open opens (and if necessary creates and migrates) a harbase database
// at path, applying the WAL/synchronous/busy-timeout pragmas spec.md §4.4
// and §5 call for. readOnly opens with modernc.org/sqlite's immutable
// mode, used by merge's source databases.
func Open(path string, readOnly bool) (*sql.DB, error) {
	dsn := path
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&immutable=1", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbschema: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	if readOnly {
		pragmas = []string{"PRAGMA busy_timeout=5000"}
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbschema: %s: %w", p, err)
		}
	}

	if !readOnly {
		if err := initOrMigrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func initOrMigrate(db *sql.DB) error {
	for _, stmt := range createTables {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("dbschema: create schema: %w", err)
		}
	}
	for _, stmt := range entriesIndexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("dbschema: create index: %w", err)
		}
	}

	version, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if version == 0 {
		if _, err := db.Exec(`INSERT INTO meta(key, value) VALUES ('version', ?)`, CurrentVersion); err != nil {
			return fmt.Errorf("dbschema: set initial version: %w", err)
		}
		version = CurrentVersion
	}
	if version > CurrentVersion {
		return fmt.Errorf("dbschema: database schema version %d is newer than this build supports (%d)", version, CurrentVersion)
	}

	for _, m := range migrations {
		if err := addColumnIfMissing(db, m); err != nil {
			return err
		}
	}
	if version < CurrentVersion {
		if _, err := db.Exec(`UPDATE meta SET value = ? WHERE key = 'version'`, CurrentVersion); err != nil {
			return fmt.Errorf("dbschema: bump version: %w", err)
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("dbschema: read schema version: %w", err)
	}
	return v, nil
}

func addColumnIfMissing(db *sql.DB, c column) error {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, c.table))
	if err != nil {
		return fmt.Errorf("dbschema: inspect %s: %w", c.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("dbschema: scan column info: %w", err)
		}
		if name == c.name {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.name, c.decl)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("dbschema: %s: %w", stmt, err)
	}
	return nil
}
