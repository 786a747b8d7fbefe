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

package importer

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"harbase.dev/harbase/pkg/har"
	"harbase.dev/harbase/pkg/normalize"
)

// The methods in this file expose the Coordinator's single-writer
// primitives to pkg/dispatch, whose writer goroutine is the only other
// code in harbase allowed to hold a *sql.Tx against this database. They
// are not meant for general use — a normal caller wants Import, not
// these building blocks.

// DB returns the Coordinator's underlying connection.
func (c *Coordinator) DB() *sql.DB { return c.db }

// NormalizeOptions returns the Coordinator's configured normalize policy.
func (c *Coordinator) NormalizeOptions() normalize.Options { return c.normalizeOpts }

// SavepointInterval returns the configured periodic-commit boundary.
func (c *Coordinator) SavepointInterval() int { return c.savepointInterval }

// Logger returns the Coordinator's structured logger.
func (c *Coordinator) Logger() *zap.Logger { return c.log }

// StartImport inserts and immediately commits a new imports row, per
// spec.md §4.4's Starting state, and returns its id.
func (c *Coordinator) StartImport(sourceFile string) (int64, error) {
	return c.startImport(sourceFile)
}

// InsertPage writes one page row under tx.
func (c *Coordinator) InsertPage(tx *sql.Tx, importID int64, p *har.Page) error {
	return insertPage(tx, importID, p)
}

// InsertRecord submits rec's blobs and writes its entry (and any
// GraphQL field) rows under tx.
func (c *Coordinator) InsertRecord(tx *sql.Tx, importID int64, rec normalize.Record) error {
	return c.insertRecord(tx, importID, rec)
}

// EntryHashExists reports whether hash is already present in entries,
// visible to tx (including tx's own uncommitted inserts).
func (c *Coordinator) EntryHashExists(tx *sql.Tx, hash string) (bool, error) {
	return entryHashExists(tx, hash)
}

// FinishImport updates one imports row's closing counters under tx. If
// causeErr is non-nil the row is left in_progress (so a later --resume
// can pick it back up, per spec.md's Aborted state); otherwise it is
// marked complete.
func (c *Coordinator) FinishImport(tx *sql.Tx, importID int64, total, inserted, skipped int, causeErr error) error {
	if causeErr != nil {
		_, err := tx.Exec(
			`UPDATE imports SET entries_total = ?, entry_count = entry_count + ?, entries_skipped = entries_skipped + ?, error = ? WHERE id = ?`,
			total, inserted, skipped, causeErr.Error(), importID,
		)
		if err != nil {
			return &SchemaError{Stmt: "record aborted import", Err: err}
		}
		return nil
	}
	_, err := tx.Exec(
		`UPDATE imports SET entries_total = ?, entry_count = entry_count + ?, entries_skipped = entries_skipped + ?, status = 'complete', completed_at = ? WHERE id = ?`,
		total, inserted, skipped, time.Now().UTC().Format(time.RFC3339), importID,
	)
	if err != nil {
		return &SchemaError{Stmt: "complete import row", Err: err}
	}
	return nil
}
