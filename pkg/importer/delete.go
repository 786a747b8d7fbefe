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

	"go.uber.org/zap"

	"harbase.dev/harbase/pkg/blob"
)

// Delete removes importID's pages and entries, releasing each
// referenced blob's ref_count and reclaiming any blob (and its external
// file) that drops to zero, child-first so the cascade is always safe
// (spec.md §9 "Cycle-free ownership... deletion cascades are safe if
// performed child-first").
func (c *Coordinator) Delete(importID int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return &SchemaError{Stmt: "begin delete transaction", Err: err}
	}
	defer tx.Rollback()

	refs, err := entryBlobRefs(tx, importID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM graphql_fields WHERE entry_id IN (SELECT id FROM entries WHERE import_id = ?)`, importID); err != nil {
		return &SchemaError{Stmt: "delete graphql_fields", Err: err}
	}
	if _, err := tx.Exec(`DELETE FROM entries WHERE import_id = ?`, importID); err != nil {
		return &SchemaError{Stmt: "delete entries", Err: err}
	}
	if _, err := tx.Exec(`DELETE FROM pages WHERE import_id = ?`, importID); err != nil {
		return &SchemaError{Stmt: "delete pages", Err: err}
	}

	counts := make(map[blob.Ref]int)
	for _, r := range refs {
		counts[r]++
	}
	for ref, n := range counts {
		if err := c.store.Release(tx, ref, n); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM imports WHERE id = ?`, importID); err != nil {
		return &SchemaError{Stmt: "delete imports row", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &SchemaError{Stmt: "commit delete", Err: err}
	}
	c.log.Info("deleted import", zap.Int64("import_id", importID), zap.Int("blobs_released", len(counts)))
	return nil
}

// entryBlobRefs collects every blob reference owned by importID's
// entries, one slice element per reference (so a hash referenced by two
// entries in the same import is released twice).
func entryBlobRefs(tx *sql.Tx, importID int64) ([]blob.Ref, error) {
	rows, err := tx.Query(
		`SELECT request_body_hash, response_body_hash, response_body_hash_raw FROM entries WHERE import_id = ?`,
		importID,
	)
	if err != nil {
		return nil, &SchemaError{Stmt: "scan entries for blob refs", Err: err}
	}
	defer rows.Close()

	var refs []blob.Ref
	for rows.Next() {
		var reqHash, respHash, respHashRaw sql.NullString
		if err := rows.Scan(&reqHash, &respHash, &respHashRaw); err != nil {
			return nil, &SchemaError{Stmt: "scan blob ref columns", Err: err}
		}
		for _, ns := range []sql.NullString{reqHash, respHash, respHashRaw} {
			if !ns.Valid {
				continue
			}
			ref, ok := blob.Parse(ns.String)
			if ok {
				refs = append(refs, ref)
			}
		}
	}
	return refs, rows.Err()
}
