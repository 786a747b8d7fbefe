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
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"harbase.dev/harbase/pkg/blob"
	"harbase.dev/harbase/pkg/dbschema"
	"harbase.dev/harbase/pkg/store"
)

// MergeSource names one source database to fold into the Coordinator's
// database, and how to read blobs that database externalized.
type MergeSource struct {
	Path          string
	ExternalRoot  string // empty if the source used inline storage only
	ExternalDepth int
}

// Merge replays every import in each source, in order, into fresh
// import_ids on the destination — concatenation semantics (spec.md
// §4.4): no attempt is made to interleave or reconcile timelines across
// sources. When dedup is true, entry_hash is checked globally against
// the destination, exactly as ModeIncremental does for a fresh import.
func (c *Coordinator) Merge(sources []MergeSource, dedup bool) (Stats, error) {
	var agg Stats
	for _, src := range sources {
		st, err := c.mergeOne(src, dedup)
		if err != nil {
			return agg, fmt.Errorf("importer: merge %s: %w", src.Path, err)
		}
		agg.EntryCount += st.EntryCount
		agg.EntriesSkipped += st.EntriesSkipped
		agg.EntriesTotal += st.EntriesTotal
	}
	return agg, nil
}

func (c *Coordinator) mergeOne(src MergeSource, dedup bool) (Stats, error) {
	srcDB, err := dbschema.Open(src.Path, true)
	if err != nil {
		return Stats{}, &IoError{Path: src.Path, Err: err}
	}
	defer srcDB.Close()
	// mergeImport queries srcDB (blobs, graphql_fields) while its entry
	// rows are still open, which needs a second connection.
	srcDB.SetMaxOpenConns(2)

	srcStore, err := store.New(store.Config{External: src.ExternalRoot != "", Root: src.ExternalRoot, Depth: src.ExternalDepth})
	if err != nil {
		return Stats{}, err
	}

	importRows, err := srcDB.Query(`SELECT id, source_file FROM imports ORDER BY id`)
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "scan source imports", Err: err}
	}
	defer importRows.Close()

	type srcImport struct {
		id         int64
		sourceFile string
	}
	var imports []srcImport
	for importRows.Next() {
		var si srcImport
		if err := importRows.Scan(&si.id, &si.sourceFile); err != nil {
			return Stats{}, &SchemaError{Stmt: "scan source import row", Err: err}
		}
		imports = append(imports, si)
	}
	if err := importRows.Err(); err != nil {
		return Stats{}, err
	}

	var agg Stats
	for _, si := range imports {
		st, err := c.mergeImport(srcDB, srcStore, si.id, si.sourceFile, dedup)
		if err != nil {
			return agg, err
		}
		agg.EntryCount += st.EntryCount
		agg.EntriesSkipped += st.EntriesSkipped
		agg.EntriesTotal += st.EntriesTotal
	}
	return agg, nil
}

func (c *Coordinator) mergeImport(srcDB *sql.DB, srcStore *store.Store, srcImportID int64, sourceFile string, dedup bool) (Stats, error) {
	newID, err := c.startImport(sourceFile)
	if err != nil {
		return Stats{}, err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "begin merge transaction", Err: err}
	}
	defer tx.Rollback()

	pageRows, err := srcDB.Query(
		`SELECT page_id, title, started_at, on_content_load, on_load, extensions FROM pages WHERE import_id = ?`,
		srcImportID,
	)
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "scan source pages", Err: err}
	}
	for pageRows.Next() {
		var (
			pageID, title, startedAt, extensions sql.NullString
			onContentLoad, onLoad                sql.NullFloat64
		)
		if err := pageRows.Scan(&pageID, &title, &startedAt, &onContentLoad, &onLoad, &extensions); err != nil {
			pageRows.Close()
			return Stats{}, &SchemaError{Stmt: "scan source page row", Err: err}
		}
		if _, err := tx.Exec(
			`INSERT INTO pages(import_id, page_id, title, started_at, on_content_load, on_load, extensions) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			newID, pageID.String, title.String, startedAt.String, nullFloat(onContentLoad), nullFloat(onLoad), nullStr(extensions),
		); err != nil {
			pageRows.Close()
			return Stats{}, &SchemaError{Stmt: "insert merged page", Err: err}
		}
	}
	pageErr := pageRows.Err()
	pageRows.Close()
	if pageErr != nil {
		return Stats{}, pageErr
	}

	entryRows, err := srcDB.Query(`SELECT * FROM entries WHERE import_id = ?`, srcImportID)
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "scan source entries", Err: err}
	}
	defer entryRows.Close()

	cols, err := entryRows.Columns()
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "read entries columns", Err: err}
	}

	var total, inserted, skipped int
	for entryRows.Next() {
		total++
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := entryRows.Scan(ptrs...); err != nil {
			return Stats{}, &SchemaError{Stmt: "scan source entry row", Err: err}
		}
		row := columnMap(cols, values)

		entryHash, _ := row["entry_hash"].(string)
		if dedup && entryHash != "" {
			exists, err := entryHashExists(tx, entryHash)
			if err != nil {
				return Stats{}, err
			}
			if exists {
				skipped++
				continue
			}
		}

		if err := c.replayBlob(tx, srcDB, srcStore, row, "request_body_hash", "request_body_size"); err != nil {
			return Stats{}, err
		}
		if err := c.replayBlob(tx, srcDB, srcStore, row, "response_body_hash", "response_body_size"); err != nil {
			return Stats{}, err
		}
		if err := c.replayBlob(tx, srcDB, srcStore, row, "response_body_hash_raw", "response_body_size_raw"); err != nil {
			return Stats{}, err
		}

		entryID, err := insertMergedEntry(tx, newID, row)
		if err != nil {
			return Stats{}, err
		}

		fieldRows, err := srcDB.Query(`SELECT field FROM graphql_fields WHERE entry_id = ?`, row["id"])
		if err != nil {
			return Stats{}, &SchemaError{Stmt: "scan source graphql_fields", Err: err}
		}
		for fieldRows.Next() {
			var field string
			if err := fieldRows.Scan(&field); err != nil {
				fieldRows.Close()
				return Stats{}, &SchemaError{Stmt: "scan graphql field", Err: err}
			}
			if _, err := tx.Exec(`INSERT OR IGNORE INTO graphql_fields(entry_id, field) VALUES (?, ?)`, entryID, field); err != nil {
				fieldRows.Close()
				return Stats{}, &SchemaError{Stmt: "insert merged graphql field", Err: err}
			}
		}
		fieldErr := fieldRows.Err()
		fieldRows.Close()
		if fieldErr != nil {
			return Stats{}, fieldErr
		}

		inserted++
	}
	if err := entryRows.Err(); err != nil {
		return Stats{}, err
	}

	if _, err := tx.Exec(
		`UPDATE imports SET entries_total = ?, entry_count = ?, entries_skipped = ?, status = 'complete', completed_at = ? WHERE id = ?`,
		total, inserted, skipped, time.Now().UTC().Format(time.RFC3339), newID,
	); err != nil {
		return Stats{}, &SchemaError{Stmt: "complete merged import", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Stats{}, &SchemaError{Stmt: "commit merge", Err: err}
	}

	c.log.Info("merged import", zap.String("source_file", sourceFile), zap.Int64("import_id", newID), zap.Int("entry_count", inserted))
	return Stats{ImportID: newID, Status: "complete", EntriesTotal: total, EntryCount: inserted, EntriesSkipped: skipped}, nil
}

// replayBlob copies one blob named by row[hashCol] from the source
// database into the destination store, if that column is non-NULL.
func (c *Coordinator) replayBlob(tx *sql.Tx, srcDB *sql.DB, srcStore *store.Store, row map[string]interface{}, hashCol, sizeCol string) error {
	hashVal, _ := row[hashCol].(string)
	if hashVal == "" {
		return nil
	}
	ref, ok := blob.Parse(hashVal)
	if !ok {
		return fmt.Errorf("importer: merge: malformed blob hash %q in column %s", hashVal, hashCol)
	}

	var mime string
	if err := srcDB.QueryRow(`SELECT mime_type FROM blobs WHERE hash = ?`, ref.String()).Scan(&mime); err != nil {
		return &SchemaError{Stmt: "read source blob mime_type", Err: err}
	}

	rc, _, err := srcStore.Fetch(srcDB, ref)
	if err != nil {
		return fmt.Errorf("importer: merge: fetch source blob %s: %w", ref, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("importer: merge: read source blob %s: %w", ref, err)
	}

	if _, err := c.store.Submit(tx, data, mime); err != nil {
		return err
	}
	if hashCol == "response_body_hash" && c.fts != nil {
		return c.fts.MaintainInsert(tx, ref, mime, data)
	}
	return nil
}

func insertMergedEntry(tx *sql.Tx, newImportID int64, row map[string]interface{}) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO entries(
			import_id, page_id, entry_hash, started_at, time_ms, method, url, host, path, query_string,
			http_version, status, status_text, is_redirect,
			request_headers, request_cookies, request_body_hash, request_body_size,
			response_headers, response_cookies, response_mime_type,
			response_body_hash, response_body_size, response_body_hash_raw, response_body_size_raw,
			content_encoding, graphql_operation_type, graphql_operation_name, graphql_batch_index,
			request_extensions, response_extensions, content_extensions, timings_extensions,
			postdata_extensions, entry_extensions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newImportID, row["page_id"], row["entry_hash"], row["started_at"], row["time_ms"], row["method"], row["url"],
		row["host"], row["path"], row["query_string"], row["http_version"], row["status"], row["status_text"], row["is_redirect"],
		row["request_headers"], row["request_cookies"], row["request_body_hash"], row["request_body_size"],
		row["response_headers"], row["response_cookies"], row["response_mime_type"],
		row["response_body_hash"], row["response_body_size"], row["response_body_hash_raw"], row["response_body_size_raw"],
		row["content_encoding"], row["graphql_operation_type"], row["graphql_operation_name"], row["graphql_batch_index"],
		row["request_extensions"], row["response_extensions"], row["content_extensions"], row["timings_extensions"],
		row["postdata_extensions"], row["entry_extensions"],
	)
	if err != nil {
		return 0, &SchemaError{Stmt: "insert merged entry", Err: err}
	}
	return res.LastInsertId()
}

func columnMap(cols []string, values []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(cols))
	for i, c := range cols {
		m[c] = values[i]
	}
	return m
}

func nullFloat(n sql.NullFloat64) interface{} {
	if !n.Valid {
		return nil
	}
	return n.Float64
}

func nullStr(n sql.NullString) interface{} {
	if !n.Valid {
		return nil
	}
	return n.String
}
