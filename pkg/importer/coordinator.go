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

// Package importer is the Import Coordinator (spec.md §4.4): the single
// writer that owns a harbase database connection, wraps one HAR file's
// ingestion in a transaction, assigns its import_id, enforces filters,
// deduplicates against prior imports, and drives the blob store and FTS
// maintainer from inside that same transaction.
package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"harbase.dev/harbase/pkg/blob"
	"harbase.dev/harbase/pkg/fts"
	"harbase.dev/harbase/pkg/har"
	"harbase.dev/harbase/pkg/normalize"
	"harbase.dev/harbase/pkg/store"
)

// DefaultSavepointInterval is spec.md §4.4's "default ~1000" periodic
// commit boundary.
const DefaultSavepointInterval = 1000

// Options configures a Coordinator for its lifetime.
type Options struct {
	SavepointInterval int
	Normalize         normalize.Options
	Log               *zap.Logger
}

// Coordinator is the single writer over one open database.
type Coordinator struct {
	db    *sql.DB
	store *store.Store
	fts   *fts.Maintainer
	log   *zap.Logger

	savepointInterval int
	normalizeOpts     normalize.Options
}

// New builds a Coordinator. A nil opts.Log is replaced by zap.NewNop(),
// which discards all log output.
func New(db *sql.DB, st *store.Store, maintainer *fts.Maintainer, opts Options) *Coordinator {
	interval := opts.SavepointInterval
	if interval <= 0 {
		interval = DefaultSavepointInterval
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		db:                db,
		store:             st,
		fts:               maintainer,
		log:               log,
		savepointInterval: interval,
		normalizeOpts:     opts.Normalize,
	}
}

// Stats summarizes one completed or in-progress import.
type Stats struct {
	ImportID       int64
	Status         string
	EntriesTotal   int
	EntryCount     int
	EntriesSkipped int
}

// ImportMode selects dedup behavior for Import.
type ImportMode int

const (
	// ModeFresh always opens a new imports row with no dedup.
	ModeFresh ImportMode = iota
	// ModeIncremental opens a new imports row but skips any entry whose
	// entry_hash already exists anywhere in the database.
	ModeIncremental
	// ModeResume appends to the most recent in_progress import for the
	// same source_file, applying the same global entry_hash dedup.
	ModeResume
)

// Import ingests path under f and mode, returning final Stats.
func (c *Coordinator) Import(ctx context.Context, path string, f Filter, mode ImportMode) (Stats, error) {
	if err := f.Compile(); err != nil {
		return Stats{}, err
	}

	dedup := mode == ModeIncremental || mode == ModeResume
	normOpts := c.normalizeOpts
	if dedup {
		normOpts.ComputeEntryHash = true
	}

	var importID int64
	if mode == ModeResume {
		id, ok, err := c.findResumable(path)
		if err != nil {
			return Stats{}, err
		}
		if !ok {
			return Stats{}, fmt.Errorf("importer: no in-progress import found for %s to resume", path)
		}
		importID = id
		c.log.Info("resuming import", zap.String("source_file", path), zap.Int64("import_id", importID))
	} else {
		id, err := c.startImport(path)
		if err != nil {
			return Stats{}, err
		}
		importID = id
		c.log.Info("starting import", zap.String("source_file", path), zap.Int64("import_id", importID))
	}

	reader, err := har.Open(path, har.Options{})
	if err != nil {
		return Stats{}, &IoError{Path: path, Err: err}
	}
	defer reader.Close()

	stats, err := c.runImport(ctx, importID, reader, f, normOpts, dedup)
	if err != nil {
		c.log.Error("import aborted", zap.String("source_file", path), zap.Int64("import_id", importID), zap.Error(err))
		return stats, err
	}
	c.log.Info("import complete",
		zap.Int64("import_id", importID),
		zap.Int("entries_total", stats.EntriesTotal),
		zap.Int("entry_count", stats.EntryCount),
		zap.Int("entries_skipped", stats.EntriesSkipped),
	)
	return stats, nil
}

func (c *Coordinator) startImport(path string) (int64, error) {
	res, err := c.db.Exec(
		`INSERT INTO imports(source_file, status, started_at, entries_total, entries_skipped) VALUES (?, 'in_progress', ?, NULL, 0)`,
		path, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, &SchemaError{Stmt: "insert imports row", Err: err}
	}
	return res.LastInsertId()
}

func (c *Coordinator) findResumable(path string) (int64, bool, error) {
	var id int64
	err := c.db.QueryRow(
		`SELECT id FROM imports WHERE source_file = ? AND status = 'in_progress' ORDER BY id DESC LIMIT 1`,
		path,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &SchemaError{Stmt: "find resumable import", Err: err}
	}
	return id, true, nil
}

// runImport drives one HAR document through pages, then entries,
// committing every c.savepointInterval entries so a crash loses at most
// one batch's work rather than the whole import (spec.md's "periodic
// savepoints... bound rollback work and permit safe interruption").
func (c *Coordinator) runImport(ctx context.Context, importID int64, reader *har.Reader, f Filter, normOpts normalize.Options, dedup bool) (Stats, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "begin import transaction", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for {
		page, ok, err := reader.NextPage()
		if err != nil {
			return Stats{}, err
		}
		if !ok {
			break
		}
		if err := insertPage(tx, importID, page); err != nil {
			return Stats{}, err
		}
	}

	var (
		total, inserted, skipped int
		sinceCommit              int
	)
	for {
		select {
		case <-ctx.Done():
			return Stats{Status: "in_progress"}, ctx.Err()
		default:
		}

		entry, ok, err := reader.NextEntry()
		if err != nil {
			return Stats{}, err
		}
		if !ok {
			break
		}
		total++

		rec := normalize.Normalize(entry, normOpts)
		if !f.Match(rec.Row) {
			continue
		}

		if dedup {
			exists, err := entryHashExists(tx, rec.Row.EntryHash)
			if err != nil {
				return Stats{}, err
			}
			if exists {
				skipped++
				continue
			}
		}

		if err := c.insertRecord(tx, importID, rec); err != nil {
			return Stats{}, err
		}
		inserted++
		sinceCommit++

		if sinceCommit >= c.savepointInterval {
			if _, err := tx.Exec(`UPDATE imports SET entries_skipped = entries_skipped + ? WHERE id = ?`, skipped, importID); err != nil {
				return Stats{}, &SchemaError{Stmt: "update entries_skipped at savepoint", Err: err}
			}
			skipped = 0
			if err := tx.Commit(); err != nil {
				return Stats{}, &SchemaError{Stmt: "commit savepoint", Err: err}
			}
			committed = true
			tx, err = c.db.Begin()
			if err != nil {
				return Stats{}, &SchemaError{Stmt: "begin next batch transaction", Err: err}
			}
			committed = false
			sinceCommit = 0
		}
	}

	if err := reader.Err(); err != nil {
		return Stats{}, err
	}

	if _, err := tx.Exec(
		`UPDATE imports SET entries_total = ?, entry_count = entry_count + ?, entries_skipped = entries_skipped + ?, status = 'complete', completed_at = ? WHERE id = ?`,
		total, inserted, skipped, time.Now().UTC().Format(time.RFC3339), importID,
	); err != nil {
		return Stats{}, &SchemaError{Stmt: "complete import row", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Stats{}, &SchemaError{Stmt: "final commit", Err: err}
	}
	committed = true

	st, err := c.Stats(importID)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

func entryHashExists(tx *sql.Tx, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var dummy int
	err := tx.QueryRow(`SELECT 1 FROM entries WHERE entry_hash = ? LIMIT 1`, hash).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &SchemaError{Stmt: "lookup entry_hash", Err: err}
	}
	return true, nil
}

func insertPage(tx *sql.Tx, importID int64, p *har.Page) error {
	_, err := tx.Exec(
		`INSERT INTO pages(import_id, page_id, title, started_at, on_content_load, on_load, extensions)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		importID, p.ID, p.Title, p.StartedDateTime,
		nullableFloat(p.PageTimings.OnContentLoad), nullableFloat(p.PageTimings.OnLoad),
		marshalExtensions(p.Extensions),
	)
	if err != nil {
		return &SchemaError{Stmt: "insert pages row", Err: err}
	}
	return nil
}

// insertRecord submits rec's blobs (hashing, deduping, and optionally
// indexing them for full-text search) then inserts its entry row and
// any GraphQL field rows, all under tx.
func (c *Coordinator) insertRecord(tx *sql.Tx, importID int64, rec normalize.Record) error {
	for _, sub := range rec.Blobs {
		if _, err := c.store.Submit(tx, sub.Data, sub.MimeType); err != nil {
			return err
		}
		if sub.Kind == normalize.BlobResponseBody && c.fts != nil {
			ref := blob.Sum(sub.Data)
			if err := c.fts.MaintainInsert(tx, ref, sub.MimeType, sub.Data); err != nil {
				return err
			}
		}
	}

	row := rec.Row
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
		importID, nullableString(row.PageID), nullableString(row.EntryHash), row.StartedAt, row.TimeMs,
		row.Method, row.URL, nullableString(row.Host), nullableString(row.Path), nullableString(row.QueryString),
		row.HTTPVersion, row.Status, row.StatusText, boolToInt(row.IsRedirect),
		row.RequestHeaders, row.RequestCookies, nullableRef(row.RequestBodyHash), nullableInt64(row.RequestBodySize),
		row.ResponseHeaders, row.ResponseCookies, nullableString(row.ResponseMimeType),
		nullableRef(row.ResponseBodyHash), nullableInt64(row.ResponseBodySize),
		nullableRef(row.ResponseBodyHashRaw), nullableInt64(row.ResponseBodySizeRaw),
		nullableString(row.ContentEncoding), nullableString(row.GraphQLOperationType), nullableString(row.GraphQLOperationName),
		nullableIntPtr(row.GraphQLBatchIndex),
		row.RequestExtensions, row.ResponseExtensions, row.ContentExtensions, row.TimingsExtensions,
		row.PostDataExtensions, row.EntryExtensions,
	)
	if err != nil {
		return &SchemaError{Stmt: "insert entries row", Err: err}
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return &SchemaError{Stmt: "read entries.id", Err: err}
	}

	for _, field := range row.GraphQLFields {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO graphql_fields(entry_id, field) VALUES (?, ?)`,
			entryID, field,
		); err != nil {
			return &SchemaError{Stmt: "insert graphql_fields row", Err: err}
		}
	}
	return nil
}

// Stats reads back a summary row for importID, used by the CLI and
// tests to assert spec.md §8's testable properties without hand-rolled
// SQL at every call site.
func (c *Coordinator) Stats(importID int64) (Stats, error) {
	var (
		status               string
		total, count, skip   sql.NullInt64
	)
	err := c.db.QueryRow(
		`SELECT status, entries_total, entry_count, entries_skipped FROM imports WHERE id = ?`,
		importID,
	).Scan(&status, &total, &count, &skip)
	if err != nil {
		return Stats{}, &SchemaError{Stmt: "read imports row", Err: err}
	}
	return Stats{
		ImportID:       importID,
		Status:         status,
		EntriesTotal:   int(total.Int64),
		EntryCount:     int(count.Int64),
		EntriesSkipped: int(skip.Int64),
	}, nil
}

func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func nullableIntPtr(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableRef(r blob.Ref) interface{} {
	if !r.Valid() {
		return nil
	}
	return r.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalExtensions(m map[string]json.RawMessage) interface{} {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(data)
}
