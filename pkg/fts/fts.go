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

// Package fts maintains the response_body_fts virtual table: a
// full-text index over textual response bodies, keyed by blob hash so
// a body shared by many entries is indexed exactly once, mirroring the
// transactional reindex style of Perkeep's pkg/index/sqlite.
package fts

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"harbase.dev/harbase/pkg/blob"
)

// Tokenizer names the FTS5 tokenizers spec.md allows at rebuild time.
// Expressing this as an enum, rather than a raw string, makes an
// invalid tokenizer a compile-time impossibility from Go callers.
type Tokenizer int

const (
	Unicode61 Tokenizer = iota
	Porter
	Trigram
)

// String renders the tokenizer as the FTS5 `tokenize=` argument.
func (t Tokenizer) String() string {
	switch t {
	case Porter:
		return "porter"
	case Trigram:
		return "trigram"
	default:
		return "unicode61"
	}
}

// ParseTokenizer validates a CLI-supplied tokenizer name.
func ParseTokenizer(s string) (Tokenizer, error) {
	switch strings.ToLower(s) {
	case "", "unicode61":
		return Unicode61, nil
	case "porter":
		return Porter, nil
	case "trigram":
		return Trigram, nil
	default:
		return 0, fmt.Errorf("fts: unknown tokenizer %q (want unicode61, porter, or trigram)", s)
	}
}

// DefaultMaxBodyBytes is the size cap spec.md §4.5 requires above which
// a textual body is not indexed.
const DefaultMaxBodyBytes = 1 << 20 // 1MiB

// Maintainer owns the response_body_fts virtual table.
type Maintainer struct {
	MaxBodyBytes int64
	Tokenizer    Tokenizer
}

// New returns a Maintainer with spec.md defaults; zero-value MaxBodyBytes
// falls back to DefaultMaxBodyBytes.
func New(maxBodyBytes int64, tok Tokenizer) *Maintainer {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Maintainer{MaxBodyBytes: maxBodyBytes, Tokenizer: tok}
}

// EnsureTable creates response_body_fts if it does not already exist,
// using m.Tokenizer. Called once at database open time; changing the
// tokenizer afterward requires Rebuild.
func (m *Maintainer) EnsureTable(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='response_body_fts'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("fts: check table existence: %w", err)
	}
	if count > 0 {
		return nil
	}
	stmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE response_body_fts USING fts5(hash UNINDEXED, body, tokenize='%s')`,
		m.Tokenizer.String(),
	)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("fts: create virtual table: %w", err)
	}
	return nil
}

// eligible reports whether body/mime/size qualify for indexing under
// spec.md §4.5: textual MIME, decodes as UTF-8, and under the cap.
func (m *Maintainer) eligible(body []byte, mime string) bool {
	if int64(len(body)) > m.MaxBodyBytes {
		return false
	}
	if !isTextualMime(mime) {
		return false
	}
	return utf8.Valid(body)
}

var textualNeedles = []string{
	"text/", "json", "javascript", "xml", "html", "svg", "yaml", "graphql",
}

func isTextualMime(mime string) bool {
	mime = strings.ToLower(mime)
	for _, needle := range textualNeedles {
		if strings.Contains(mime, needle) {
			return true
		}
	}
	return false
}

// MaintainInsert indexes one response body if eligible. An fts5 table
// has no unique key, so the hash is looked up first: a hash already
// present (from an earlier entry, possibly in a different import)
// contributes no duplicate row.
func (m *Maintainer) MaintainInsert(tx *sql.Tx, ref blob.Ref, mime string, body []byte) error {
	if !m.eligible(body, mime) {
		return nil
	}
	var one int
	switch err := tx.QueryRow(`SELECT 1 FROM response_body_fts WHERE hash = ? LIMIT 1`, ref.String()).Scan(&one); {
	case err == nil:
		return nil
	case err != sql.ErrNoRows:
		return fmt.Errorf("fts: look up blob %s: %w", ref, err)
	}
	_, err := tx.Exec(`INSERT OR IGNORE INTO response_body_fts(hash, body) VALUES (?, ?)`, ref.String(), string(body))
	if err != nil {
		return fmt.Errorf("fts: index blob %s: %w", ref, err)
	}
	return nil
}

// Rebuild drops and recreates response_body_fts with tok, then
// re-populates it from every distinct response body hash referenced by
// entries whose blob MIME is textual, mirroring the teacher's
// drop/recreate/repopulate reindex pattern. The whole operation runs in
// one transaction.
func (m *Maintainer) Rebuild(db *sql.DB, tok Tokenizer) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("fts: begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS response_body_fts`); err != nil {
		return 0, fmt.Errorf("fts: drop table: %w", err)
	}
	stmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE response_body_fts USING fts5(hash UNINDEXED, body, tokenize='%s')`,
		tok.String(),
	)
	if _, err := tx.Exec(stmt); err != nil {
		return 0, fmt.Errorf("fts: create table: %w", err)
	}

	rows, err := tx.Query(`
		SELECT DISTINCT b.hash, b.content, b.external_path, b.mime_type
		FROM blobs b
		JOIN entries e ON e.response_body_hash = b.hash
	`)
	if err != nil {
		return 0, fmt.Errorf("fts: scan candidate blobs: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			hash, mime   string
			content      []byte
			externalPath sql.NullString
		)
		if err := rows.Scan(&hash, &content, &externalPath, &mime); err != nil {
			return 0, fmt.Errorf("fts: scan row: %w", err)
		}
		body := content
		if externalPath.Valid {
			data, err := readExternal(externalPath.String)
			if err != nil {
				return 0, err
			}
			body = data
		}
		if !m.eligible(body, mime) {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO response_body_fts(hash, body) VALUES (?, ?)`, hash, string(body)); err != nil {
			return 0, fmt.Errorf("fts: reinsert %s: %w", hash, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	m.Tokenizer = tok
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("fts: commit rebuild: %w", err)
	}
	return n, nil
}
