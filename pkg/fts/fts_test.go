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

package fts

import (
	"path/filepath"
	"testing"

	"harbase.dev/harbase/pkg/blob"
	"harbase.dev/harbase/pkg/dbschema"
)

func TestParseTokenizer(t *testing.T) {
	cases := map[string]Tokenizer{
		"":          Unicode61,
		"unicode61": Unicode61,
		"Porter":    Porter,
		"trigram":   Trigram,
	}
	for in, want := range cases {
		got, err := ParseTokenizer(in)
		if err != nil {
			t.Fatalf("ParseTokenizer(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseTokenizer(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseTokenizer("bogus"); err == nil {
		t.Error("expected an error for an unknown tokenizer")
	}
}

func TestMaintainInsertAndSearch(t *testing.T) {
	db, err := dbschema.Open(filepath.Join(t.TempDir(), "t.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	m := New(DefaultMaxBodyBytes, Unicode61)
	if err := m.EnsureTable(db); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	body := []byte(`{"greeting": "hello searchable world"}`)
	ref := blob.Sum(body)

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(
		`INSERT INTO blobs(hash, size, mime_type, content, ref_count) VALUES (?, ?, ?, ?, 1)`,
		ref.String(), len(body), "application/json", body,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(
		`INSERT INTO imports(source_file, status, started_at) VALUES ('t.har', 'complete', '2024-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(
		`INSERT INTO entries(import_id, started_at, method, url, status, response_body_hash) VALUES (1, '2024-01-01T00:00:00Z', 'GET', 'https://example.test/a', 200, ?)`,
		ref.String(),
	); err != nil {
		t.Fatal(err)
	}
	if err := m.MaintainInsert(tx, ref, "application/json", body); err != nil {
		t.Fatalf("MaintainInsert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	results, err := Search(db, "searchable", ByRank, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].URL != "https://example.test/a" {
		t.Errorf("URL = %q", results[0].URL)
	}
}

func TestMaintainInsertSkipsOversize(t *testing.T) {
	db, err := dbschema.Open(filepath.Join(t.TempDir(), "t.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	m := New(4, Unicode61) // tiny cap forces rejection
	if err := m.EnsureTable(db); err != nil {
		t.Fatal(err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	body := []byte("this body is longer than four bytes")
	ref := blob.Sum(body)
	if err := m.MaintainInsert(tx, ref, "text/plain", body); err != nil {
		t.Fatalf("MaintainInsert: %v", err)
	}

	var count int
	if err := tx.QueryRow(`SELECT count(*) FROM response_body_fts`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected oversize body to be skipped, got count=%d", count)
	}
}

func TestRebuildRepopulatesFromEntries(t *testing.T) {
	db, err := dbschema.Open(filepath.Join(t.TempDir(), "t.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	m := New(DefaultMaxBodyBytes, Unicode61)
	if err := m.EnsureTable(db); err != nil {
		t.Fatal(err)
	}

	body := []byte("findable rebuild content")
	ref := blob.Sum(body)
	if _, err := db.Exec(
		`INSERT INTO blobs(hash, size, mime_type, content, ref_count) VALUES (?, ?, ?, ?, 1)`,
		ref.String(), len(body), "text/plain", body,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT INTO imports(source_file, status, started_at) VALUES ('t.har', 'complete', '2024-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT INTO entries(import_id, started_at, method, url, status, response_body_hash) VALUES (1, '2024-01-01T00:00:00Z', 'GET', 'https://example.test/b', 200, ?)`,
		ref.String(),
	); err != nil {
		t.Fatal(err)
	}

	n, err := m.Rebuild(db, Porter)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 1 {
		t.Errorf("Rebuild indexed %d rows, want 1", n)
	}

	results, err := Search(db, "findable", ByRank, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after rebuild, got %d", len(results))
	}
}
