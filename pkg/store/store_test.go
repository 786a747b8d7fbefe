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

package store_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"harbase.dev/harbase/pkg/dbschema"
	"harbase.dev/harbase/pkg/store"
	"harbase.dev/harbase/pkg/storetest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := dbschema.Open(filepath.Join(dir, "test.db"), false)
	if err != nil {
		t.Fatalf("dbschema.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInlineConfigContract and TestExternalConfigContract run the
// shared submit/fetch/dedup/release contract (pkg/storetest) against
// both of Config's storage modes, so the two variants are held to the
// same invariants instead of each growing its own hand-rolled checks.

func TestInlineConfigContract(t *testing.T) {
	storetest.Test(t, func(t *testing.T) (*store.Store, *sql.DB, func()) {
		db := openTestDB(t)
		s, err := store.New(store.Config{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s, db, nil
	})
}

func TestExternalConfigContract(t *testing.T) {
	storetest.Test(t, func(t *testing.T) (*store.Store, *sql.DB, func()) {
		db := openTestDB(t)
		s, err := store.New(store.Config{External: true, Root: t.TempDir(), Depth: 2})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s, db, nil
	})
}

// TestSubmitExternalWritesFile checks the one behavior that is
// specific to external mode and so falls outside the shared contract:
// the blob actually lands on disk at the expected sharded path.
func TestSubmitExternalWritesFile(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	s, err := store.New(store.Config{External: true, Root: root, Depth: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	sr, err := s.Submit(tx, []byte("external content"), "text/plain")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(append([]string{root}, sr.Ref.DirSharded(2)...)...)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected external file at %s: %v", path, err)
	}
}
