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

package dbschema

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchemaAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	v, err := schemaVersion(db)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != CurrentVersion {
		t.Fatalf("schemaVersion = %d, want %d", v, CurrentVersion)
	}

	for _, table := range []string{"imports", "entries", "pages", "blobs", "graphql_fields"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db1, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db1.Close()

	db2, err := Open(path, false)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	v, err := schemaVersion(db2)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != CurrentVersion {
		t.Fatalf("schemaVersion after reopen = %d, want %d", v, CurrentVersion)
	}
}

func TestOpenReadOnlyRejectsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	ro, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open(readOnly): %v", err)
	}
	defer ro.Close()

	if _, err := ro.Exec(`INSERT INTO meta(key, value) VALUES ('x', 'y')`); err == nil {
		t.Fatal("write on read-only connection unexpectedly succeeded")
	}
}
