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

// Package storetest is a shared contract test suite for pkg/store's
// blob store, grounded on the teacher's pkg/blobserver/storagetest:
// one Opts.New constructor is exercised through a fixed sequence of
// submit/fetch/dedup/release assertions, so every backing
// configuration (inline, external-on-disk) is held to the same
// invariants instead of each growing its own ad hoc checks.
package storetest

import (
	"database/sql"
	"io"
	"os"
	"strconv"
	"testing"

	"harbase.dev/harbase/pkg/blob"
	"harbase.dev/harbase/pkg/store"
)

// Opts configures one contract-test run.
type Opts struct {
	// New is required. It must return a *store.Store and the *sql.DB
	// it is paired with, plus an optional cleanup func.
	New func(t *testing.T) (sto *store.Store, db *sql.DB, cleanup func())
}

// Test runs the contract suite with just a constructor, the common case.
func Test(t *testing.T, newFn func(t *testing.T) (*store.Store, *sql.DB, func())) {
	TestOpt(t, Opts{New: newFn})
}

// TestOpt runs the full contract suite against opt.New's store.
func TestOpt(t *testing.T, opt Opts) {
	t.Helper()
	sto, db, cleanup := opt.New(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	t.Run("SubmitThenFetchRoundTrips", func(t *testing.T) { testRoundTrip(t, sto, db) })
	t.Run("DedupIncrementsRefCount", func(t *testing.T) { testDedup(t, sto, db) })
	t.Run("HashCollisionIsDedupConflict", func(t *testing.T) { testCollision(t, sto, db) })
	t.Run("ReleaseDeletesWhenUnreferenced", func(t *testing.T) { testReleaseDeletes(t, sto, db) })
	t.Run("ReleaseKeepsWhileReferenced", func(t *testing.T) { testReleaseKeeps(t, sto, db) })
	t.Run("FetchMissingReturnsNotExist", func(t *testing.T) { testFetchMissing(t, sto, db) })
}

var contents = []string{"", "x", "hello world", "0123456789", "a fairly long blob body used to exercise larger reads"}

func testRoundTrip(t *testing.T, sto *store.Store, db *sql.DB) {
	for i, content := range contents {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			tx, err := db.Begin()
			if err != nil {
				t.Fatal(err)
			}
			sr, err := sto.Submit(tx, []byte(content), "text/plain")
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if err := tx.Commit(); err != nil {
				t.Fatal(err)
			}
			if int(sr.Size) != len(content) {
				t.Errorf("SizedRef.Size = %d, want %d", sr.Size, len(content))
			}

			rc, size, err := sto.Fetch(db, sr.Ref)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			defer rc.Close()
			if size != int64(len(content)) {
				t.Errorf("Fetch size = %d, want %d", size, len(content))
			}
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != content {
				t.Errorf("Fetch content = %q, want %q", got, content)
			}
		})
	}
}

func testDedup(t *testing.T, sto *store.Store, db *sql.DB) {
	const n = 3
	var ref blob.Ref
	for i := 0; i < n; i++ {
		tx, err := db.Begin()
		if err != nil {
			t.Fatal(err)
		}
		sr, err := sto.Submit(tx, []byte("dup-me"), "text/plain")
		if err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}
		ref = sr.Ref
	}

	var count, refCount int
	if err := db.QueryRow(`SELECT COUNT(*), ref_count FROM blobs WHERE hash = ?`, ref.String()).Scan(&count, &refCount); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one blobs row for a repeated submit, got %d", count)
	}
	if refCount != n {
		t.Errorf("ref_count = %d, want %d", refCount, n)
	}
}

func testCollision(t *testing.T, sto *store.Store, db *sql.DB) {
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	sr, err := sto.Submit(tx, []byte("collide-me"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// Simulate corruption/collision: the row's recorded size now
	// disagrees with the hash it is keyed by.
	if _, err := db.Exec(`UPDATE blobs SET size = size + 1 WHERE hash = ?`, sr.Ref.String()); err != nil {
		t.Fatal(err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx2.Rollback()
	_, err = sto.Submit(tx2, []byte("collide-me"), "text/plain")
	var conflict *store.DedupConflict
	if err == nil {
		t.Fatal("expected a DedupConflict error")
	}
	if c, ok := err.(*store.DedupConflict); ok {
		conflict = c
	} else {
		t.Fatalf("expected *store.DedupConflict, got %v (%T)", err, err)
	}
	if conflict.Hash != sr.Ref.String() {
		t.Errorf("DedupConflict.Hash = %q, want %q", conflict.Hash, sr.Ref.String())
	}
}

func testReleaseDeletes(t *testing.T, sto *store.Store, db *sql.DB) {
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	sr, err := sto.Submit(tx, []byte("release-me"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := sto.Release(tx2, sr.Ref, 1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM blobs WHERE hash = ?`, sr.Ref.String()).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected blobs row to be gone after last release, got count=%d", count)
	}
}

func testReleaseKeeps(t *testing.T, sto *store.Store, db *sql.DB) {
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	sr, err := sto.Submit(tx, []byte("shared-body"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sto.Submit(tx, []byte("shared-body"), "text/plain"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := sto.Release(tx2, sr.Ref, 1); err != nil {
		t.Fatal(err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	var refCount int
	if err := db.QueryRow(`SELECT ref_count FROM blobs WHERE hash = ?`, sr.Ref.String()).Scan(&refCount); err != nil {
		t.Fatalf("expected row to still exist: %v", err)
	}
	if refCount != 1 {
		t.Errorf("ref_count = %d, want 1", refCount)
	}
}

func testFetchMissing(t *testing.T, sto *store.Store, db *sql.DB) {
	missing := blob.Sum([]byte("storetest: never submitted"))
	if _, _, err := sto.Fetch(db, missing); !os.IsNotExist(err) {
		t.Errorf("Fetch missing ref: err = %v, want os.IsNotExist", err)
	}
}
