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
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"harbase.dev/harbase/pkg/dbschema"
	"harbase.dev/harbase/pkg/fts"
	"harbase.dev/harbase/pkg/normalize"
	"harbase.dev/harbase/pkg/sizeutil"
	"harbase.dev/harbase/pkg/store"
)

func harFixture(entries int) string {
	entryJSON := ""
	for i := 0; i < entries; i++ {
		if i > 0 {
			entryJSON += ","
		}
		entryJSON += fmt.Sprintf(`{
			"startedDateTime": "2024-01-0%dT00:00:00.000Z",
			"time": 5,
			"request": {"method": "GET", "url": "https://example.test/p/%d", "httpVersion": "HTTP/1.1", "headers": [], "cookies": [], "queryString": []},
			"response": {"status": 200, "statusText": "OK", "httpVersion": "HTTP/1.1", "headers": [], "cookies": [],
				"content": {"size": 2, "mimeType": "text/plain", "text": "ok"}},
			"cache": {},
			"timings": {"send": 0, "wait": 1, "receive": 1}
		}`, (i%9)+1, i)
	}
	return fmt.Sprintf(`{"log": {"version": "1.2", "creator": {"name": "t", "version": "1"}, "pages": [], "entries": [%s]}}`, entryJSON)
}

func writeFixture(t *testing.T, dir, name string, entries int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(harFixture(entries)), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestCoordinator(t *testing.T) (*Coordinator, *sql.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := dbschema.Open(filepath.Join(dir, "test.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	st, err := store.New(store.Config{})
	if err != nil {
		t.Fatal(err)
	}
	maintainer := fts.New(fts.DefaultMaxBodyBytes, fts.Unicode61)
	if err := maintainer.EnsureTable(db); err != nil {
		t.Fatal(err)
	}

	c := New(db, st, maintainer, Options{
		Normalize: normalize.Options{StoreBodies: true, MaxBodySize: sizeutil.Unlimited},
	})
	return c, db
}

func TestImportFreshInsertsAllEntries(t *testing.T) {
	c, db := newTestCoordinator(t)
	dir := t.TempDir()
	path := writeFixture(t, dir, "a.har", 5)

	st, err := c.Import(context.Background(), path, Filter{}, ModeFresh)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if st.EntryCount != 5 {
		t.Errorf("EntryCount = %d, want 5", st.EntryCount)
	}
	if st.Status != "complete" {
		t.Errorf("Status = %q", st.Status)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("entries table has %d rows, want 5", count)
	}
}

func TestImportFilterByURLRegex(t *testing.T) {
	c, _ := newTestCoordinator(t)
	dir := t.TempDir()
	path := writeFixture(t, dir, "a.har", 4)

	f := Filter{URLPattern: `/p/[13]$`}
	st, err := c.Import(context.Background(), path, f, ModeFresh)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if st.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2 (urls ending /p/1 and /p/3)", st.EntryCount)
	}
}

func TestImportIncrementalSkipsDuplicateAcrossImports(t *testing.T) {
	c, _ := newTestCoordinator(t)
	dir := t.TempDir()
	path1 := writeFixture(t, dir, "a.har", 3)

	if _, err := c.Import(context.Background(), path1, Filter{}, ModeIncremental); err != nil {
		t.Fatalf("first import: %v", err)
	}

	// Second file with identical entry content (same bytes -> same
	// entry_hash) should be entirely skipped under incremental dedup.
	path2 := writeFixture(t, dir, "b.har", 3)
	st, err := c.Import(context.Background(), path2, Filter{}, ModeIncremental)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if st.EntryCount != 0 {
		t.Errorf("EntryCount = %d, want 0 (all duplicates)", st.EntryCount)
	}
	if st.EntriesSkipped != 3 {
		t.Errorf("EntriesSkipped = %d, want 3", st.EntriesSkipped)
	}
}

func TestResumeRequiresInProgressImport(t *testing.T) {
	c, _ := newTestCoordinator(t)
	dir := t.TempDir()
	path := writeFixture(t, dir, "a.har", 2)

	_, err := c.Import(context.Background(), path, Filter{}, ModeResume)
	if err == nil {
		t.Fatal("expected an error resuming a file with no in-progress import")
	}
}

func TestPreviewDoesNotWrite(t *testing.T) {
	c, db := newTestCoordinator(t)
	dir := t.TempDir()
	path := writeFixture(t, dir, "a.har", 4)

	st, err := c.Preview(path, Filter{}, false)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if st.EntriesTotal != 4 || st.EntriesMatched != 4 {
		t.Errorf("Preview stats = %+v", st)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Preview must not write entries, found %d", count)
	}
}

func TestDeleteCascadesAndReleasesBlobs(t *testing.T) {
	c, db := newTestCoordinator(t)
	dir := t.TempDir()
	path := writeFixture(t, dir, "a.har", 3)

	st, err := c.Import(context.Background(), path, Filter{}, ModeFresh)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if err := c.Delete(st.ImportID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var entryCount, blobCount, importCount int
	db.QueryRow(`SELECT count(*) FROM entries`).Scan(&entryCount)
	db.QueryRow(`SELECT count(*) FROM blobs`).Scan(&blobCount)
	db.QueryRow(`SELECT count(*) FROM imports`).Scan(&importCount)
	if entryCount != 0 {
		t.Errorf("entries remain after delete: %d", entryCount)
	}
	if blobCount != 0 {
		t.Errorf("blobs remain after delete: %d", blobCount)
	}
	if importCount != 0 {
		t.Errorf("imports remain after delete: %d", importCount)
	}
}

func TestMergeReplaysEntriesUnderFreshImportID(t *testing.T) {
	srcDir := t.TempDir()
	srcDBPath := filepath.Join(srcDir, "src.db")
	srcDB, err := dbschema.Open(srcDBPath, false)
	if err != nil {
		t.Fatal(err)
	}
	srcStore, err := store.New(store.Config{})
	if err != nil {
		t.Fatal(err)
	}
	srcMaintainer := fts.New(fts.DefaultMaxBodyBytes, fts.Unicode61)
	if err := srcMaintainer.EnsureTable(srcDB); err != nil {
		t.Fatal(err)
	}
	srcCoord := New(srcDB, srcStore, srcMaintainer, Options{
		Normalize: normalize.Options{StoreBodies: true, MaxBodySize: sizeutil.Unlimited},
	})
	harPath := writeFixture(t, srcDir, "src.har", 2)
	if _, err := srcCoord.Import(context.Background(), harPath, Filter{}, ModeFresh); err != nil {
		t.Fatalf("seed import: %v", err)
	}
	srcDB.Close()

	dst, dstDB := newTestCoordinator(t)
	st, err := dst.Merge([]MergeSource{{Path: srcDBPath}}, false)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if st.EntryCount != 2 {
		t.Errorf("merged EntryCount = %d, want 2", st.EntryCount)
	}

	var count int
	if err := dstDB.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("destination entries = %d, want 2", count)
	}
}
