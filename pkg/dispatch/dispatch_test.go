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

package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"harbase.dev/harbase/pkg/dbschema"
	"harbase.dev/harbase/pkg/fts"
	"harbase.dev/harbase/pkg/importer"
	"harbase.dev/harbase/pkg/normalize"
	"harbase.dev/harbase/pkg/sizeutil"
	"harbase.dev/harbase/pkg/store"
)

func fixtureHAR(entries int, urlPrefix string) string {
	entryJSON := ""
	for i := 0; i < entries; i++ {
		if i > 0 {
			entryJSON += ","
		}
		entryJSON += fmt.Sprintf(`{
			"startedDateTime": "2024-01-01T00:00:0%dZ",
			"time": 1,
			"request": {"method": "GET", "url": "https://example.test/%s/%d", "httpVersion": "HTTP/1.1", "headers": [], "cookies": [], "queryString": []},
			"response": {"status": 200, "statusText": "OK", "httpVersion": "HTTP/1.1", "headers": [], "cookies": [],
				"content": {"size": 2, "mimeType": "text/plain", "text": "ok"}},
			"cache": {},
			"timings": {"send": 0, "wait": 1, "receive": 1}
		}`, i%9, urlPrefix, i)
	}
	return fmt.Sprintf(`{"log": {"version": "1.2", "creator": {"name": "t", "version": "1"}, "pages": [], "entries": [%s]}}`, entryJSON)
}

func writeFixture(t *testing.T, dir, name, prefix string, entries int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(fixtureHAR(entries, prefix)), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestImportAllProcessesEveryFileIndependently(t *testing.T) {
	dir := t.TempDir()
	db, err := dbschema.Open(filepath.Join(dir, "t.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	st, err := store.New(store.Config{})
	if err != nil {
		t.Fatal(err)
	}
	maintainer := fts.New(fts.DefaultMaxBodyBytes, fts.Unicode61)
	if err := maintainer.EnsureTable(db); err != nil {
		t.Fatal(err)
	}
	coord := importer.New(db, st, maintainer, importer.Options{
		Normalize: normalize.Options{StoreBodies: true, MaxBodySize: sizeutil.Unlimited},
	})

	paths := []string{
		writeFixture(t, dir, "a.har", "a", 3),
		writeFixture(t, dir, "b.har", "b", 4),
		writeFixture(t, dir, "c.har", "c", 2),
	}

	d := New(coord, 3)
	results, err := d.ImportAll(context.Background(), paths, importer.Filter{}, false)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	want := map[string]int{paths[0]: 3, paths[1]: 4, paths[2]: 2}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s: unexpected error %v", r.Path, r.Err)
		}
		if r.Stats.EntryCount != want[r.Path] {
			t.Errorf("%s: EntryCount = %d, want %d", r.Path, r.Stats.EntryCount, want[r.Path])
		}
		if r.Stats.Status != "complete" {
			t.Errorf("%s: Status = %q", r.Path, r.Stats.Status)
		}
	}

	var total int
	if err := db.QueryRow(`SELECT count(*) FROM entries`).Scan(&total); err != nil {
		t.Fatal(err)
	}
	if total != 9 {
		t.Errorf("entries table has %d rows, want 9", total)
	}
}

func TestImportAllIsolatesPerFileFailure(t *testing.T) {
	dir := t.TempDir()
	db, err := dbschema.Open(filepath.Join(dir, "t.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	st, err := store.New(store.Config{})
	if err != nil {
		t.Fatal(err)
	}
	maintainer := fts.New(fts.DefaultMaxBodyBytes, fts.Unicode61)
	if err := maintainer.EnsureTable(db); err != nil {
		t.Fatal(err)
	}
	coord := importer.New(db, st, maintainer, importer.Options{})

	goodPath := writeFixture(t, dir, "good.har", "g", 2)
	badPath := filepath.Join(dir, "missing.har") // never written: produce() hits a real open error

	d := New(coord, 2)
	results, err := d.ImportAll(context.Background(), []string{goodPath, badPath}, importer.Filter{}, false)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}

	byPath := map[string]FileResult{}
	for _, r := range results {
		byPath[r.Path] = r
	}
	if byPath[goodPath].Err != nil {
		t.Errorf("good file should succeed, got %v", byPath[goodPath].Err)
	}
	if byPath[goodPath].Stats.EntryCount != 2 {
		t.Errorf("good file EntryCount = %d, want 2", byPath[goodPath].Stats.EntryCount)
	}
	if byPath[badPath].Err == nil {
		t.Error("missing file should report an error")
	}
}
