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
	"errors"

	"harbase.dev/harbase/pkg/har"
	"harbase.dev/harbase/pkg/normalize"
)

// PreviewStats reports what an Import call would do without writing
// anything: a natural counterpart to --incremental/--resume for an
// operator sizing up a large import beforehand.
type PreviewStats struct {
	EntriesTotal    int
	EntriesMatched  int
	EntriesFiltered int
	EntriesSkipped  int // would be skipped by entry_hash dedup
}

// Preview runs the parser and filters over path without opening a write
// transaction or touching the blob store.
func (c *Coordinator) Preview(path string, f Filter, dedup bool) (PreviewStats, error) {
	if err := f.Compile(); err != nil {
		return PreviewStats{}, err
	}

	reader, err := har.Open(path, har.Options{})
	if err != nil {
		return PreviewStats{}, &IoError{Path: path, Err: err}
	}
	defer reader.Close()

	normOpts := c.normalizeOpts
	if dedup {
		normOpts.ComputeEntryHash = true
	}

	for {
		_, ok, err := reader.NextPage()
		if err != nil {
			return PreviewStats{}, err
		}
		if !ok {
			break
		}
	}

	var st PreviewStats
	for {
		entry, ok, err := reader.NextEntry()
		if err != nil {
			return PreviewStats{}, err
		}
		if !ok {
			break
		}
		st.EntriesTotal++

		rec := normalize.Normalize(entry, normOpts)
		if !f.Match(rec.Row) {
			st.EntriesFiltered++
			continue
		}

		if dedup {
			exists, err := c.entryHashExistsReadOnly(rec.Row.EntryHash)
			if err != nil {
				return PreviewStats{}, err
			}
			if exists {
				st.EntriesSkipped++
				continue
			}
		}
		st.EntriesMatched++
	}
	if err := reader.Err(); err != nil {
		return PreviewStats{}, err
	}
	return st, nil
}

func (c *Coordinator) entryHashExistsReadOnly(hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var dummy int
	err := c.db.QueryRow(`SELECT 1 FROM entries WHERE entry_hash = ? LIMIT 1`, hash).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &SchemaError{Stmt: "lookup entry_hash (preview)", Err: err}
	}
	return true, nil
}
