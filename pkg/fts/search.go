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
	"database/sql"
	"fmt"
	"os"
)

// Order selects the result ordering for Search; spec.md §4.5 defaults
// to MATCH rank but allows the caller to override.
type Order int

const (
	ByRank Order = iota
	ByStartedAt
)

// Result is one matched entry, joined from response_body_fts to entries
// by hash.
type Result struct {
	EntryID   int64
	URL       string
	Method    string
	Status    int
	StartedAt string
	Snippet   string
}

// Search issues an FTS5 MATCH query over response_body_fts joined to
// entries by hash, parameterized throughout so q is never
// string-concatenated into the statement.
func Search(db *sql.DB, q string, order Order, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	orderClause := "rank"
	if order == ByStartedAt {
		orderClause = "e.started_at DESC"
	}
	query := fmt.Sprintf(`
		SELECT e.id, e.url, e.method, e.status, e.started_at,
		       snippet(response_body_fts, 1, '[', ']', '...', 10)
		FROM response_body_fts
		JOIN entries e ON e.response_body_hash = response_body_fts.hash
		WHERE response_body_fts MATCH ?
		ORDER BY %s
		LIMIT ?
	`, orderClause)

	rows, err := db.Query(query, q, limit)
	if err != nil {
		return nil, fmt.Errorf("fts: search %q: %w", q, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.EntryID, &r.URL, &r.Method, &r.Status, &r.StartedAt, &r.Snippet); err != nil {
			return nil, fmt.Errorf("fts: scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func readExternal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fts: read external blob %s: %w", path, err)
	}
	return data, nil
}
