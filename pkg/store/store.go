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

// Package store implements the content-addressed Blob Store from
// spec.md §4.3: inline storage in the blobs.content column, or
// optional externalization to a sharded filesystem tree, with at most
// one canonical representation per hash per database.
package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"harbase.dev/harbase/pkg/blob"
)

// Config is the store's immutable, per-database policy.
type Config struct {
	// External, when true, writes blob content to Root on disk instead
	// of inline in the blobs.content column.
	External bool
	Root     string
	// Depth is the number of two-hex-character shard directory levels.
	Depth int
}

// Store is the content-addressed blob store.
type Store struct {
	cfg Config
}

// New validates cfg (creating Root if external) and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.External {
		if cfg.Root == "" {
			return nil, errors.New("store: external storage requires a root directory")
		}
		if cfg.Depth <= 0 {
			cfg.Depth = 2
		}
		if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
			return nil, fmt.Errorf("store: create root %s: %w", cfg.Root, err)
		}
	}
	return &Store{cfg: cfg}, nil
}

// Submit stores data under tx, returning its Ref. It is idempotent:
// submitting the same bytes twice (in the same or a different import)
// inserts at most one blobs row, and always increments that row's
// reference count, since the caller only calls Submit when it intends
// to reference the blob from an entry row. The on-disk write (in
// external mode) happens before the row is inserted or its count is
// bumped, per spec.md §4.3.
func (s *Store) Submit(tx *sql.Tx, data []byte, mimeType string) (blob.SizedRef, error) {
	ref := blob.Sum(data)
	size := int64(len(data))

	var existingSize int64
	err := tx.QueryRow(`SELECT size FROM blobs WHERE hash = ?`, ref.String()).Scan(&existingSize)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := s.insert(tx, ref, data, size, mimeType); err != nil {
			return blob.SizedRef{}, err
		}
	case err != nil:
		return blob.SizedRef{}, fmt.Errorf("store: lookup %s: %w", ref, err)
	default:
		if existingSize != size {
			return blob.SizedRef{}, &DedupConflict{Hash: ref.String(), WantSize: size, GotSize: existingSize}
		}
	}

	if _, err := tx.Exec(`UPDATE blobs SET ref_count = ref_count + 1 WHERE hash = ?`, ref.String()); err != nil {
		return blob.SizedRef{}, fmt.Errorf("store: bump ref_count for %s: %w", ref, err)
	}
	return blob.SizedRef{Ref: ref, Size: size}, nil
}

func (s *Store) insert(tx *sql.Tx, ref blob.Ref, data []byte, size int64, mimeType string) error {
	if s.cfg.External {
		path, err := writeExternal(s.cfg.Root, ref, data, s.cfg.Depth)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO blobs(hash, size, mime_type, content, external_path, ref_count) VALUES (?, ?, ?, x'', ?, 0)`,
			ref.String(), size, mimeType, path,
		)
		if err != nil {
			return fmt.Errorf("store: insert blob row for %s: %w", ref, err)
		}
		return nil
	}

	_, err := tx.Exec(
		`INSERT INTO blobs(hash, size, mime_type, content, external_path, ref_count) VALUES (?, ?, ?, ?, NULL, 0)`,
		ref.String(), size, mimeType, data,
	)
	if err != nil {
		return fmt.Errorf("store: insert blob row for %s: %w", ref, err)
	}
	return nil
}

// Fetch opens the content named by ref, preferring a standalone
// *sql.DB connection so it never contends with the writer's
// transaction.
func (s *Store) Fetch(db *sql.DB, ref blob.Ref) (io.ReadCloser, int64, error) {
	var (
		size         int64
		content      []byte
		externalPath sql.NullString
	)
	err := db.QueryRow(`SELECT size, content, external_path FROM blobs WHERE hash = ?`, ref.String()).
		Scan(&size, &content, &externalPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, os.ErrNotExist
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: fetch %s: %w", ref, err)
	}
	if externalPath.Valid {
		f, err := os.Open(externalPath.String)
		if err != nil {
			return nil, 0, fmt.Errorf("store: open external blob %s: %w", externalPath.String, err)
		}
		return f, size, nil
	}
	return io.NopCloser(bytes.NewReader(content)), size, nil
}

// Release decrements ref_count for ref by n and, if it reaches zero,
// removes the blobs row and its external file (spec.md "Blob... deleted
// only when no entry references it"). Called by the coordinator during
// cascading import deletion.
func (s *Store) Release(tx *sql.Tx, ref blob.Ref, n int) error {
	if _, err := tx.Exec(`UPDATE blobs SET ref_count = ref_count - ? WHERE hash = ?`, n, ref.String()); err != nil {
		return fmt.Errorf("store: release %s: %w", ref, err)
	}

	var (
		refCount int
		extPath  sql.NullString
	)
	err := tx.QueryRow(`SELECT ref_count, external_path FROM blobs WHERE hash = ?`, ref.String()).Scan(&refCount, &extPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: inspect %s after release: %w", ref, err)
	}
	if refCount > 0 {
		return nil
	}

	if _, err := tx.Exec(`DELETE FROM blobs WHERE hash = ?`, ref.String()); err != nil {
		return fmt.Errorf("store: delete unreferenced blob %s: %w", ref, err)
	}
	if extPath.Valid {
		if err := removeExternal(extPath.String); err != nil {
			return err
		}
	}
	return nil
}
