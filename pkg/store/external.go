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

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"harbase.dev/harbase/pkg/blob"
)

// externalPath returns the sharded on-disk path for ref under root,
// e.g. depth=2 -> <root>/ab/cd/<64-hex>, mirroring the shard math in
// Perkeep's localdisk storage but with a configurable depth.
func externalPath(root string, ref blob.Ref, depth int) string {
	parts := ref.DirSharded(depth)
	elems := append([]string{root}, parts...)
	return filepath.Join(elems...)
}

// writeExternal atomically materializes data at its canonical shard
// path: write to a uniquely-named temp file in the same directory,
// then rename over the final name. The rename happens only after the
// temp file's bytes have been fully written, so a crash never leaves a
// partially written file visible under the blob's canonical name.
func writeExternal(root string, ref blob.Ref, data []byte, depth int) (string, error) {
	finalPath := externalPath(root, ref, depth)
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	if _, err := os.Stat(finalPath); err == nil {
		// Already materialized by an earlier submit of the same hash.
		return finalPath, nil
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".tmp-%s-%s", ref.String(), uuid.New().String()))
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("store: write temp blob %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("store: rename %s to %s: %w", tmpPath, finalPath, err)
	}
	return finalPath, nil
}

// removeExternal deletes the on-disk file for ref, tolerating its
// absence (an orphaned-and-already-reclaimed file, or a writer crash
// between disk write and DB insert, spec.md §4.3).
func removeExternal(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	return nil
}
