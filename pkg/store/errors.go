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

import "fmt"

// DedupConflict means a blobs row already exists for a hash but with a
// different size than the content currently being submitted — by
// construction that indicates hash collision or on-disk corruption
// (spec.md §7). It is always fatal to the enclosing import.
type DedupConflict struct {
	Hash      string
	WantSize  int64
	GotSize   int64
}

func (e *DedupConflict) Error() string {
	return fmt.Sprintf("store: blob %s exists with size %d, but new content has size %d", e.Hash, e.GotSize, e.WantSize)
}
