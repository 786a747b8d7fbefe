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

package main

import (
	"errors"

	"harbase.dev/harbase/pkg/importer"
	"harbase.dev/harbase/pkg/store"
)

// exitCodeFor maps an error returned from a subcommand to one of
// spec.md §6's exit codes: 1 generic failure, 2 usage error, 3 I/O
// error, 4 database constraint error.
func exitCodeFor(err error) int {
	var usage usageError
	if errors.As(err, &usage) {
		return 2
	}
	var ioErr *importer.IoError
	if errors.As(err, &ioErr) {
		return 3
	}
	var schemaErr *importer.SchemaError
	if errors.As(err, &schemaErr) {
		return 4
	}
	var dedup *store.DedupConflict
	if errors.As(err, &dedup) {
		return 4
	}
	return 1
}
