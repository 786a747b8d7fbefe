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

// Command harbase is the thin CLI shell over pkg/importer, pkg/dispatch,
// and pkg/fts: it only parses flags into a config.Options/importer.Filter,
// opens a database handle, calls one core public operation, and maps the
// result to an exit code (spec.md §6). No business logic lives here.
package main

import "os"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}
