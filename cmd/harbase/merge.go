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
	"flag"
	"fmt"
	"os"

	"harbase.dev/harbase/pkg/importer"
)

type mergeCmd struct {
	shared *sharedFlags
	dbPath string
	dedup  bool

	// Source databases are assumed to share one blob storage layout;
	// pass the same flags used to create them.
	sourceExternalRoot  string
	sourceExternalDepth int
}

func init() {
	register("merge", func(fs *flag.FlagSet) command {
		c := &mergeCmd{shared: bindSharedFlags(fs)}
		fs.StringVar(&c.dbPath, "db", "", "destination harbase SQLite database (created if absent)")
		fs.BoolVar(&c.dedup, "dedup", false, "skip entries whose entry_hash already exists in the destination")
		fs.StringVar(&c.sourceExternalRoot, "source-external-root", "", "external blob root shared by every source database (empty if sources used inline storage)")
		fs.IntVar(&c.sourceExternalDepth, "source-external-depth", 2, "shard depth shared by every source database")
		return c
	})
}

func (c *mergeCmd) Describe() string {
	return "Fold one or more source databases' imports into the destination under fresh import ids."
}

func (c *mergeCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: harbase merge -db dest.db source1.db [source2.db ...]\n")
}

func (c *mergeCmd) RunCommand(args []string) error {
	if c.dbPath == "" {
		return usageError("--db is required")
	}
	if len(args) == 0 {
		return usageError("at least one source database is required")
	}

	opts, log, err := c.shared.load()
	if err != nil {
		return err
	}
	coord, db, err := openCoordinator(c.dbPath, opts, log)
	if err != nil {
		return err
	}
	defer db.Close()

	sources := make([]importer.MergeSource, 0, len(args))
	for _, path := range args {
		sources = append(sources, importer.MergeSource{
			Path:          path,
			ExternalRoot:  c.sourceExternalRoot,
			ExternalDepth: c.sourceExternalDepth,
		})
	}

	st, err := coord.Merge(sources, c.dedup)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "merged %d source(s): entries=%d skipped=%d\n", len(sources), st.EntryCount, st.EntriesSkipped)
	return nil
}
