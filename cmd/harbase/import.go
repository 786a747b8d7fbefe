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
	"context"
	"flag"
	"fmt"
	"os"

	"harbase.dev/harbase/pkg/dispatch"
	"harbase.dev/harbase/pkg/importer"
)

type importCmd struct {
	shared *sharedFlags
	filter *filterFlags
	dbPath string

	incremental bool
	workers     int
}

func init() {
	register("import", func(fs *flag.FlagSet) command {
		c := &importCmd{shared: bindSharedFlags(fs), filter: bindFilterFlags(fs)}
		fs.StringVar(&c.dbPath, "db", "", "path to the harbase SQLite database (created if absent)")
		fs.BoolVar(&c.incremental, "incremental", false, "skip entries whose entry_hash already exists anywhere in the database")
		fs.IntVar(&c.workers, "workers", 1, "number of files to parse concurrently (one writer regardless)")
		return c
	})
}

func (c *importCmd) Describe() string { return "Import one or more HAR files into the database." }

func (c *importCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: harbase import -db path.db [flags] file.har [file2.har ...]\n")
}

func (c *importCmd) RunCommand(args []string) error {
	if c.dbPath == "" {
		return usageError("--db is required")
	}
	if len(args) == 0 {
		return usageError("at least one HAR file is required")
	}

	opts, log, err := c.shared.load()
	if err != nil {
		return err
	}
	f, err := c.filter.build()
	if err != nil {
		return usageError(err.Error())
	}

	coord, db, err := openCoordinator(c.dbPath, opts, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.workers <= 1 || len(args) == 1 {
		return c.importSequential(coord, args, f)
	}
	return c.importConcurrent(coord, args, f)
}

func (c *importCmd) mode() importer.ImportMode {
	if c.incremental {
		return importer.ModeIncremental
	}
	return importer.ModeFresh
}

func (c *importCmd) importSequential(coord *importer.Coordinator, paths []string, f importer.Filter) error {
	for _, path := range paths {
		st, err := coord.Import(context.Background(), path, f, c.mode())
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		fmt.Fprintf(os.Stdout, "%s: import_id=%d entries=%d skipped=%d status=%s\n",
			path, st.ImportID, st.EntryCount, st.EntriesSkipped, st.Status)
	}
	return nil
}

func (c *importCmd) importConcurrent(coord *importer.Coordinator, paths []string, f importer.Filter) error {
	d := dispatch.New(coord, c.workers)
	results, err := d.ImportAll(context.Background(), paths, f, c.incremental)
	if err != nil {
		return err
	}
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Path, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: import_id=%d entries=%d skipped=%d status=%s\n",
			r.Path, r.ImportID, r.Stats.EntryCount, r.Stats.EntriesSkipped, r.Stats.Status)
	}
	return firstErr
}
