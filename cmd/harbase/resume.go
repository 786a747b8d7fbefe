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

	"harbase.dev/harbase/pkg/importer"
)

type resumeCmd struct {
	shared *sharedFlags
	filter *filterFlags
	dbPath string
}

func init() {
	register("resume", func(fs *flag.FlagSet) command {
		c := &resumeCmd{shared: bindSharedFlags(fs), filter: bindFilterFlags(fs)}
		fs.StringVar(&c.dbPath, "db", "", "path to the harbase SQLite database")
		return c
	})
}

func (c *resumeCmd) Describe() string {
	return "Resume the most recent in-progress import of one HAR file."
}

func (c *resumeCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: harbase resume -db path.db file.har\n")
}

func (c *resumeCmd) RunCommand(args []string) error {
	if c.dbPath == "" {
		return usageError("--db is required")
	}
	if len(args) != 1 {
		return usageError("resume takes exactly one HAR file path")
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

	st, err := coord.Import(context.Background(), args[0], f, importer.ModeResume)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: import_id=%d entries=%d skipped=%d status=%s\n",
		args[0], st.ImportID, st.EntryCount, st.EntriesSkipped, st.Status)
	return nil
}
