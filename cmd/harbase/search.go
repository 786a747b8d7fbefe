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

	"harbase.dev/harbase/pkg/dbschema"
	"harbase.dev/harbase/pkg/fts"
)

type searchCmd struct {
	dbPath string
	order  string
	limit  int
}

func init() {
	register("search", func(fs *flag.FlagSet) command {
		c := &searchCmd{}
		fs.StringVar(&c.dbPath, "db", "", "path to the harbase SQLite database (opened read-only)")
		fs.StringVar(&c.order, "order", "rank", "result order: rank or started_at")
		fs.IntVar(&c.limit, "limit", 50, "maximum results")
		return c
	})
}

func (c *searchCmd) Describe() string { return "Full-text search response bodies." }

func (c *searchCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: harbase search -db path.db <query>\n")
}

func (c *searchCmd) RunCommand(args []string) error {
	if c.dbPath == "" {
		return usageError("--db is required")
	}
	if len(args) != 1 {
		return usageError("search takes exactly one query argument")
	}

	var order fts.Order
	switch c.order {
	case "rank":
		order = fts.ByRank
	case "started_at":
		order = fts.ByStartedAt
	default:
		return usageError(fmt.Sprintf("--order: got %q, want \"rank\" or \"started_at\"", c.order))
	}

	db, err := dbschema.Open(c.dbPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := fts.Search(db, args[0], order, c.limit)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%d\t%s\t%s %s\t%d\t%s\n", r.EntryID, r.StartedAt, r.Method, r.URL, r.Status, r.Snippet)
	}
	return nil
}
