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

type ftsRebuildCmd struct {
	shared    *sharedFlags
	dbPath    string
	tokenizer string
}

func init() {
	register("fts-rebuild", func(fs *flag.FlagSet) command {
		c := &ftsRebuildCmd{shared: bindSharedFlags(fs)}
		fs.StringVar(&c.dbPath, "db", "", "path to the harbase SQLite database")
		fs.StringVar(&c.tokenizer, "tokenizer", "", "override the FTS5 tokenizer (unicode61, porter, trigram); default keeps the config/file default")
		return c
	})
}

func (c *ftsRebuildCmd) Describe() string {
	return "Drop and repopulate the full-text index from the entries already stored."
}

func (c *ftsRebuildCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: harbase fts-rebuild -db path.db [-tokenizer unicode61|porter|trigram]\n")
}

func (c *ftsRebuildCmd) RunCommand(args []string) error {
	if c.dbPath == "" {
		return usageError("--db is required")
	}
	if len(args) != 0 {
		return usageError("fts-rebuild takes no positional arguments")
	}

	opts, _, err := c.shared.load()
	if err != nil {
		return err
	}
	if c.tokenizer != "" {
		opts.Tokenizer = c.tokenizer
	}
	tok, err := opts.ResolveTokenizer()
	if err != nil {
		return usageError(err.Error())
	}
	maxBody, err := opts.MaxBodyBytes()
	if err != nil {
		return usageError(err.Error())
	}

	db, err := dbschema.Open(c.dbPath, false)
	if err != nil {
		return err
	}
	defer db.Close()

	maintainer := fts.New(maxBody, tok)
	n, err := maintainer.Rebuild(db, tok)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "rebuilt response_body_fts: %d rows\n", n)
	return nil
}
