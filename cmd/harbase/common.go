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
	"database/sql"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"harbase.dev/harbase/pkg/config"
	"harbase.dev/harbase/pkg/dbschema"
	"harbase.dev/harbase/pkg/fts"
	"harbase.dev/harbase/pkg/importer"
	"harbase.dev/harbase/pkg/logging"
	"harbase.dev/harbase/pkg/normalize"
	"harbase.dev/harbase/pkg/store"
)

// sharedFlags are the config-file/log flags common to every subcommand
// that touches a database, bound once per command's FlagSet.
type sharedFlags struct {
	configPath string
	verbose    bool
	jsonLogs   bool
}

func bindSharedFlags(fs *flag.FlagSet) *sharedFlags {
	sf := &sharedFlags{}
	fs.StringVar(&sf.configPath, "config", "", "optional YAML defaults file (spec.md §3.3)")
	fs.BoolVar(&sf.verbose, "verbose", false, "debug-level logging")
	fs.BoolVar(&sf.jsonLogs, "json-logs", false, "emit structured JSON logs instead of console")
	return sf
}

func (sf *sharedFlags) load() (config.Options, *zap.Logger, error) {
	opts, err := config.Load(sf.configPath)
	if err != nil {
		return config.Options{}, nil, err
	}
	log, err := logging.New(logging.Options{Verbose: sf.verbose, JSON: sf.jsonLogs})
	if err != nil {
		return config.Options{}, nil, err
	}
	return opts, log, nil
}

// filterFlags are the entry-filter flags shared by import and resume.
type filterFlags struct {
	host, method, urlPattern, since, until string
	status                                 int
}

func bindFilterFlags(fs *flag.FlagSet) *filterFlags {
	ff := &filterFlags{}
	fs.StringVar(&ff.host, "host", "", "only match entries whose request host equals this")
	fs.StringVar(&ff.method, "method", "", "only match entries with this HTTP method")
	fs.StringVar(&ff.urlPattern, "url", "", "only match entries whose URL matches this regexp")
	fs.IntVar(&ff.status, "status", 0, "only match entries with this response status")
	fs.StringVar(&ff.since, "since", "", "only match entries on or after this RFC3339 or YYYY-MM-DD date")
	fs.StringVar(&ff.until, "until", "", "only match entries on or before this RFC3339 or YYYY-MM-DD date")
	return ff
}

func (ff *filterFlags) build() (importer.Filter, error) {
	f := importer.Filter{
		Host:       ff.host,
		Method:     ff.method,
		Status:     ff.status,
		URLPattern: ff.urlPattern,
	}
	if ff.since != "" {
		t, err := importer.ParseDate(ff.since, false)
		if err != nil {
			return importer.Filter{}, fmt.Errorf("--since: %w", err)
		}
		f.Since = t
	}
	if ff.until != "" {
		t, err := importer.ParseDate(ff.until, true)
		if err != nil {
			return importer.Filter{}, fmt.Errorf("--until: %w", err)
		}
		f.Until = t
	}
	return f, nil
}

// openCoordinator opens dbPath read-write, builds the blob store and
// FTS maintainer from opts, and returns a ready Coordinator. Callers
// must close the returned *sql.DB.
func openCoordinator(dbPath string, opts config.Options, log *zap.Logger) (*importer.Coordinator, *sql.DB, error) {
	db, err := dbschema.Open(dbPath, false)
	if err != nil {
		return nil, nil, &importer.IoError{Path: dbPath, Err: err}
	}

	st, err := store.New(store.Config{
		External: opts.ExternalBlobs,
		Root:     opts.ExternalRoot,
		Depth:    opts.ExternalDepth,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("harbase: build blob store: %w", err)
	}

	tok, err := opts.ResolveTokenizer()
	if err != nil {
		db.Close()
		return nil, nil, usageError(err.Error())
	}
	maxBody, err := opts.MaxBodyBytes()
	if err != nil {
		db.Close()
		return nil, nil, usageError(err.Error())
	}
	maintainer := fts.New(maxBody, tok)
	if err := maintainer.EnsureTable(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	coord := importer.New(db, st, maintainer, importer.Options{
		SavepointInterval: opts.SavepointInterval,
		Log:               log,
		Normalize:         normalizeOptionsFrom(opts, maxBody),
	})
	return coord, db, nil
}

func normalizeOptionsFrom(opts config.Options, maxBody int64) normalize.Options {
	return normalize.Options{
		StoreBodies:      opts.StoreBodies,
		DecompressBodies: opts.DecompressBodies,
		KeepCompressed:   opts.KeepCompressed,
		TextOnly:         opts.TextOnly,
		MaxBodySize:      maxBody,
	}
}
