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

// Package dispatch is the Parallel Import Dispatcher (spec.md §4.6): up
// to J worker goroutines each parse and normalize one HAR file, sending
// their output over a bounded channel to a single writer goroutine that
// owns every database transaction, built on golang.org/x/sync/errgroup
// the way the rest of this corpus reaches for that package for
// fan-out/fan-in worker pools.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"harbase.dev/harbase/pkg/har"
	"harbase.dev/harbase/pkg/importer"
	"harbase.dev/harbase/pkg/normalize"
)

// workItem is one unit handed from a producer goroutine to the writer.
// Exactly one of page/record is set, unless done is true, in which case
// neither is and the item instead reports that importID has finished
// (successfully or not).
type workItem struct {
	importID int64
	path     string

	page   *har.Page
	record *normalize.Record

	done    bool
	doneErr error
	total   int // entries observed in the source file; only set when done
}

// FileResult is one file's outcome from Dispatcher.ImportAll.
type FileResult struct {
	Path     string
	ImportID int64
	Stats    importer.Stats
	Err      error
}

// Dispatcher fans many files through one importer.Coordinator.
type Dispatcher struct {
	coord   *importer.Coordinator
	workers int
}

// New returns a Dispatcher with up to `workers` concurrent parsers
// (workers <= 0 is treated as 1).
func New(coord *importer.Coordinator, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{coord: coord, workers: workers}
}

// ImportAll ingests every path concurrently under f/dedup. A parse or
// I/O failure in one file is recorded against that file's FileResult.Err
// and aborts only that file's import; sibling workers continue (spec.md
// §4.6 "Failure isolation"). Order within one source file matches its
// document order; order across files is unspecified.
func (d *Dispatcher) ImportAll(ctx context.Context, paths []string, f importer.Filter, dedup bool) ([]FileResult, error) {
	if err := f.Compile(); err != nil {
		return nil, err
	}

	items := make(chan workItem, 4*d.workers)
	resultsByPath := make(map[string]*FileResult, len(paths))
	order := make([]string, 0, len(paths))

	writerErrCh := make(chan error, 1)
	go func() {
		writerErrCh <- d.writeLoop(items, resultsByPath)
	}()

	// errgroup without WithContext: a producer's own error must not
	// cancel its siblings, so cancellation here is left to ctx alone.
	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for _, path := range paths {
		path := path
		order = append(order, path)
		resultsByPath[path] = &FileResult{Path: path}
		g.Go(func() error {
			return d.produce(ctx, path, f, dedup, items)
		})
	}

	// g.Wait never itself returns an error worth propagating: each
	// producer reports its own outcome into resultsByPath via a "done"
	// workItem, which is the per-file granularity spec.md calls for.
	_ = g.Wait()
	close(items)
	writerErr := <-writerErrCh

	out := make([]FileResult, 0, len(order))
	for _, p := range order {
		out = append(out, *resultsByPath[p])
	}
	return out, writerErr
}

// produce parses and normalizes one file, sending page and entry work
// items to items in document order, and finally a done marker carrying
// that file's total entry count and terminal error (if any).
func (d *Dispatcher) produce(ctx context.Context, path string, f importer.Filter, dedup bool, items chan<- workItem) error {
	importID, err := d.coord.StartImport(path)
	if err != nil {
		return err
	}

	normOpts := d.coord.NormalizeOptions()
	if dedup {
		normOpts.ComputeEntryHash = true
	}

	reader, openErr := har.Open(path, har.Options{})
	if openErr != nil {
		doneErr := &importer.IoError{Path: path, Err: openErr}
		items <- workItem{importID: importID, path: path, done: true, doneErr: doneErr}
		return nil
	}
	defer reader.Close()

	for {
		page, ok, err := reader.NextPage()
		if err != nil {
			items <- workItem{importID: importID, path: path, done: true, doneErr: err}
			return nil
		}
		if !ok {
			break
		}
		select {
		case items <- workItem{importID: importID, path: path, page: page}:
		case <-ctx.Done():
			items <- workItem{importID: importID, path: path, done: true, doneErr: ctx.Err()}
			return nil
		}
	}

	total := 0
	for {
		entry, ok, err := reader.NextEntry()
		if err != nil {
			items <- workItem{importID: importID, path: path, done: true, doneErr: err, total: total}
			return nil
		}
		if !ok {
			break
		}
		total++

		rec := normalize.Normalize(entry, normOpts)
		if !f.Match(rec.Row) {
			continue
		}
		select {
		case items <- workItem{importID: importID, path: path, record: &rec}:
		case <-ctx.Done():
			items <- workItem{importID: importID, path: path, done: true, doneErr: ctx.Err(), total: total}
			return nil
		}
	}

	var finalErr error
	if err := reader.Err(); err != nil {
		finalErr = err
	}
	items <- workItem{importID: importID, path: path, done: true, doneErr: finalErr, total: total}
	return nil
}

type importCounters struct {
	inserted int
	skipped  int
}

// writeLoop is the single consumer of items: every database write in a
// dispatched run passes through this one goroutine, so concurrent
// workers never contend over the writer connection (spec.md §4.6's
// "the writer applies backpressure by blocking on a full channel").
func (d *Dispatcher) writeLoop(items <-chan workItem, resultsByPath map[string]*FileResult) (retErr error) {
	db := d.coord.DB()
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("dispatch: begin writer transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	counters := make(map[int64]*importCounters)
	sinceCommit := 0
	interval := d.coord.SavepointInterval()

	commitAndReopen := func() error {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dispatch: commit batch: %w", err)
		}
		sinceCommit = 0
		newTx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("dispatch: begin next batch: %w", err)
		}
		tx = newTx
		return nil
	}

	for it := range items {
		c, ok := counters[it.importID]
		if !ok {
			c = &importCounters{}
			counters[it.importID] = c
		}

		switch {
		case it.done:
			if err := commitAndReopen(); err != nil {
				return err
			}
			if err := d.coord.FinishImport(tx, it.importID, it.total, c.inserted, c.skipped, it.doneErr); err != nil {
				return err
			}
			if err := commitAndReopen(); err != nil {
				return err
			}
			stats, statErr := d.coord.Stats(it.importID)
			res := resultsByPath[it.path]
			res.ImportID = it.importID
			res.Err = it.doneErr
			if statErr == nil {
				res.Stats = stats
			}

		case it.page != nil:
			if err := d.coord.InsertPage(tx, it.importID, it.page); err != nil {
				return err
			}

		case it.record != nil:
			hash := it.record.Row.EntryHash
			skip := false
			if hash != "" {
				exists, err := d.coord.EntryHashExists(tx, hash)
				if err != nil {
					return err
				}
				skip = exists
			}
			if skip {
				c.skipped++
			} else {
				if err := d.coord.InsertRecord(tx, it.importID, *it.record); err != nil {
					return err
				}
				c.inserted++
			}
			sinceCommit++
			if sinceCommit >= interval {
				if err := commitAndReopen(); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dispatch: final commit: %w", err)
	}
	committed = true
	return nil
}
