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

package importer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"harbase.dev/harbase/pkg/normalize"
)

// Filter is the conjunctive entry filter from spec.md §4.4: host,
// method, status, a URL regex, and a date window. A zero-value field
// means "no constraint on this dimension".
type Filter struct {
	Host       string
	Method     string
	Status     int // 0 means unconstrained
	URLPattern string

	Since time.Time
	Until time.Time

	urlRe *regexp.Regexp
}

// Compile validates and compiles the filter's regex once, so Match can
// run per-entry without recompiling. It is safe to call Compile more
// than once; it is idempotent.
func (f *Filter) Compile() error {
	if f.URLPattern == "" {
		f.urlRe = nil
		return nil
	}
	re, err := regexp.Compile(f.URLPattern)
	if err != nil {
		return fmt.Errorf("importer: invalid url filter regex %q: %w", f.URLPattern, err)
	}
	f.urlRe = re
	return nil
}

// Match reports whether row passes every configured dimension of f.
func (f *Filter) Match(row normalize.EntryRow) bool {
	if f.Host != "" && !strings.EqualFold(row.Host, f.Host) {
		return false
	}
	if f.Method != "" && !strings.EqualFold(row.Method, f.Method) {
		return false
	}
	if f.Status != 0 && row.Status != f.Status {
		return false
	}
	if f.urlRe != nil && !f.urlRe.MatchString(row.URL) {
		return false
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		started, err := parseEntryTime(row.StartedAt)
		if err != nil {
			return false
		}
		if !f.Since.IsZero() && started.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && started.After(f.Until) {
			return false
		}
	}
	return true
}

func parseEntryTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ParseDate accepts RFC3339 or a bare YYYY-MM-DD date. A bare date is
// inclusive-whole-day in UTC: inclusiveEnd selects whether the returned
// instant is the start (false) or end (true) of that day, per spec.md
// §4.4's "inclusive whole-day in UTC".
func ParseDate(s string, inclusiveEnd bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		t = t.UTC()
		if inclusiveEnd {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("importer: date %q is neither RFC3339 nor YYYY-MM-DD", s)
}
