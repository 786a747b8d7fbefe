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

package har

import (
	"strings"
	"testing"
)

const minimalHAR = `{
  "log": {
    "version": "1.2",
    "creator": {"name": "harbase-test", "version": "1.0"},
    "_customLogField": true,
    "pages": [
      {"startedDateTime": "2024-01-01T00:00:00.000Z", "id": "page_1", "title": "t",
       "pageTimings": {"onLoad": 12.5}, "_priority": "high"}
    ],
    "entries": [
      {
        "startedDateTime": "2024-01-01T00:00:00.000Z",
        "time": 10.0,
        "pageref": "page_1",
        "request": {
          "method": "get",
          "url": "https://a.test/",
          "httpVersion": "HTTP/1.1",
          "cookies": [], "headers": [], "queryString": [],
          "headersSize": -1, "bodySize": 0,
          "_resourceType": "document"
        },
        "response": {
          "status": 200, "statusText": "OK", "httpVersion": "HTTP/1.1",
          "cookies": [], "headers": [],
          "content": {"size": 0, "mimeType": "text/html"},
          "redirectURL": "", "headersSize": -1, "bodySize": 0
        },
        "cache": {},
        "timings": {"send": 0, "wait": 1, "receive": 1},
        "_fromDiskCache": false
      }
    ]
  }
}`

func TestReaderYieldsPagesThenEntries(t *testing.T) {
	r := New(strings.NewReader(minimalHAR), Options{})
	defer r.Close()

	page, ok, err := r.NextPage()
	if err != nil {
		t.Fatalf("NextPage error: %v", err)
	}
	if !ok {
		t.Fatal("expected one page")
	}
	if page.ID != "page_1" {
		t.Fatalf("page.ID = %q", page.ID)
	}
	if _, ok := page.Extensions["_priority"]; !ok {
		t.Fatal("expected page extension _priority to survive")
	}

	if _, ok, _ := r.NextPage(); ok {
		t.Fatal("expected only one page")
	}

	entry, ok, err := r.NextEntry()
	if err != nil {
		t.Fatalf("NextEntry error: %v", err)
	}
	if !ok {
		t.Fatal("expected one entry")
	}
	if entry.Request.URL != "https://a.test/" {
		t.Fatalf("entry.Request.URL = %q", entry.Request.URL)
	}
	if _, ok := entry.Request.Extensions["_resourceType"]; !ok {
		t.Fatal("expected request extension _resourceType to survive")
	}
	if _, ok := entry.Extensions["_fromDiskCache"]; !ok {
		t.Fatal("expected entry extension _fromDiskCache to survive")
	}

	if _, ok, err := r.NextEntry(); ok || err != nil {
		t.Fatalf("expected entries exhausted cleanly, got ok=%v err=%v", ok, err)
	}

	header := r.Header()
	if header.Version != "1.2" {
		t.Fatalf("header.Version = %q", header.Version)
	}
	if _, ok := header.Extensions["_customLogField"]; !ok {
		t.Fatal("expected log extension _customLogField to survive")
	}
}

func TestReaderMissingEntriesIsParseError(t *testing.T) {
	doc := `{"log": {"version": "1.2", "creator": {"name":"x","version":"1"}, "pages": []}}`
	r := New(strings.NewReader(doc), Options{})
	defer r.Close()

	_, ok, err := r.NextEntry()
	if ok {
		t.Fatal("expected no entries")
	}
	if err == nil {
		t.Fatal("expected a ParseError for missing log.entries")
	}
	var pe *ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestReaderMalformedJSON(t *testing.T) {
	r := New(strings.NewReader(`{"log": {`), Options{})
	defer r.Close()

	_, _, err := r.NextEntry()
	if err == nil {
		t.Fatal("expected a parse error for truncated JSON")
	}
}

func TestReaderCloseBeforeExhaustion(t *testing.T) {
	r := New(strings.NewReader(minimalHAR), Options{})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
