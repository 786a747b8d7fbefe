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

package normalize

import (
	"bytes"
	"compress/gzip"
	"testing"

	"harbase.dev/harbase/pkg/blob"
	"harbase.dev/harbase/pkg/har"
	"harbase.dev/harbase/pkg/sizeutil"
)

func baseEntry() *har.Entry {
	return &har.Entry{
		StartedDateTime: "2024-01-01T00:00:00.000Z",
		Time:            10,
		Request: har.Request{
			Method:      "get",
			URL:         "https://Example.test/a/b?x=1",
			HTTPVersion: "HTTP/1.1",
		},
		Response: har.Response{
			Status:     200,
			StatusText: "OK",
			Content:    har.Content{MimeType: "text/plain", Size: 4, Text: "hi!\n"},
		},
	}
}

func TestNormalizeBasicFields(t *testing.T) {
	rec := Normalize(baseEntry(), Options{StoreBodies: true, MaxBodySize: sizeutil.Unlimited})
	row := rec.Row
	if row.Method != "GET" {
		t.Errorf("Method = %q, want GET", row.Method)
	}
	if row.Host != "example.test" {
		t.Errorf("Host = %q, want example.test", row.Host)
	}
	if row.Path != "/a/b" {
		t.Errorf("Path = %q", row.Path)
	}
	if row.QueryString != "x=1" {
		t.Errorf("QueryString = %q", row.QueryString)
	}
	if row.IsRedirect {
		t.Error("IsRedirect should be false for 200")
	}
	if !row.ResponseBodyHash.Valid() {
		t.Fatal("expected a response body hash")
	}
	want := blob.Sum([]byte("hi!\n"))
	if row.ResponseBodyHash != want {
		t.Errorf("ResponseBodyHash = %v, want %v", row.ResponseBodyHash, want)
	}
	if row.ResponseBodySize != 4 {
		t.Errorf("ResponseBodySize = %d, want 4", row.ResponseBodySize)
	}
}

func TestIsRedirectBoundaries(t *testing.T) {
	for status, want := range map[int]bool{
		200: false, 299: false, 300: true, 399: true, 400: false,
	} {
		e := baseEntry()
		e.Response.Status = status
		rec := Normalize(e, Options{})
		if rec.Row.IsRedirect != want {
			t.Errorf("status %d: IsRedirect = %v, want %v", status, rec.Row.IsRedirect, want)
		}
	}
}

func TestOversizeBodySkipsBlobKeepsSize(t *testing.T) {
	e := baseEntry()
	rec := Normalize(e, Options{StoreBodies: true, MaxBodySize: 1})
	if rec.Row.ResponseBodyHash.Valid() {
		t.Error("expected no blob hash for an oversize body")
	}
	if rec.Row.ResponseBodySize != 4 {
		t.Errorf("ResponseBodySize = %d, want 4 even when not stored", rec.Row.ResponseBodySize)
	}
	if len(rec.Blobs) != 0 {
		t.Error("expected no blob submissions")
	}
}

func TestTextOnlyFilter(t *testing.T) {
	e := baseEntry()
	e.Response.Content.MimeType = "image/png"
	rec := Normalize(e, Options{StoreBodies: true, TextOnly: true, MaxBodySize: sizeutil.Unlimited})
	if rec.Row.ResponseBodyHash.Valid() {
		t.Error("expected image/png to be excluded by --text-only")
	}
}

func TestGzipDecompression(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(`{"x":1}`))
	gz.Close()

	e := baseEntry()
	e.Response.Content.MimeType = "application/json"
	e.Response.Content.Text = buf.String()
	e.Response.Headers = []har.NameValuePair{{Name: "Content-Encoding", Value: "gzip"}}

	rec := Normalize(e, Options{StoreBodies: true, DecompressBodies: true, KeepCompressed: true, MaxBodySize: sizeutil.Unlimited})
	wantDecoded := blob.Sum([]byte(`{"x":1}`))
	if rec.Row.ResponseBodyHash != wantDecoded {
		t.Errorf("ResponseBodyHash = %v, want decoded hash %v", rec.Row.ResponseBodyHash, wantDecoded)
	}
	wantRaw := blob.Sum([]byte(buf.String()))
	if rec.Row.ResponseBodyHashRaw != wantRaw {
		t.Errorf("ResponseBodyHashRaw = %v, want raw hash %v", rec.Row.ResponseBodyHashRaw, wantRaw)
	}
	if len(rec.Blobs) != 2 {
		t.Errorf("expected 2 blob submissions (decoded + raw), got %d", len(rec.Blobs))
	}
}

func TestGraphQLExtraction(t *testing.T) {
	e := baseEntry()
	e.Request.Method = "POST"
	e.Request.PostData = &har.PostData{
		MimeType: "application/json",
		Text:     `{"query":"query Q { a b { c } }"}`,
	}
	rec := Normalize(e, Options{})
	if rec.Row.GraphQLOperationType != "query" {
		t.Errorf("GraphQLOperationType = %q", rec.Row.GraphQLOperationType)
	}
	if rec.Row.GraphQLOperationName != "Q" {
		t.Errorf("GraphQLOperationName = %q", rec.Row.GraphQLOperationName)
	}
	want := map[string]bool{"a": true, "b": true}
	if len(rec.Row.GraphQLFields) != 2 {
		t.Fatalf("GraphQLFields = %v, want 2 fields", rec.Row.GraphQLFields)
	}
	for _, f := range rec.Row.GraphQLFields {
		if !want[f] {
			t.Errorf("unexpected field %q", f)
		}
	}
}

func TestEntryHashStableAndSensitiveToStatus(t *testing.T) {
	e1 := baseEntry()
	e2 := baseEntry()
	e2.Response.Status = 404
	e2.Response.StatusText = "Not Found"

	r1 := Normalize(e1, Options{ComputeEntryHash: true})
	r2 := Normalize(e2, Options{ComputeEntryHash: true})
	r1b := Normalize(baseEntry(), Options{ComputeEntryHash: true})

	if r1.Row.EntryHash == "" {
		t.Fatal("expected a non-empty entry hash")
	}
	if r1.Row.EntryHash != r1b.Row.EntryHash {
		t.Error("entry hash should be deterministic for identical entries")
	}
	if r1.Row.EntryHash == r2.Row.EntryHash {
		t.Error("entry hash should differ when status differs")
	}
}
