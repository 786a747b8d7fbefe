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

// Package normalize converts one parsed har.Entry plus its import
// context into a relational EntryRow and the blob bytes it references,
// per spec.md §4.2. It performs no I/O: body decompression happens on
// already-decoded in-memory bytes, and hashing is pure.
package normalize

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"harbase.dev/harbase/pkg/blob"
	"harbase.dev/harbase/pkg/har"
)

// Options is the immutable, per-import normalization policy.
type Options struct {
	StoreBodies       bool
	DecompressBodies  bool
	KeepCompressed    bool
	TextOnly          bool
	MaxBodySize       int64 // sizeutil.Unlimited for no cap
	ComputeEntryHash  bool
}

// textMimeNeedles is the fixed --text-only allow-list from spec.md
// §4.2: html, json, javascript, css, xml, plain, markdown, svg, yaml
// (also spelled yml). A MIME type qualifies if it contains any of them.
var textMimeNeedles = []string{
	"html", "json", "javascript", "css", "xml", "plain", "markdown", "svg", "yaml", "yml",
}

func isTextMime(mime string) bool {
	mime = strings.ToLower(mime)
	for _, needle := range textMimeNeedles {
		if strings.Contains(mime, needle) {
			return true
		}
	}
	return false
}

// BlobKind identifies which entry column a BlobSubmission feeds.
type BlobKind int

const (
	BlobRequestBody BlobKind = iota
	BlobResponseBody
	BlobResponseBodyRaw
)

// BlobSubmission is one body that needs to be hashed and stored by the
// blob store, produced alongside an EntryRow.
type BlobSubmission struct {
	Kind     BlobKind
	Data     []byte
	MimeType string
}

// EntryRow is the relational projection of one har.Entry, ready for
// the Import Coordinator to insert. Ref fields are zero-valued (Valid()
// == false) when the corresponding blob was not stored.
type EntryRow struct {
	PageID          string
	EntryHash       string // hex, empty when Options.ComputeEntryHash is false
	StartedAt       string
	TimeMs          float64
	Method          string
	URL             string
	Host            string
	Path            string
	QueryString     string
	HasURLComponents bool
	HTTPVersion     string
	Status          int
	StatusText      string
	IsRedirect      bool

	RequestHeaders json.RawMessage
	RequestCookies json.RawMessage

	RequestBodyHash blob.Ref
	RequestBodySize int64

	ResponseHeaders  json.RawMessage
	ResponseCookies  json.RawMessage
	ResponseMimeType string

	ResponseBodyHash    blob.Ref
	ResponseBodySize    int64
	ResponseBodyHashRaw blob.Ref
	ResponseBodySizeRaw int64
	ContentEncoding     string

	GraphQLOperationType string
	GraphQLOperationName string
	GraphQLBatchIndex    *int
	GraphQLFields        []string

	RequestExtensions  json.RawMessage
	ResponseExtensions json.RawMessage
	ContentExtensions  json.RawMessage
	TimingsExtensions  json.RawMessage
	PostDataExtensions json.RawMessage
	EntryExtensions    json.RawMessage
}

// Record bundles one normalized entry with the blob bytes it produced,
// the unit the Parallel Import Dispatcher sends to the writer.
type Record struct {
	Row   EntryRow
	Blobs []BlobSubmission
}

// Normalize converts one HAR entry into a Record.
func Normalize(e *har.Entry, opts Options) Record {
	row := EntryRow{
		PageID:      e.PageRef,
		StartedAt:   e.StartedDateTime,
		TimeMs:      e.Time,
		Method:      strings.ToUpper(e.Request.Method),
		URL:         e.Request.URL,
		HTTPVersion: e.Request.HTTPVersion,
		Status:      e.Response.Status,
		StatusText:  e.Response.StatusText,
		IsRedirect:  e.Response.Status >= 300 && e.Response.Status <= 399,

		RequestHeaders:   canonicalHeaders(e.Request.Headers),
		RequestCookies:   canonicalCookies(e.Request.Cookies),
		ResponseHeaders:  canonicalHeaders(e.Response.Headers),
		ResponseCookies:  canonicalCookies(e.Response.Cookies),
		ResponseMimeType: e.Response.Content.MimeType,
		ContentEncoding:  headerValue(e.Response.Headers, "content-encoding"),

		RequestExtensions:  marshalExt(e.Request.Extensions),
		ResponseExtensions: marshalExt(e.Response.Extensions),
		ContentExtensions:  marshalExt(e.Response.Content.Extensions),
		TimingsExtensions:  marshalExt(e.Timings.Extensions),
		EntryExtensions:    marshalExt(e.Extensions),
	}
	if e.Request.PostData != nil {
		row.PostDataExtensions = marshalExt(e.Request.PostData.Extensions)
	}

	if u := splitURL(e.Request.URL); u.ok {
		row.Host, row.Path, row.QueryString, row.HasURLComponents = u.host, u.path, u.query, true
	}

	var submissions []BlobSubmission

	if reqBody, ok := requestBodyBytes(e.Request.PostData); ok {
		row.RequestBodySize = int64(len(reqBody))
		if shouldStore(reqBody, e.Request.PostData.MimeType, opts) {
			row.RequestBodyHash = blob.Sum(reqBody)
			submissions = append(submissions, BlobSubmission{Kind: BlobRequestBody, Data: reqBody, MimeType: e.Request.PostData.MimeType})
		}

		if ops, err := ExtractGraphQL(reqBody); err == nil && len(ops) > 0 {
			op := ops[0]
			row.GraphQLOperationType = op.OperationType
			row.GraphQLOperationName = op.OperationName
			row.GraphQLFields = op.Fields
			row.GraphQLBatchIndex = op.BatchIndex
		}
	}

	if respBody, ok := responseBodyBytes(e.Response.Content); ok {
		decoded := decodeBody(respBody, row.ContentEncoding, opts.DecompressBodies)
		canonical := decoded.Canonical
		row.ResponseBodySize = int64(len(canonical))

		if shouldStore(canonical, e.Response.Content.MimeType, opts) {
			row.ResponseBodyHash = blob.Sum(canonical)
			submissions = append(submissions, BlobSubmission{Kind: BlobResponseBody, Data: canonical, MimeType: e.Response.Content.MimeType})

			if decoded.Decompressed && opts.KeepCompressed {
				row.ResponseBodySizeRaw = int64(len(decoded.Raw))
				row.ResponseBodyHashRaw = blob.Sum(decoded.Raw)
				submissions = append(submissions, BlobSubmission{Kind: BlobResponseBodyRaw, Data: decoded.Raw, MimeType: e.Response.Content.MimeType})
			}
		}
	}

	if opts.ComputeEntryHash {
		row.EntryHash = computeEntryHash(row)
	}

	return Record{Row: row, Blobs: submissions}
}

func requestBodyBytes(pd *har.PostData) ([]byte, bool) {
	if pd == nil || pd.Text == "" {
		return nil, false
	}
	return []byte(pd.Text), true
}

func responseBodyBytes(c har.Content) ([]byte, bool) {
	if c.Text == "" {
		return nil, false
	}
	if strings.EqualFold(c.Encoding, "base64") {
		data, err := base64.StdEncoding.DecodeString(c.Text)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return []byte(c.Text), true
}

// shouldStore applies --bodies/--text-only/--max-body-size to decide
// whether a body's bytes should be submitted to the blob store. The
// size on the entry row is recorded either way (spec.md: "oversize
// bodies contribute no blob but keep response_body_size").
func shouldStore(data []byte, mime string, opts Options) bool {
	if !opts.StoreBodies {
		return false
	}
	if opts.TextOnly && !isTextMime(mime) {
		return false
	}
	if opts.MaxBodySize >= 0 && int64(len(data)) > opts.MaxBodySize {
		return false
	}
	return true
}

func headerValue(pairs []har.NameValuePair, name string) string {
	for _, p := range pairs {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

func marshalExt(m map[string]json.RawMessage) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// computeEntryHash is BLAKE3 over the canonical tuple (method, url,
// started_at, status, response_body_hash, request_body_hash), joined
// with a separator that cannot appear inside any field (0x1f, ASCII
// unit separator), per spec.md §4.2.
func computeEntryHash(row EntryRow) string {
	const sep = "\x1f"
	var b strings.Builder
	b.WriteString(row.Method)
	b.WriteString(sep)
	b.WriteString(row.URL)
	b.WriteString(sep)
	b.WriteString(row.StartedAt)
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(row.Status))
	b.WriteString(sep)
	if row.ResponseBodyHash.Valid() {
		b.WriteString(row.ResponseBodyHash.String())
	}
	b.WriteString(sep)
	if row.RequestBodyHash.Valid() {
		b.WriteString(row.RequestBodyHash.String())
	}
	return blob.Sum([]byte(b.String())).String()
}
