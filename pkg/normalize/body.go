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
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// decodedBody is the result of attempting to decompress a response
// body per spec.md §4.2 and its Content-Encoding-vs-reality Open
// Question.
type decodedBody struct {
	// Canonical is the bytes to hash/store as the response body.
	Canonical []byte
	// Raw is the original (possibly already-decoded) bytes, set only
	// when decompression actually succeeded and changed the content.
	Raw        []byte
	Decompressed bool
}

// decodeBody applies the configured decompression policy to a response
// body. contentEncoding is the raw, case-insensitively-matched
// Content-Encoding header value.
func decodeBody(raw []byte, contentEncoding string, decompress bool) decodedBody {
	if !decompress {
		return decodedBody{Canonical: raw}
	}
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	var decoded []byte
	var err error
	switch enc {
	case "gzip":
		decoded, err = decodeGzip(raw)
	case "br":
		decoded, err = decodeBrotli(raw)
	default:
		return decodedBody{Canonical: raw}
	}
	if err != nil {
		// Producer bug: header claims an encoding the body isn't
		// actually in (or double-encoded already). Best effort: keep
		// the original bytes as the canonical body, per spec.md §9.
		return decodedBody{Canonical: raw}
	}
	return decodedBody{Canonical: decoded, Raw: raw, Decompressed: true}
}

func decodeGzip(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func decodeBrotli(raw []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
}
