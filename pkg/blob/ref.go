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

// Package blob defines the content-addressed reference type used
// throughout harbase to name request and response bodies.
package blob

import (
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"lukechampine.com/blake3"
)

// Size is the width in bytes of a digest produced by Sum.
const Size = 32

// Pattern matches the hex-encoded form of a Ref, without anchors.
const Pattern = `[a-f0-9]{64}`

var refPattern = regexp.MustCompile("^" + Pattern + "$")

// Ref is a reference to a blob's content, addressed by its BLAKE3-256
// digest. The zero Ref is invalid; use Parse or Sum to obtain one.
//
// Ref is a value type: it supports == and may be used as a map key.
type Ref struct {
	digest [Size]byte
	valid  bool
}

// Sum computes the Ref for the given bytes.
func Sum(data []byte) Ref {
	return Ref{digest: blake3.Sum256(data), valid: true}
}

// SumReader computes the Ref for everything read from r, without
// buffering the full content in memory.
func SumReader(r io.Reader) (Ref, int64, error) {
	h := blake3.New(Size, nil)
	n, err := io.Copy(h, r)
	if err != nil {
		return Ref{}, 0, err
	}
	var d [Size]byte
	copy(d[:], h.Sum(nil))
	return Ref{digest: d, valid: true}, n, nil
}

// Parse decodes a lowercase hex digest into a Ref.
func Parse(s string) (Ref, bool) {
	if !refPattern.MatchString(s) {
		return Ref{}, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Ref{}, false
	}
	var d [Size]byte
	copy(d[:], b)
	return Ref{digest: d, valid: true}, true
}

// Valid reports whether r was produced by Sum, SumReader, or a
// successful Parse.
func (r Ref) Valid() bool { return r.valid }

// String returns the lowercase hex digest, or "<invalid-blob.Ref>" for
// the zero value.
func (r Ref) String() string {
	if !r.valid {
		return "<invalid-blob.Ref>"
	}
	buf := getBuf(Size * 2)[:0]
	defer putBuf(buf)
	return string(r.appendHex(buf))
}

func (r Ref) appendHex(buf []byte) []byte {
	const hexDigit = "0123456789abcdef"
	for _, b := range r.digest {
		buf = append(buf, hexDigit[b>>4], hexDigit[b&0xf])
	}
	return buf
}

// Bytes returns the raw 32-byte digest.
func (r Ref) Bytes() [Size]byte { return r.digest }

// DirSharded returns the shard path components for this Ref, splitting
// the hex digest into depth two-character segments followed by the
// full digest as the file name, e.g. depth=2 -> ["ab", "cd", <64 hex>].
func (r Ref) DirSharded(depth int) []string {
	hex := r.String()
	parts := make([]string, 0, depth+1)
	for i := 0; i < depth && i*2+2 <= len(hex); i++ {
		parts = append(parts, hex[i*2:i*2+2])
	}
	parts = append(parts, hex)
	return parts
}

func (r Ref) MarshalText() ([]byte, error) {
	if !r.valid {
		return nil, fmt.Errorf("blob: MarshalText called on invalid Ref")
	}
	return []byte(r.String()), nil
}

func (r *Ref) UnmarshalText(text []byte) error {
	parsed, ok := Parse(strings.TrimSpace(string(text)))
	if !ok {
		return fmt.Errorf("blob: invalid ref %q", text)
	}
	*r = parsed
	return nil
}

// SizedRef pairs a Ref with the size of the content it names.
type SizedRef struct {
	Ref
	Size int64
}

func (sr SizedRef) String() string {
	return fmt.Sprintf("[%s; %d bytes]", sr.Ref.String(), sr.Size)
}

var bufPool = sync.Pool{New: func() any { return make([]byte, 0, 64) }}

func getBuf(n int) []byte {
	b := bufPool.Get().([]byte)
	if cap(b) < n {
		return make([]byte, 0, n)
	}
	return b[:0]
}

func putBuf(b []byte) { bufPool.Put(b) }
