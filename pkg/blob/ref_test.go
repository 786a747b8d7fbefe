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

package blob

import (
	"strings"
	"testing"
)

func TestSumAndParseRoundTrip(t *testing.T) {
	r := Sum([]byte("hi!\n"))
	if !r.Valid() {
		t.Fatal("Sum returned invalid Ref")
	}
	s := r.String()
	if len(s) != 64 {
		t.Fatalf("String() length = %d, want 64", len(s))
	}
	r2, ok := Parse(s)
	if !ok {
		t.Fatalf("Parse(%q) failed", s)
	}
	if r2 != r {
		t.Fatalf("Parse(String()) = %v, want %v", r2, r)
	}
}

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("same bytes"))
	b := Sum([]byte("same bytes"))
	if a != b {
		t.Fatal("Sum is not deterministic")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	cases := []string{"", "not-hex", strings.Repeat("a", 63), strings.Repeat("g", 64)}
	for _, c := range cases {
		if _, ok := Parse(c); ok {
			t.Errorf("Parse(%q) unexpectedly succeeded", c)
		}
	}
}

func TestZeroRefInvalid(t *testing.T) {
	var r Ref
	if r.Valid() {
		t.Fatal("zero Ref reports Valid")
	}
	if r.String() != "<invalid-blob.Ref>" {
		t.Fatalf("zero Ref String() = %q", r.String())
	}
}

func TestDirSharded(t *testing.T) {
	r := Sum([]byte("shard me"))
	parts := r.DirSharded(2)
	if len(parts) != 3 {
		t.Fatalf("DirSharded(2) returned %d parts, want 3", len(parts))
	}
	full := r.String()
	if parts[0] != full[0:2] || parts[1] != full[2:4] || parts[2] != full {
		t.Fatalf("DirSharded(2) = %v, want shards of %s", parts, full)
	}
}

func TestSumReaderMatchesSum(t *testing.T) {
	data := []byte("streamed content")
	want := Sum(data)
	got, n, err := SumReader(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("SumReader: %v", err)
	}
	if n != int64(len(data)) {
		t.Fatalf("SumReader n = %d, want %d", n, len(data))
	}
	if got != want {
		t.Fatalf("SumReader() = %v, want %v", got, want)
	}
}
