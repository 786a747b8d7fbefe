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

package sizeutil

import "testing"

func TestParseBytes(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1024", 1024},
		{"1KB", 1024},
		{"1K", 1024},
		{"1.5MB", 1572864},
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"unlimited", Unlimited},
		{"UNLIMITED", Unlimited},
	}
	for _, c := range cases {
		got, err := ParseBytes(c.in)
		if err != nil {
			t.Errorf("ParseBytes(%q) error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseBytes(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseBytesRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "nope", "-5MB"} {
		if _, err := ParseBytes(in); err == nil {
			t.Errorf("ParseBytes(%q) succeeded, want error", in)
		}
	}
}

func TestWithinLimit(t *testing.T) {
	if !WithinLimit(100, Unlimited) {
		t.Error("WithinLimit should always permit under Unlimited")
	}
	if !WithinLimit(100, 100) {
		t.Error("WithinLimit should permit size == max")
	}
	if WithinLimit(101, 100) {
		t.Error("WithinLimit should reject size > max")
	}
}
