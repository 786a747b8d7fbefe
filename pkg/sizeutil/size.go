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

// Package sizeutil parses and formats human-readable byte sizes for
// flags such as --max-body-size, including the "unlimited" sentinel.
package sizeutil

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// Unlimited represents an uncapped size.
const Unlimited int64 = -1

// ParseBytes parses a human byte size such as "2MB", "512K", "1.5GB", or
// the literal "unlimited" (case-insensitive). It returns Unlimited for
// the unlimited sentinel.
func ParseBytes(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if strings.EqualFold(trimmed, "unlimited") {
		return Unlimited, nil
	}
	if trimmed == "" {
		return 0, fmt.Errorf("sizeutil: empty size")
	}
	f, err := humanize.ParseBytes(normalizeUnit(trimmed))
	if err != nil {
		return 0, fmt.Errorf("sizeutil: invalid size %q: %w", s, err)
	}
	if f > math.MaxInt64 {
		return 0, fmt.Errorf("sizeutil: size %q overflows int64", s)
	}
	return int64(f), nil
}

// normalizeUnit rewrites K, KB, M, MB, G, GB, T and TB (any case) as
// KiB, MiB, GiB and TiB, so every unit is a power of 1024;
// humanize.ParseBytes would read "KB" and "K" as 1000. Plain numbers,
// "B" and units already spelled with "i" pass through unchanged.
func normalizeUnit(s string) string {
	unit := strings.TrimSuffix(strings.ToUpper(s), "B")
	if unit == "" {
		return s
	}
	switch unit[len(unit)-1] {
	case 'K', 'M', 'G', 'T':
		return unit + "iB"
	default:
		return s
	}
}

// FormatBytes renders n using the same convention ParseBytes accepts
// (powers of 1024), or "unlimited" when n is Unlimited (or negative).
func FormatBytes(n int64) string {
	if n < 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(n))
}

// WithinLimit reports whether size is permitted under the configured
// max (Unlimited always permits).
func WithinLimit(size, max int64) bool {
	return max == Unlimited || size <= max
}
