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

// Package config builds the single immutable Options value the rest of
// harbase is constructed from. One Options is built per process
// invocation and passed explicitly into the coordinator, store, and
// FTS maintainer constructors; nothing in this module reads ambient
// global state for its policy, per spec.md §9's "Global state" note.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"harbase.dev/harbase/pkg/fts"
	"harbase.dev/harbase/pkg/sizeutil"
)

// Options is the fully-resolved configuration for one invocation. Every
// field has a zero value that is a safe default, so an Options built
// directly (not through Load) is usable as-is.
type Options struct {
	// Blob store.
	ExternalBlobs bool   `yaml:"external_blobs"`
	ExternalRoot  string `yaml:"external_root"`
	ExternalDepth int    `yaml:"external_depth"`

	// Normalization.
	StoreBodies      bool   `yaml:"store_bodies"`
	DecompressBodies bool   `yaml:"decompress_bodies"`
	KeepCompressed   bool   `yaml:"keep_compressed"`
	TextOnly         bool   `yaml:"text_only"`
	MaxBodySize      string `yaml:"max_body_size"` // parsed via sizeutil.Parse

	// FTS.
	Tokenizer string `yaml:"tokenizer"`

	// Import.
	SavepointInterval int `yaml:"savepoint_interval"`
	Workers           int `yaml:"workers"`
}

// Defaults returns the built-in Options before any file or flag
// overrides are applied.
func Defaults() Options {
	return Options{
		ExternalDepth:     2,
		MaxBodySize:       "unlimited",
		Tokenizer:         "unicode61",
		SavepointInterval: 1000,
		Workers:           4,
	}
}

// Load reads an optional YAML defaults file at path and merges it over
// Defaults(); a missing file is not an error (the defaults file is
// optional per spec.md §3.3). Every key present in the file overrides
// the built-in default, even when its value is a zero value; keys the
// file omits keep the default (see mergeYAML).
func Load(path string) (Options, error) {
	opts := Defaults()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fromFile Options
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	mergeYAML(&opts, fromFile, data)
	return opts, nil
}

// mergeYAML overlays fields present in raw (detected via a second,
// targeted unmarshal into a string-keyed map) onto dst. YAML unmarshals
// an absent bool key as false, indistinguishable from an explicit
// "false"; checking key presence against the raw document avoids a
// defaults file that omits "decompress_bodies" silently disabling it.
func mergeYAML(dst *Options, parsed Options, raw []byte) {
	var present map[string]interface{}
	if err := yaml.Unmarshal(raw, &present); err != nil {
		return
	}
	if _, ok := present["external_blobs"]; ok {
		dst.ExternalBlobs = parsed.ExternalBlobs
	}
	if _, ok := present["external_root"]; ok {
		dst.ExternalRoot = parsed.ExternalRoot
	}
	if _, ok := present["external_depth"]; ok {
		dst.ExternalDepth = parsed.ExternalDepth
	}
	if _, ok := present["store_bodies"]; ok {
		dst.StoreBodies = parsed.StoreBodies
	}
	if _, ok := present["decompress_bodies"]; ok {
		dst.DecompressBodies = parsed.DecompressBodies
	}
	if _, ok := present["keep_compressed"]; ok {
		dst.KeepCompressed = parsed.KeepCompressed
	}
	if _, ok := present["text_only"]; ok {
		dst.TextOnly = parsed.TextOnly
	}
	if _, ok := present["max_body_size"]; ok {
		dst.MaxBodySize = parsed.MaxBodySize
	}
	if _, ok := present["tokenizer"]; ok {
		dst.Tokenizer = parsed.Tokenizer
	}
	if _, ok := present["savepoint_interval"]; ok {
		dst.SavepointInterval = parsed.SavepointInterval
	}
	if _, ok := present["workers"]; ok {
		dst.Workers = parsed.Workers
	}
}

// MaxBodyBytes parses o.MaxBodySize, per spec.md §6's human-size grammar.
// An empty MaxBodySize means sizeutil.Unlimited.
func (o Options) MaxBodyBytes() (int64, error) {
	if o.MaxBodySize == "" {
		return sizeutil.Unlimited, nil
	}
	return sizeutil.ParseBytes(o.MaxBodySize)
}

// ResolveTokenizer parses o.Tokenizer into an fts.Tokenizer.
func (o Options) ResolveTokenizer() (fts.Tokenizer, error) {
	return fts.ParseTokenizer(o.Tokenizer)
}
