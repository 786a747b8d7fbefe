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

// Package logging builds the one *zap.Logger a harbase process
// constructs at startup. Nothing in this module reaches for a package
// global logger; every caller that needs one receives it explicitly
// (the coordinator and dispatcher as a constructor argument; the CLI
// builds it and passes it on, and prints its own one-line messages with
// fmt), per spec.md §9's "pass it explicitly" note.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls the logger New builds.
type Options struct {
	// Verbose enables debug-level logging; otherwise the floor is info.
	Verbose bool
	// JSON selects structured JSON output instead of the
	// human-readable console encoder; the CLI defaults to console,
	// scripted/CI invocations typically want JSON.
	JSON bool
}

// New builds a *zap.Logger per opts. Callers own the returned logger
// and should defer logger.Sync() where the process has a clean
// shutdown path.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if opts.JSON {
		cfg.Encoding = "json"
		cfg.EncoderConfig = zap.NewProductionEncoderConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

// Nop returns a logger that discards everything, for tests and other
// callers that don't want log output wired up.
func Nop() *zap.Logger {
	return zap.NewNop()
}
