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

package logging

import "testing"

func TestNewBuildsConsoleLogger(t *testing.T) {
	logger, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Sync()
	if !logger.Core().Enabled(2) { // sanity: zapcore.ErrorLevel is always enabled
		t.Error("error level should be enabled at default verbosity")
	}
}

func TestNewBuildsJSONLogger(t *testing.T) {
	logger, err := New(Options{JSON: true, Verbose: true})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Sync()
}

func TestNopDiscardsOutput(t *testing.T) {
	logger := Nop()
	logger.Info("should go nowhere")
}
