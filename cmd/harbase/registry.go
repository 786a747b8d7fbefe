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

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
)

// command is the interface every subcommand implements, the same
// Describe/Usage/RunCommand shape camtool's subcommands use.
type command interface {
	Describe() string
	Usage()
	RunCommand(args []string) error
}

// usageError causes the CLI to print that subcommand's usage and exit 2
// (spec.md §6), instead of the generic exit code 1.
type usageError string

func (e usageError) Error() string { return string(e) }

var (
	commands     = map[string]command{}
	commandFlags = map[string]*flag.FlagSet{}
	commandOrder []string
)

// register adds a subcommand. make is called once, immediately, so it
// can bind flags to fields on the returned command.
func register(name string, make func(fs *flag.FlagSet) command) {
	if _, dup := commands[name]; dup {
		panic("duplicate command registered: " + name)
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd := make(fs)
	commands[name] = cmd
	commandFlags[name] = fs
	commandOrder = append(commandOrder, name)
}

func printTopLevelUsage() {
	sort.Strings(commandOrder)
	fmt.Fprintf(os.Stderr, "Usage: harbase <command> [flags]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", name, commands[name].Describe())
	}
	fmt.Fprintf(os.Stderr, "\nRun \"harbase <command> -help\" for flags specific to one command.\n")
}

// runCLI parses args[0] as a command name and runs it, returning the
// process exit code spec.md §6 assigns to the outcome.
func runCLI(args []string) int {
	if len(args) == 0 {
		printTopLevelUsage()
		return 2
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "harbase: unknown command %q\n\n", name)
		printTopLevelUsage()
		return 2
	}

	fs := commandFlags[name]
	fs.Usage = cmd.Usage
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	err := cmd.RunCommand(fs.Args())
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "harbase %s: %v\n", name, err)
	var ue usageError
	if errors.As(err, &ue) {
		cmd.Usage()
	}
	return exitCodeFor(err)
}
