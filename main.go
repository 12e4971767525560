// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Command vctrap inspects the decoding of instructions that
// trigger VM communication exceptions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"firefly-os.dev/tools/vctrap/cmd/check"
	"firefly-os.dev/tools/vctrap/cmd/decode"
	"firefly-os.dev/tools/vctrap/cmd/record"
	"firefly-os.dev/tools/vctrap/cmd/replay"
	"firefly-os.dev/tools/vctrap/cmd/table"
)

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.SetPrefix("")
}

type Command struct {
	Name        string
	Description string
	Func        func(ctx context.Context, w io.Writer, args []string) error
}

var (
	commandsNames = make([]string, 0, 10)
	commandsMap   = make(map[string]*Command)

	program = filepath.Base(os.Args[0])
)

func RegisterCommand(name, description string, fun func(ctx context.Context, w io.Writer, args []string) error) {
	if commandsMap[name] != nil {
		panic("command " + name + " already registered")
	}

	if fun == nil {
		panic("command " + name + " registered with nil implementation")
	}

	commandsNames = append(commandsNames, name)
	commandsMap[name] = &Command{Name: name, Description: description, Func: fun}
}

func init() {
	RegisterCommand("check", "Check the decoder against files of test vectors", check.Main)
	RegisterCommand("decode", "Decode instructions given in hex", decode.Main)
	RegisterCommand("record", "Write trapped instructions to a trace file", record.Main)
	RegisterCommand("replay", "Decode the instructions in a trace file", replay.Main)
	RegisterCommand("table", "Print every encoding the decoder accepts", table.Main)
}

// printUsage describes the tool and lists
// the registered commands.
func printUsage(w io.Writer) {
	fmt.Fprintf(w, "%s checks how the #VC handler decodes trapped instructions.\n\n", program)
	fmt.Fprintf(w, "Usage:\n  %s COMMAND [OPTIONS]\n\n", program)
	fmt.Fprintf(w, "Commands:\n")
	maxWidth := 0
	for _, name := range commandsNames {
		if maxWidth < len(name) {
			maxWidth = len(name)
		}
	}

	for _, name := range commandsNames {
		cmd := commandsMap[name]
		fmt.Fprintf(w, "  %-*s  %s\n", maxWidth, name, cmd.Description)
	}

	fmt.Fprintf(w, "\nRun '%s COMMAND -h' for the options of a command.\n", program)
}

func main() {
	sort.Strings(commandsNames)

	var help bool
	flag.BoolVar(&help, "h", false, "Show this message and exit.")
	flag.Usage = func() {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	flag.Parse()

	args := flag.Args()
	if help {
		flag.Usage()
	}

	if len(args) == 0 {
		flag.Usage()
	}

	name := args[0]
	cmd, ok := commandsMap[name]
	if !ok {
		log.Printf("unknown command %q", name)
		flag.Usage()
	}

	log.SetPrefix(name + ": ")
	err := cmd.Func(context.Background(), os.Stdout, args[1:])
	if err != nil {
		log.Fatal(err)
	}
}
