// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"rsc.io/diff"
)

func TestPrintUsage(t *testing.T) {
	sort.Strings(commandsNames)

	var buf bytes.Buffer
	printUsage(&buf)

	want := strings.Join([]string{
		program + " checks how the #VC handler decodes trapped instructions.",
		"",
		"Usage:",
		"  " + program + " COMMAND [OPTIONS]",
		"",
		"Commands:",
		"  check   Check the decoder against files of test vectors",
		"  decode  Decode instructions given in hex",
		"  record  Write trapped instructions to a trace file",
		"  replay  Decode the instructions in a trace file",
		"  table   Print every encoding the decoder accepts",
		"",
		"Run '" + program + " COMMAND -h' for the options of a command.",
		"",
	}, "\n")

	if got := buf.String(); got != want {
		t.Fatalf("printUsage(): (+got, -want)\n%s", diff.Format(want, got))
	}
}

func TestRegisterCommand(t *testing.T) {
	for _, name := range commandsNames {
		cmd := commandsMap[name]
		if cmd == nil || cmd.Func == nil || cmd.Description == "" {
			t.Errorf("command %q is not fully registered", name)
		}
	}

	defer func() {
		if recover() == nil {
			t.Errorf("RegisterCommand(decode): duplicate registration did not panic")
		}
	}()

	RegisterCommand("decode", "Duplicate", commandsMap["decode"].Func)
}
