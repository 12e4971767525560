// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package record writes trapped instructions to a trace
// file.
package record

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"firefly-os.dev/tools/vctrap/vc"
	"firefly-os.dev/tools/vctrap/x86"
)

var program = filepath.Base(os.Args[0])

// Main writes a trace containing the
// given traps.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("record", flag.ExitOnError)

	var help bool
	var out string
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.StringVar(&out, "o", "", "The trace file to write.")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] RIP:CODE:HEX...\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	if out == "" || flags.NArg() == 0 {
		flags.Usage()
	}

	records := make([]vc.Record, flags.NArg())
	for i, arg := range flags.Args() {
		records[i], err = ParseRecord(arg)
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	err = vc.WriteTrace(&buf, records)
	if err != nil {
		return err
	}

	err = os.WriteFile(out, buf.Bytes(), 0644)
	if err != nil {
		return fmt.Errorf("failed to write trace: %v", err)
	}

	fmt.Fprintf(w, "Wrote %d records to %s.\n", len(records), out)

	return nil
}

// ParseRecord parses a trap of the form
// RIP:CODE:HEX, such as 0x1000:0x7b:66ed.
func ParseRecord(s string) (vc.Record, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return vc.Record{}, fmt.Errorf("invalid trap %q: want RIP:CODE:HEX", s)
	}

	rip, err := strconv.ParseUint(parts[0], 0, 64)
	if err != nil {
		return vc.Record{}, fmt.Errorf("invalid trap %q: bad rip: %v", s, err)
	}

	code, err := strconv.ParseUint(parts[1], 0, 64)
	if err != nil {
		return vc.Record{}, fmt.Errorf("invalid trap %q: bad exit code: %v", s, err)
	}

	insn, err := x86.ParseHex(parts[2])
	if err != nil {
		return vc.Record{}, fmt.Errorf("invalid trap %q: %v", s, err)
	}

	return vc.Record{RIP: rip, Code: code, Bytes: insn}, nil
}
