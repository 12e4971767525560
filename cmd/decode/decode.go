// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package decode decodes instructions given on the command
// line.
package decode

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"

	"firefly-os.dev/tools/vctrap/x86"
)

var program = filepath.Base(os.Args[0])

// Result is the JSON form of a decoded
// instruction.
type Result struct {
	Code     string `json:"code"`
	Op       x86.Op `json:"op,omitempty"`
	Syntax   string `json:"syntax,omitempty"`
	Size     int    `json:"size,omitempty"`
	Register string `json:"register,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Main decodes each instruction given.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("decode", flag.ExitOnError)

	var help, asJSON, verbose bool
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.BoolVar(&asJSON, "json", false, "Print the results as JSON.")
	flags.BoolVar(&verbose, "v", false, "Dump the decoded structures.")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] HEX...\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	codes := flags.Args()
	if len(codes) == 0 {
		flags.Usage()
	}

	var failed int
	enc := json.NewEncoder(w)
	for _, code := range codes {
		insn, err := x86.InstructionFromHex(code)
		if err != nil {
			return err
		}

		decoded, err := insn.Decode()
		if err != nil {
			failed++
		}

		switch {
		case asJSON:
			err = enc.Encode(result(&insn, decoded, err))
			if err != nil {
				return err
			}
		case err != nil:
			fmt.Fprintf(w, "%s: %v\n", insn.Bytes.String(), err)
		default:
			fmt.Fprintf(w, "%s: %s (%d bytes)\n", insn.Bytes.String(), decoded, decoded.Size())
		}

		if verbose {
			spew.Fdump(w, insn, decoded)
		}
	}

	if failed > 0 {
		return errors.New(pluralise(failed, "instruction") + " failed to decode")
	}

	return nil
}

func result(insn *x86.Instruction, decoded x86.DecodedInsn, err error) Result {
	res := Result{Code: insn.Bytes.String()}
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Op = decoded.Op()
	res.Syntax = decoded.String()
	res.Size = decoded.Size()
	if op, ok := decoded.Operand(); ok {
		res.Register = op.String()
	}

	return res
}

func pluralise(n int, s string) string {
	if n == 1 {
		return "1 " + s
	}

	return fmt.Sprintf("%d %ss", n, s)
}
