// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package check runs the decoder against files of test
// vectors.
//
// Vector files can be written in TOML:
//
//	[[vector]]
//	name = "inw"
//	code = "66 ed 41 41"
//	want = "inw"
//	size = 2
//
//	[[vector]]
//	name = "0x66 before outb"
//	code = "66 ee"
//	fail = true
//
// or, with the same fields, in YAML.
package check

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"firefly-os.dev/tools/vctrap/x86"
)

var program = filepath.Base(os.Args[0])

// Vector is a single test case.
type Vector struct {
	Name string `toml:"name" yaml:"name"`
	Code string `toml:"code" yaml:"code"` // Machine code, in hex.
	Want x86.Op `toml:"want" yaml:"want"` // The expected instruction.
	Size int    `toml:"size" yaml:"size"` // The expected size, if non-zero.
	Fail bool   `toml:"fail" yaml:"fail"` // Whether decoding should fail.
}

// File is the contents of a vector file.
type File struct {
	Vectors []Vector `toml:"vector" yaml:"vector"`
}

// Main checks each vector file given.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("check", flag.ExitOnError)

	var help, verbose bool
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.BoolVar(&verbose, "v", false, "Print passing vectors too.")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] FILE...\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	filenames := flags.Args()
	if len(filenames) == 0 {
		flags.Usage()
	}

	var total, failed int
	for _, filename := range filenames {
		vectors, err := ReadFile(filename)
		if err != nil {
			return err
		}

		for _, vector := range vectors {
			total++
			err := vector.Check()
			if err != nil {
				failed++
				fmt.Fprintf(w, "FAIL %s: %s: %v\n", filename, vector.Name, err)
			} else if verbose {
				fmt.Fprintf(w, "ok   %s: %s\n", filename, vector.Name)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d vectors failed", failed, total)
	}

	fmt.Fprintf(w, "%d vectors passed\n", total)

	return nil
}

// ReadFile parses a vector file, using
// the file extension to select the format.
func ReadFile(filename string) ([]Vector, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	var file File
	switch ext := filepath.Ext(filename); ext {
	case ".toml":
		md, err := toml.NewDecoder(f).Decode(&file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", filename, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}

			return nil, fmt.Errorf("failed to parse %s: unknown fields %s", filename, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(&file)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse %s: %v", filename, err)
		}
	default:
		return nil, fmt.Errorf("unsupported vector file %s: unrecognised extension %q", filename, ext)
	}

	for i, vector := range file.Vectors {
		err = vector.validate()
		if err != nil {
			return nil, fmt.Errorf("invalid vector %d in %s: %v", i, filename, err)
		}
	}

	return file.Vectors, nil
}

func (v *Vector) validate() error {
	switch {
	case v.Name == "":
		return errors.New("missing name")
	case v.Code == "":
		return fmt.Errorf("%s: missing code", v.Name)
	case v.Fail && (v.Want != x86.OpInvalid || v.Size != 0):
		return fmt.Errorf("%s: failing vector has an expected result", v.Name)
	case !v.Fail && v.Want == x86.OpInvalid:
		return fmt.Errorf("%s: missing expected instruction", v.Name)
	}

	return nil
}

// Check decodes the vector's code and
// compares the result with what the
// vector expects.
func (v *Vector) Check() error {
	insn, err := x86.InstructionFromHex(v.Code)
	if err != nil {
		return err
	}

	got, err := insn.Decode()
	if v.Fail {
		if err == nil {
			return fmt.Errorf("got %s, want decode failure", got)
		}

		if !errors.Is(err, x86.ErrDecodeFailed) {
			return fmt.Errorf("got error %v, want %v", err, x86.ErrDecodeFailed)
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("got error %v, want %s", err, v.Want)
	}

	if got.Op() != v.Want {
		return fmt.Errorf("got %s, want %s", got.Op(), v.Want)
	}

	if v.Size != 0 && got.Size() != v.Size {
		return fmt.Errorf("got size %d, want %d", got.Size(), v.Size)
	}

	return nil
}
