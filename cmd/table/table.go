// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package table prints the set of encodings that the decoder
// accepts, found by decoding every possible pair of leading
// bytes.
package table

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"firefly-os.dev/tools/vctrap/x86"
)

var program = filepath.Base(os.Args[0])

// Paddings used to fill the bytes after the
// first two. Every padding must give the
// same result.
var paddings = [...]byte{0x00, 0x41, 0xff}

// Entry describes one accepted encoding.
type Entry struct {
	Code    []byte
	Decoded x86.DecodedInsn
}

// Main prints the table of accepted encodings.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("table", flag.ExitOnError)

	var help bool
	var workers int
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "Number of leading bytes to decode in parallel.")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS]\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	if flags.NArg() != 0 {
		flags.Usage()
	}

	entries, err := Build(ctx, workers)
	if err != nil {
		return err
	}

	return Print(w, entries)
}

// Build decodes every combination of the
// first two bytes and returns the accepted
// encodings, in byte order.
//
// An encoding is listed with only as many
// bytes as the decoded instruction's size.
func Build(ctx context.Context, workers int) ([]Entry, error) {
	if workers < 1 {
		return nil, fmt.Errorf("invalid number of workers %d", workers)
	}

	// Each first byte is decoded by one
	// goroutine, which owns that row.
	var rows [256][]Entry
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for b0 := 0; b0 < 256; b0++ {
		b0 := byte(b0)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			row, err := decodeRow(b0)
			if err != nil {
				return err
			}

			rows[b0] = row
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, row := range rows {
		entries = append(entries, row...)
	}

	return entries, nil
}

// decodeRow decodes every instruction
// starting with b0.
func decodeRow(b0 byte) ([]Entry, error) {
	var row []Entry
	seen := make(map[string]bool)
	for b1 := 0; b1 < 256; b1++ {
		decoded, ok, err := decodePair(b0, byte(b1))
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		// Instructions shorter than two bytes
		// appear once, not once per b1.
		code := []byte{b0, byte(b1)}[:decoded.Size()]
		if seen[string(code)] {
			continue
		}

		seen[string(code)] = true
		row = append(row, Entry{Code: code, Decoded: decoded})
	}

	return row, nil
}

// decodePair decodes the two bytes with
// each padding, checking that they agree.
func decodePair(b0, b1 byte) (decoded x86.DecodedInsn, ok bool, err error) {
	for i, pad := range paddings {
		var raw [x86.MaxInsnSize]byte
		for j := range raw {
			raw[j] = pad
		}

		raw[0] = b0
		raw[1] = b1
		insn := x86.NewInstruction(raw)
		got, gotErr := insn.Decode()
		if i == 0 {
			decoded, ok = got, gotErr == nil
			continue
		}

		if got != decoded || (gotErr == nil) != ok {
			return decoded, false, fmt.Errorf("decoding %02x %02x depends on trailing bytes: got %v with padding %02x, %v with padding %02x", b0, b1, decoded, paddings[0], got, pad)
		}
	}

	return decoded, ok, nil
}

// Print writes the table of entries to w.
func Print(w io.Writer, entries []Entry) error {
	maxWidth := 0
	codes := make([]string, len(entries))
	for i, entry := range entries {
		codes[i] = fmt.Sprintf("% x", entry.Code)
		if maxWidth < len(codes[i]) {
			maxWidth = len(codes[i])
		}
	}

	for i, entry := range entries {
		_, err := fmt.Fprintf(w, "%-*s  %-4s  %-11s  %d\n", maxWidth, codes[i], entry.Decoded.Op(), entry.Decoded, entry.Decoded.Size())
		if err != nil {
			return err
		}
	}

	return nil
}
