// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package replay decodes the instructions in a trace file,
// as the monitor would have when they were trapped.
package replay

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/time/rate"

	"firefly-os.dev/tools/vctrap/vc"
	"firefly-os.dev/tools/vctrap/x86"
)

var program = filepath.Base(os.Args[0])

// Main replays a trace file.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("replay", flag.ExitOnError)

	var help, stats bool
	var perSecond float64
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.BoolVar(&stats, "stats", false, "Print a summary after the replay.")
	flags.Float64Var(&perSecond, "rate", 0, "Maximum number of traps to replay per second (0 for no limit).")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] FILE\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	if flags.NArg() != 1 || perSecond < 0 {
		flags.Usage()
	}

	f, err := os.Open(flags.Arg(0))
	if err != nil {
		return err
	}

	defer f.Close()

	records, err := vc.ReadTrace(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", flags.Arg(0), err)
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	h := new(vc.Handler)
	limiter := rate.NewLimiter(limit, 1)
	for _, record := range records {
		err = limiter.Wait(ctx)
		if err != nil {
			return err
		}

		err = Replay(w, h, record)
		if err != nil {
			return err
		}
	}

	if stats {
		PrintStats(w, h.Stats())
	}

	return nil
}

// traceGuest presents a trace record as
// a guest, so that it can be decoded the
// same way as a live trap.
type traceGuest struct {
	rip  uint64
	insn *x86.Instruction
}

func (g traceGuest) RIP() uint64                          { return g.rip }
func (g traceGuest) SetRIP(rip uint64)                    {}
func (g traceGuest) Register(r x86.Register) uint64       { return 0 }
func (g traceGuest) SetRegister(r x86.Register, v uint64) {}

// FetchInstruction copies the whole raw
// buffer. Bytes that were not captured
// are zero.
func (g traceGuest) FetchInstruction(rip uint64, buf *[x86.MaxInsnSize]byte) error {
	for i := range buf {
		buf[i], _ = g.insn.Bytes.At(i)
	}

	return nil
}

// Replay decodes a single record and
// prints the result. Decoding failures
// are reported, not returned.
func Replay(w io.Writer, h *vc.Handler, record vc.Record) error {
	insn, err := record.Instruction()
	if err != nil {
		return err
	}

	decoded, err := h.Decode(traceGuest{rip: record.RIP, insn: &insn}, record.Code)
	if err != nil {
		var vcErr *x86.VCError
		if !errors.As(err, &vcErr) {
			return err
		}

		_, err = fmt.Fprintf(w, "%#x  %#x  % x: %v\n", record.RIP, record.Code, record.Bytes, vcErr.Type)
		return err
	}

	_, err = fmt.Fprintf(w, "%#x  %#x  % x: %s, next rip %#x\n", record.RIP, record.Code, record.Bytes, decoded, record.RIP+uint64(decoded.Size()))

	return err
}

// PrintStats prints a summary of the
// traps decoded.
func PrintStats(w io.Writer, stats vc.Stats) {
	ops := make([]x86.Op, 0, len(stats.Decoded))
	for op := range stats.Decoded {
		ops = append(ops, op)
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, op := range ops {
		fmt.Fprintf(w, "%-14s  %d\n", op, stats.Decoded[op])
	}

	types := make([]x86.VCErrorType, 0, len(stats.Failed))
	for typ := range stats.Failed {
		types = append(types, typ)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		fmt.Fprintf(w, "%-14s  %d\n", typ, stats.Failed[typ])
	}
}
