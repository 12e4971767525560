// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package vc handles VM communication exceptions (#VC) for
// the instructions that package x86 can decode.
//
// A Handler fetches the faulting instruction's bytes from
// the guest, decodes them, passes the decoded instruction
// to an Emulator, and moves the guest past the instruction.
// The decoder never sees the faulting context, so the
// Handler fills it into any error before returning it.
package vc

import (
	"errors"
	"fmt"
	"sync/atomic"

	"firefly-os.dev/tools/vctrap/x86"
)

// ErrNoEmulator is returned by Handle when
// the Handler has no Emulator.
var ErrNoEmulator = errors.New("no emulator")

// Exit codes that can be handled.
const (
	ExitCPUID = 0x72 // CPUID instruction.
	ExitIOIO  = 0x7b // Port I/O instruction.
)

// Guest is the execution context that
// raised the exception.
//
// Each guest context is handled by a single
// goroutine at a time.
type Guest interface {
	RIP() uint64
	SetRIP(rip uint64)
	Register(r x86.Register) uint64
	SetRegister(r x86.Register, v uint64)

	// FetchInstruction copies the bytes at
	// rip into buf.
	FetchInstruction(rip uint64, buf *[x86.MaxInsnSize]byte) error
}

// Emulator performs the semantics of a
// decoded instruction.
type Emulator interface {
	// CPUID reads the leaf and subleaf from
	// the guest and writes the results back.
	CPUID(g Guest) error

	// In reads width bytes from port.
	In(port uint16, width int) (uint32, error)

	// Out writes the low width bytes of
	// value to port.
	Out(port uint16, width int, value uint32) error
}

// Handler handles #VC exceptions. A Handler
// can be shared between goroutines handling
// different guest contexts.
//
// A Handler with no Emulator can still be
// used to Decode.
type Handler struct {
	Emulator Emulator

	decoded [len(opCounters)]atomic.Uint64
	handled [len(opCounters)]atomic.Uint64
	failed  [len(failCounters)]atomic.Uint64
}

// opCounters and failCounters give the
// order of the Handler's counters.
var (
	opCounters   = [...]x86.Op{x86.OpCPUID, x86.OpInB, x86.OpInW, x86.OpInL, x86.OpOutB, x86.OpOutW, x86.OpOutL}
	failCounters = [...]x86.VCErrorType{x86.VCErrorDecodeFailed, x86.VCErrorUnsupported, x86.VCErrorUnknownExit}
)

// Stats contains the number of exceptions
// a Handler has processed.
type Stats struct {
	Decoded map[x86.Op]uint64          // Instructions decoded.
	Handled map[x86.Op]uint64          // Instructions emulated.
	Failed  map[x86.VCErrorType]uint64 // Exceptions not handled.
}

// Stats returns a snapshot of h's counters.
func (h *Handler) Stats() Stats {
	s := Stats{
		Decoded: make(map[x86.Op]uint64),
		Handled: make(map[x86.Op]uint64),
		Failed:  make(map[x86.VCErrorType]uint64),
	}

	for i, op := range opCounters {
		if n := h.decoded[i].Load(); n != 0 {
			s.Decoded[op] = n
		}

		if n := h.handled[i].Load(); n != 0 {
			s.Handled[op] = n
		}
	}

	for i, typ := range failCounters {
		if n := h.failed[i].Load(); n != 0 {
			s.Failed[typ] = n
		}
	}

	return s
}

func (h *Handler) count(counters *[len(opCounters)]atomic.Uint64, op x86.Op) {
	for i, want := range opCounters {
		if want == op {
			counters[i].Add(1)
			return
		}
	}
}

func (h *Handler) countFailed(err *x86.VCError) *x86.VCError {
	for i, want := range failCounters {
		if want == err.Type {
			h.failed[i].Add(1)
			break
		}
	}

	return err
}

// Decode fetches and decodes the instruction
// at the guest's instruction pointer, for an
// exception with the given exit code.
//
// Any *x86.VCError returned includes the
// faulting RIP and exit code.
func (h *Handler) Decode(g Guest, code uint64) (x86.DecodedInsn, error) {
	rip := g.RIP()
	switch code {
	case ExitCPUID, ExitIOIO:
	default:
		return x86.DecodedInsn{}, h.countFailed(x86.ErrUnknownExit.WithFault(rip, code))
	}

	var raw [x86.MaxInsnSize]byte
	err := g.FetchInstruction(rip, &raw)
	if err != nil {
		return x86.DecodedInsn{}, fmt.Errorf("failed to fetch instruction at rip %#x: %w", rip, err)
	}

	insn := x86.NewInstruction(raw)
	decoded, err := insn.Decode()
	if err != nil {
		vcErr, ok := err.(*x86.VCError)
		if !ok {
			return x86.DecodedInsn{}, err
		}

		return x86.DecodedInsn{}, h.countFailed(vcErr.WithFault(rip, code))
	}

	// The instruction must be one that
	// causes the exit we were given.
	var matches bool
	switch code {
	case ExitCPUID:
		matches = decoded.Op() == x86.OpCPUID
	case ExitIOIO:
		matches = decoded.IsIO()
	}

	if !matches {
		return x86.DecodedInsn{}, h.countFailed(x86.ErrUnsupported.WithFault(rip, code))
	}

	h.count(&h.decoded, decoded.Op())

	return decoded, nil
}

// Handle handles a #VC exception with the
// given exit code. On success, the guest's
// instruction pointer is advanced past the
// emulated instruction. On failure, the
// guest's instruction pointer is unchanged
// and the caller decides whether to inject
// a fault or stop the guest.
func (h *Handler) Handle(g Guest, code uint64) error {
	if h.Emulator == nil {
		return fmt.Errorf("failed to emulate exit code %#x at rip %#x: %w", code, g.RIP(), ErrNoEmulator)
	}

	decoded, err := h.Decode(g, code)
	if err != nil {
		return err
	}

	err = h.emulate(g, decoded)
	if err != nil {
		return fmt.Errorf("failed to emulate %s at rip %#x: %w", decoded, g.RIP(), err)
	}

	h.count(&h.handled, decoded.Op())
	g.SetRIP(g.RIP() + uint64(decoded.Size()))

	return nil
}

// widthMask returns the mask for an
// I/O width in bytes.
func widthMask(width int) uint64 {
	switch width {
	case 1:
		return 0xff
	case 2:
		return 0xffff
	default:
		return 0xffff_ffff
	}
}

func (h *Handler) emulate(g Guest, decoded x86.DecodedInsn) error {
	if decoded.Op() == x86.OpCPUID {
		return h.Emulator.CPUID(g)
	}

	operand, ok := decoded.Operand()
	if !ok {
		return fmt.Errorf("%s has no port operand", decoded)
	}

	reg, ok := operand.Register()
	if !ok {
		return fmt.Errorf("%s has unsupported port operand %s", decoded, operand)
	}

	port := uint16(g.Register(reg))
	width := decoded.IOWidth()
	mask := widthMask(width)
	if decoded.IsOut() {
		value := g.Register(x86.RAX) & mask
		return h.Emulator.Out(port, width, uint32(value))
	}

	value, err := h.Emulator.In(port, width)
	if err != nil {
		return err
	}

	// 8 and 16-bit writes preserve the rest
	// of the register, but 32-bit writes
	// clear the upper half.
	rax := uint64(value) & mask
	if width < 4 {
		rax |= g.Register(x86.RAX) &^ mask
	}

	g.SetRegister(x86.RAX, rax)

	return nil
}
