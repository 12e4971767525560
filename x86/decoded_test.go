// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodedInsn(t *testing.T) {
	tests := []struct {
		Insn   DecodedInsn
		String string
		Size   int
		Width  int
		In     bool
		Out    bool
	}{
		{
			Insn:   DecodedInsn{op: OpCPUID},
			String: "cpuid",
			Size:   2,
		},
		{
			Insn:   DecodedInsn{op: OpInB, operand: rdx()},
			String: "in al, dx",
			Size:   1,
			Width:  1,
			In:     true,
		},
		{
			Insn:   DecodedInsn{op: OpInW, operand: rdx()},
			String: "in ax, dx",
			Size:   2,
			Width:  2,
			In:     true,
		},
		{
			Insn:   DecodedInsn{op: OpInL, operand: rdx()},
			String: "in eax, dx",
			Size:   1,
			Width:  4,
			In:     true,
		},
		{
			Insn:   DecodedInsn{op: OpOutB, operand: rdx()},
			String: "out dx, al",
			Size:   1,
			Width:  1,
			Out:    true,
		},
		{
			Insn:   DecodedInsn{op: OpOutW, operand: rdx()},
			String: "out dx, ax",
			Size:   2,
			Width:  2,
			Out:    true,
		},
		{
			Insn:   DecodedInsn{op: OpOutL, operand: rdx()},
			String: "out dx, eax",
			Size:   1,
			Width:  4,
			Out:    true,
		},
		{
			Insn:   DecodedInsn{},
			String: "invalid",
		},
	}

	for _, test := range tests {
		t.Run(test.Insn.Op().String(), func(t *testing.T) {
			if got := test.Insn.String(); got != test.String {
				t.Errorf("String(): got %q, want %q", got, test.String)
			}

			if got := test.Insn.Size(); got != test.Size {
				t.Errorf("Size(): got %d, want %d", got, test.Size)
			}

			if got := test.Insn.IOWidth(); got != test.Width {
				t.Errorf("IOWidth(): got %d, want %d", got, test.Width)
			}

			if got := test.Insn.IsIn(); got != test.In {
				t.Errorf("IsIn(): got %v, want %v", got, test.In)
			}

			if got := test.Insn.IsOut(); got != test.Out {
				t.Errorf("IsOut(): got %v, want %v", got, test.Out)
			}

			if got := test.Insn.IsIO(); got != (test.In || test.Out) {
				t.Errorf("IsIO(): got %v", got)
			}

			op, ok := test.Insn.Operand()
			if ok != test.Insn.IsIO() {
				t.Fatalf("Operand(): got ok %v, want %v", ok, test.Insn.IsIO())
			}

			if ok {
				if reg, isReg := op.Register(); !isReg || reg != RDX {
					t.Errorf("Operand(): got %v, want rdx", op)
				}
			}
		})
	}
}

func TestSizeBounds(t *testing.T) {
	for _, op := range Ops {
		size := DecodedInsn{op: op}.Size()
		if size < 1 || size > MaxInsnSize {
			t.Errorf("%s: got size %d, want 1 to %d", op, size, MaxInsnSize)
		}
	}

	if size := (DecodedInsn{op: numOps + 1}).Size(); size != 0 {
		t.Errorf("unknown op: got size %d, want 0", size)
	}
}

func TestOpText(t *testing.T) {
	type wrapper struct {
		Ops []Op `json:"ops"`
	}

	in := wrapper{Ops: Ops}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal(): %v", err)
	}

	const want = `{"ops":["cpuid","inb","inw","inl","outb","outw","outl"]}`
	if string(data) != want {
		t.Fatalf("json.Marshal(): got %s, want %s", data, want)
	}

	var out wrapper
	err = json.Unmarshal(data, &out)
	if err != nil {
		t.Fatalf("json.Unmarshal(): %v", err)
	}

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("json.Unmarshal(): (-want, +got)\n%s", diff)
	}

	if _, err := ParseOp("insb"); err == nil {
		t.Errorf("ParseOp(insb): got no error")
	}

	if _, err := OpInvalid.MarshalText(); err == nil {
		t.Errorf("OpInvalid.MarshalText(): got no error")
	}
}

func TestOperand(t *testing.T) {
	var none Operand
	if none.Kind() != OperandNone || none.String() != "none" {
		t.Errorf("zero Operand: got kind %v, string %q", none.Kind(), none.String())
	}

	imm := ImmediateOperand(Imm16(0x3f8))
	if _, ok := imm.Register(); ok {
		t.Errorf("immediate Operand.Register(): got ok")
	}

	got, ok := imm.Immediate()
	if !ok || got.Bits() != 16 || got.Value() != 0x3f8 {
		t.Errorf("immediate Operand.Immediate(): got %v (%d bits), %v", got, got.Bits(), ok)
	}

	if s := imm.String(); s != "0x03f8" {
		t.Errorf("immediate Operand.String(): got %q, want %q", s, "0x03f8")
	}

	tests := []struct {
		Imm    Immediate
		Bits   int
		String string
	}{
		{Imm8(0x41), 8, "0x41"},
		{Imm16(0x80), 16, "0x0080"},
		{Imm32(0xcf8), 32, "0x00000cf8"},
		{Immediate{}, 0, "Immediate()"},
	}

	for _, test := range tests {
		if test.Imm.Bits() != test.Bits || test.Imm.String() != test.String {
			t.Errorf("Immediate: got %d bits %q, want %d bits %q", test.Imm.Bits(), test.Imm.String(), test.Bits, test.String)
		}
	}
}

func TestRegisters(t *testing.T) {
	if len(Registers) != 16 {
		t.Fatalf("got %d registers, want 16", len(Registers))
	}

	seen := make(map[string]bool)
	for _, reg := range Registers {
		if !reg.Valid() {
			t.Errorf("%s: not valid", reg)
		}

		for _, width := range []int{1, 2, 4, 8} {
			name := reg.Name(width)
			if seen[name] {
				t.Errorf("%s: duplicate name %q", reg, name)
			}

			seen[name] = true
		}
	}

	if got := RDX.Name(2); got != "dx" {
		t.Errorf("RDX.Name(2): got %q, want dx", got)
	}

	bad := Register(16)
	if bad.Valid() || bad.String() != "Register(16)" || bad.Name(1) != "Register(16)" {
		t.Errorf("Register(16): got valid %v, name %q", bad.Valid(), bad.String())
	}
}

func TestVCError(t *testing.T) {
	err := ErrDecodeFailed.WithFault(0xffff_8000_0000_1000, 0x7b)
	if err == ErrDecodeFailed {
		t.Fatalf("WithFault returned the sentinel")
	}

	if ErrDecodeFailed.RIP != 0 || ErrDecodeFailed.Code != 0 {
		t.Fatalf("WithFault modified the sentinel")
	}

	const want = "#VC at rip 0xffff800000001000 (exit code 0x7b): decode failed"
	if got := err.Error(); got != want {
		t.Errorf("Error(): got %q, want %q", got, want)
	}

	wrapped := fmt.Errorf("guest 3: %w", err)
	if !errors.Is(wrapped, ErrDecodeFailed) {
		t.Errorf("errors.Is(wrapped, ErrDecodeFailed): got false")
	}

	if errors.Is(wrapped, ErrUnsupported) {
		t.Errorf("errors.Is(wrapped, ErrUnsupported): got true")
	}

	if errors.Is(err, ErrBufferLength) {
		t.Errorf("errors.Is(err, ErrBufferLength): got true")
	}
}
