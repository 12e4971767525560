// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"fmt"
)

// Op identifies a decoded instruction.
type Op uint8

const (
	OpInvalid Op = iota
	OpCPUID      // CPUID.
	OpInB        // IN AL, DX.
	OpInW        // IN AX, DX.
	OpInL        // IN EAX, DX.
	OpOutB       // OUT DX, AL.
	OpOutW       // OUT DX, AX.
	OpOutL       // OUT DX, EAX.

	numOps
)

// opInfo contains the static properties
// of each Op.
var opInfo = [numOps]struct {
	mnemonic string
	size     int // Encoded length in bytes.
	width    int // I/O width in bytes.
	in       bool
}{
	OpInvalid: {mnemonic: "invalid"},
	OpCPUID:   {mnemonic: "cpuid", size: 2},
	OpInB:     {mnemonic: "inb", size: 1, width: 1, in: true},
	OpInW:     {mnemonic: "inw", size: 2, width: 2, in: true},
	OpInL:     {mnemonic: "inl", size: 1, width: 4, in: true},
	OpOutB:    {mnemonic: "outb", size: 1, width: 1},
	OpOutW:    {mnemonic: "outw", size: 2, width: 2},
	OpOutL:    {mnemonic: "outl", size: 1, width: 4},
}

// Ops contains every Op that Decode
// can produce.
var Ops = []Op{OpCPUID, OpInB, OpInW, OpInL, OpOutB, OpOutW, OpOutL}

// ParseOp returns the Op with the given
// mnemonic.
func ParseOp(s string) (Op, error) {
	for _, op := range Ops {
		if opInfo[op].mnemonic == s {
			return op, nil
		}
	}

	return OpInvalid, fmt.Errorf("invalid instruction %q", s)
}

func (op Op) String() string {
	if op >= numOps {
		return fmt.Sprintf("Op(%d)", uint8(op))
	}

	return opInfo[op].mnemonic
}

func (op Op) MarshalText() ([]byte, error) {
	if op == OpInvalid || op >= numOps {
		return nil, fmt.Errorf("cannot marshal %s", op)
	}

	return []byte(op.String()), nil
}

func (op *Op) UnmarshalText(text []byte) error {
	got, err := ParseOp(string(text))
	if err != nil {
		return err
	}

	*op = got

	return nil
}

// DecodedInsn is an instruction that the
// monitor knows how to emulate.
type DecodedInsn struct {
	op      Op
	operand Operand
}

// Op returns the instruction's identity.
func (d DecodedInsn) Op() Op { return d.op }

// Operand returns the operand that holds
// the I/O port number, if the instruction
// has one.
func (d DecodedInsn) Operand() (Operand, bool) {
	return d.operand, d.operand.Kind() != OperandNone
}

// Size returns the instruction's encoded
// length in bytes. This is how far the
// guest's instruction pointer must be
// advanced once the instruction has been
// emulated. It depends only on the Op,
// not on the bytes that were decoded.
func (d DecodedInsn) Size() int {
	if d.op >= numOps {
		return 0
	}

	return opInfo[d.op].size
}

// IsIO returns whether d is a port I/O
// instruction.
func (d DecodedInsn) IsIO() bool { return d.IOWidth() != 0 }

// IsIn returns whether d reads from a port.
func (d DecodedInsn) IsIn() bool { return d.IsIO() && opInfo[d.op].in }

// IsOut returns whether d writes to a port.
func (d DecodedInsn) IsOut() bool { return d.IsIO() && !opInfo[d.op].in }

// IOWidth returns the number of bytes
// transferred by a port I/O instruction,
// or zero for other instructions.
func (d DecodedInsn) IOWidth() int {
	if d.op >= numOps {
		return 0
	}

	return opInfo[d.op].width
}

// String returns the instruction in
// Intel syntax.
func (d DecodedInsn) String() string {
	switch {
	case d.op == OpCPUID:
		return "cpuid"
	case d.IsIn():
		return fmt.Sprintf("in %s, %s", RAX.Name(d.IOWidth()), d.port())
	case d.IsOut():
		return fmt.Sprintf("out %s, %s", d.port(), RAX.Name(d.IOWidth()))
	default:
		return d.op.String()
	}
}

// port returns the textual form of the
// port operand.
func (d DecodedInsn) port() string {
	if r, ok := d.operand.Register(); ok {
		return r.Name(2)
	}

	return d.operand.String()
}
