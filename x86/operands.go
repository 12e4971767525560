// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"fmt"
)

// Immediate is an integer literal taken
// from an instruction encoding, with a
// width of 8, 16, or 32 bits.
type Immediate struct {
	bits  uint8
	value uint32
}

func Imm8(v uint8) Immediate   { return Immediate{bits: 8, value: uint32(v)} }
func Imm16(v uint16) Immediate { return Immediate{bits: 16, value: uint32(v)} }
func Imm32(v uint32) Immediate { return Immediate{bits: 32, value: v} }

// Bits returns the immediate's width in
// bits. The zero Immediate has width zero.
func (i Immediate) Bits() int { return int(i.bits) }

// Value returns the immediate, zero-extended.
func (i Immediate) Value() uint32 { return i.value }

func (i Immediate) String() string {
	switch i.bits {
	case 8:
		return fmt.Sprintf("0x%02x", i.value)
	case 16:
		return fmt.Sprintf("0x%04x", i.value)
	case 32:
		return fmt.Sprintf("0x%08x", i.value)
	default:
		return "Immediate()"
	}
}

// OperandKind distinguishes the variants
// of an Operand.
type OperandKind uint8

const (
	OperandNone      OperandKind = iota
	OperandRegister              // A register reference.
	OperandImmediate             // An integer literal.
)

func (k OperandKind) String() string {
	switch k {
	case OperandNone:
		return "none"
	case OperandRegister:
		return "register"
	case OperandImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// Operand is either a register or an
// immediate value.
type Operand struct {
	kind OperandKind
	reg  Register
	imm  Immediate
}

// RegisterOperand returns an operand
// referring to r.
func RegisterOperand(r Register) Operand {
	return Operand{kind: OperandRegister, reg: r}
}

// ImmediateOperand returns an operand
// holding i.
func ImmediateOperand(i Immediate) Operand {
	return Operand{kind: OperandImmediate, imm: i}
}

// rdx is the operand used by port I/O
// to hold the port number.
func rdx() Operand {
	return RegisterOperand(RDX)
}

func (op Operand) Kind() OperandKind { return op.kind }

// Register returns the register operand,
// if op is one.
func (op Operand) Register() (Register, bool) {
	return op.reg, op.kind == OperandRegister
}

// Immediate returns the immediate operand,
// if op is one.
func (op Operand) Immediate() (Immediate, bool) {
	return op.imm, op.kind == OperandImmediate
}

func (op Operand) String() string {
	switch op.kind {
	case OperandRegister:
		return op.reg.String()
	case OperandImmediate:
		return op.imm.String()
	default:
		return "none"
	}
}
