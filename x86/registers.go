// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"fmt"
)

// Register identifies one of the general-purpose
// integer registers.
//
// A Register is only a name. The register file
// itself belongs to whoever emulates the decoded
// instruction.
type Register uint8

const (
	RAX Register = iota
	RBX
	RCX
	RDX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	numRegisters
)

// registerNames contains the register
// names at each width: 8, 16, 32, and
// 64 bits.
var registerNames = [numRegisters][4]string{
	RAX: {"al", "ax", "eax", "rax"},
	RBX: {"bl", "bx", "ebx", "rbx"},
	RCX: {"cl", "cx", "ecx", "rcx"},
	RDX: {"dl", "dx", "edx", "rdx"},
	RSP: {"spl", "sp", "esp", "rsp"},
	RBP: {"bpl", "bp", "ebp", "rbp"},
	RSI: {"sil", "si", "esi", "rsi"},
	RDI: {"dil", "di", "edi", "rdi"},
	R8:  {"r8l", "r8w", "r8d", "r8"},
	R9:  {"r9l", "r9w", "r9d", "r9"},
	R10: {"r10l", "r10w", "r10d", "r10"},
	R11: {"r11l", "r11w", "r11d", "r11"},
	R12: {"r12l", "r12w", "r12d", "r12"},
	R13: {"r13l", "r13w", "r13d", "r13"},
	R14: {"r14l", "r14w", "r14d", "r14"},
	R15: {"r15l", "r15w", "r15d", "r15"},
}

// Registers contains every valid register,
// in encoding order.
var Registers = []Register{
	RAX, RBX, RCX, RDX, RSP, RBP, RSI, RDI,
	R8, R9, R10, R11, R12, R13, R14, R15,
}

// Valid returns whether r is a known
// register.
func (r Register) Valid() bool {
	return r < numRegisters
}

// Name returns the register's name when
// accessed with the given width in bytes.
// Widths other than 1, 2, and 4 give the
// full 64-bit name.
func (r Register) Name(bytes int) string {
	if !r.Valid() {
		return r.String()
	}

	switch bytes {
	case 1:
		return registerNames[r][0]
	case 2:
		return registerNames[r][1]
	case 4:
		return registerNames[r][2]
	default:
		return registerNames[r][3]
	}
}

func (r Register) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Register(%d)", uint8(r))
	}

	return registerNames[r][3]
}
