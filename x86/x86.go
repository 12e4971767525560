// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package x86 decodes the small set of x86 instructions
// that a guest can trigger a VM communication exception
// (#VC) with and that the monitor must emulate.
//
// The instruction bytes are copied from guest memory, so
// they are untrusted. Decoding only reads through
// fixed-capacity buffers and rejects any encoding it
// does not recognise, rather than guessing.
//
// Only CPUID and the non-string port I/O instructions
// that address the port through DX are supported. Other
// prefixes, ModR/M and SIB addressing, immediate port
// numbers, and REX prefixes are all rejected.
package x86

// Prefix is a legacy x86 prefix byte.
type Prefix byte

// PrefixOperandSize switches the operand size
// between 32 and 16 bits. It is the only prefix
// Decode accepts.
const PrefixOperandSize Prefix = 0x66

// Opcode bytes recognised by Decode.
const (
	opcodeEscape = 0x0f // Two-byte opcode escape.
	opcodeCPUID  = 0xa2 // CPUID, after the escape.
	opcodeInB    = 0xec // IN AL, DX.
	opcodeInL    = 0xed // IN EAX, DX, or IN AX, DX with 66.
	opcodeOutB   = 0xee // OUT DX, AL.
	opcodeOutL   = 0xef // OUT DX, EAX, or OUT DX, AX with 66.
)

// DefaultOperandBytes is the operand size
// assumed when no operand size prefix is
// present.
const DefaultOperandBytes = 4

// Instruction is a view of an x86 instruction
// copied from guest memory.
type Instruction struct {
	// Optional legacy prefixes. Prefixes is
	// only meaningful if HasPrefixes is set.
	Prefixes    Buffer[[MaxInsnFieldSize]byte]
	HasPrefixes bool

	// Raw bytes copied from the faulting
	// instruction pointer. Bytes.Len() is
	// the number of bytes known to belong
	// to the instruction, which is zero
	// until the caller records it.
	Bytes Buffer[[MaxInsnSize]byte]

	// The opcode bytes.
	Opcode Buffer[[MaxInsnFieldSize]byte]

	// Operand size in bytes.
	OperandBytes int
}

// NewInstruction returns an instruction view
// over raw, with no bytes yet marked as used.
func NewInstruction(raw [MaxInsnSize]byte) Instruction {
	return Instruction{
		Bytes:        Buffer[[MaxInsnSize]byte]{buf: raw},
		OperandBytes: DefaultOperandBytes,
	}
}

// Len returns the length of the instruction
// in bytes, prefixes included.
func (insn *Instruction) Len() int {
	return insn.Bytes.Len()
}

// IsEmpty returns whether the instruction
// view has no bytes in use.
func (insn *Instruction) IsEmpty() bool {
	return insn.Bytes.Len() == 0
}

// Decode identifies the instruction.
//
// Decoding only matches the first one or
// two bytes against the supported encodings.
// It has no side effects, so calling it
// again on the same view gives the same
// result.
//
// If the instruction is not supported, the
// error is a *VCError of type VCErrorDecodeFailed
// with no fault context.
func (insn *Instruction) Decode() (DecodedInsn, error) {
	b0, ok := insn.Bytes.At(0)
	if !ok {
		return DecodedInsn{}, ErrDecodeFailed.WithFault(0, 0)
	}

	switch b0 {
	case opcodeInB:
		return DecodedInsn{op: OpInB, operand: rdx()}, nil
	case opcodeInL:
		return DecodedInsn{op: OpInL, operand: rdx()}, nil
	case opcodeOutB:
		return DecodedInsn{op: OpOutB, operand: rdx()}, nil
	case opcodeOutL:
		return DecodedInsn{op: OpOutL, operand: rdx()}, nil
	case byte(PrefixOperandSize):
		b1, ok := insn.Bytes.At(1)
		if !ok {
			break
		}

		switch b1 {
		case opcodeInL:
			return DecodedInsn{op: OpInW, operand: rdx()}, nil
		case opcodeOutL:
			return DecodedInsn{op: OpOutW, operand: rdx()}, nil
		}
	case opcodeEscape:
		b1, ok := insn.Bytes.At(1)
		if ok && b1 == opcodeCPUID {
			return DecodedInsn{op: OpCPUID}, nil
		}
	}

	return DecodedInsn{}, ErrDecodeFailed.WithFault(0, 0)
}
