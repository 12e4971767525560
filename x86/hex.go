// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseHex parses machine code written
// in hex, optionally separated by spaces,
// such as "66 ed" or "0fa2".
func ParseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid machine code %q: %v", s, err)
	}

	if len(code) == 0 || len(code) > MaxInsnSize {
		return nil, fmt.Errorf("invalid machine code %q: got %d bytes, want 1 to %d", s, len(code), MaxInsnSize)
	}

	return code, nil
}

// InstructionFromHex returns an instruction
// view over the machine code in s, with the
// used length set to the number of bytes
// given. Any remaining bytes are zero.
func InstructionFromHex(s string) (Instruction, error) {
	code, err := ParseHex(s)
	if err != nil {
		return Instruction{}, err
	}

	var raw [MaxInsnSize]byte
	copy(raw[:], code)
	insn := NewInstruction(raw)
	err = insn.Bytes.SetLen(len(code))
	if err != nil {
		return Instruction{}, err
	}

	return insn, nil
}
