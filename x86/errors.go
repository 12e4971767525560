// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"errors"
	"fmt"
)

// VCErrorType classifies a failure to handle
// a VM communication exception.
type VCErrorType uint8

const (
	_                   VCErrorType = iota
	VCErrorDecodeFailed             // The faulting instruction was not recognised.
	VCErrorUnsupported              // The instruction does not match the exit reason.
	VCErrorUnknownExit              // The exit code has no handler.
)

func (t VCErrorType) String() string {
	switch t {
	case VCErrorDecodeFailed:
		return "decode failed"
	case VCErrorUnsupported:
		return "unsupported instruction"
	case VCErrorUnknownExit:
		return "unknown exit code"
	default:
		return fmt.Sprintf("VCErrorType(%d)", t)
	}
}

// VCError describes a VM communication
// exception that could not be handled.
//
// The decoder cannot see the faulting
// context, so errors it returns have a
// zero RIP and Code. The caller fills
// them in with WithFault.
type VCError struct {
	RIP  uint64 // The faulting instruction pointer.
	Code uint64 // The exit code.
	Type VCErrorType
}

var (
	ErrDecodeFailed = &VCError{Type: VCErrorDecodeFailed}
	ErrUnsupported  = &VCError{Type: VCErrorUnsupported}
	ErrUnknownExit  = &VCError{Type: VCErrorUnknownExit}

	ErrBufferLength = errors.New("buffer length exceeds capacity")
)

func (e *VCError) Error() string {
	return fmt.Sprintf("#VC at rip %#x (exit code %#x): %s", e.RIP, e.Code, e.Type)
}

// Is reports whether target is a VCError
// of the same type, so that errors.Is
// matches regardless of the fault context.
func (e *VCError) Is(target error) bool {
	t, ok := target.(*VCError)
	if !ok {
		return false
	}

	return e.Type == t.Type
}

// WithFault returns a copy of e with the
// faulting context filled in.
func (e *VCError) WithFault(rip, code uint64) *VCError {
	return &VCError{RIP: rip, Code: code, Type: e.Type}
}
