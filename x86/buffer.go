// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"fmt"
	"strings"
)

// Buffer sizes.
const (
	MaxInsnSize      = 15 // The architectural limit on the length of an x86 instruction.
	MaxInsnFieldSize = 3  // The capacity of the prefix and opcode fields.
)

// bufferArray is the set of backing arrays a
// Buffer can be built on. The capacity of each
// buffer is fixed at compile time by its array
// type.
type bufferArray interface {
	~[MaxInsnFieldSize]byte | ~[MaxInsnSize]byte
}

// Buffer is a fixed-capacity byte buffer, plus
// the number of leading bytes that are in use.
//
// All access goes through At and SetAt, which
// are bounds-checked against the capacity of
// the backing array rather than the used length.
// Bytes beyond the used length can still be read,
// but nothing outside the array can be.
type Buffer[A bufferArray] struct {
	buf A
	n   int
}

// NewBuffer returns a buffer backed by buf, with
// the first n bytes in use.
func NewBuffer[A bufferArray](buf A, n int) (Buffer[A], error) {
	b := Buffer[A]{buf: buf}
	err := b.SetLen(n)
	if err != nil {
		return Buffer[A]{}, err
	}

	return b, nil
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer[A]) Cap() int {
	return len(b.buf)
}

// Len returns the number of bytes in use.
func (b *Buffer[A]) Len() int {
	return b.n
}

// SetLen records the number of bytes in use,
// which must not exceed the buffer's capacity.
func (b *Buffer[A]) SetLen(n int) error {
	if n < 0 || n > len(b.buf) {
		return fmt.Errorf("%w: got %d, capacity %d", ErrBufferLength, n, len(b.buf))
	}

	b.n = n

	return nil
}

// At returns the byte at index i. The
// result is false if i is outside the
// buffer's capacity.
func (b *Buffer[A]) At(i int) (byte, bool) {
	if i < 0 || i >= len(b.buf) {
		return 0, false
	}

	return b.buf[i], true
}

// SetAt overwrites the byte at index i,
// returning false if i is outside the
// buffer's capacity.
func (b *Buffer[A]) SetAt(i int, v byte) bool {
	if i < 0 || i >= len(b.buf) {
		return false
	}

	b.buf[i] = v

	return true
}

// String returns the used bytes in hex.
func (b *Buffer[A]) String() string {
	var s strings.Builder
	s.WriteByte('[')
	for i := 0; i < b.n; i++ {
		if i > 0 {
			s.WriteByte(' ')
		}

		fmt.Fprintf(&s, "%02x", b.buf[i])
	}
	s.WriteByte(']')

	return s.String()
}
