// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package vc

import (
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"

	"firefly-os.dev/tools/vctrap/x86"
)

// A trace is a binary record of trapped
// instructions, which can be replayed
// through the decoder offline.
//
// 	+--------------------------+
// 	| magic     (4 bytes)      |
// 	| version   (1 byte)       |
// 	+--------------------------+
// 	| rip       (8 bytes)      | \
// 	| exit code (8 bytes)      |  | repeated
// 	| length    (1 byte)       |  | for each
// 	| bytes     (length bytes) | /  record
// 	+--------------------------+
//
// All integers are big-endian.

const (
	traceMagic   = 0x76637472 // "vctr"
	traceVersion = 1

	traceHeaderSize = 4 + 1
)

// Record is a single trapped instruction.
type Record struct {
	RIP   uint64
	Code  uint64
	Bytes []byte // Between 1 and x86.MaxInsnSize bytes.
}

// Instruction returns an instruction view
// over the record's bytes, with the used
// length set to the number of bytes that
// were captured.
func (r *Record) Instruction() (x86.Instruction, error) {
	if len(r.Bytes) == 0 || len(r.Bytes) > x86.MaxInsnSize {
		return x86.Instruction{}, fmt.Errorf("invalid record at rip %#x: got %d instruction bytes, want 1 to %d", r.RIP, len(r.Bytes), x86.MaxInsnSize)
	}

	var raw [x86.MaxInsnSize]byte
	copy(raw[:], r.Bytes)
	insn := x86.NewInstruction(raw)
	err := insn.Bytes.SetLen(len(r.Bytes))
	if err != nil {
		return x86.Instruction{}, err
	}

	return insn, nil
}

// WriteTrace encodes the records to w.
func WriteTrace(w io.Writer, records []Record) error {
	b := cryptobyte.NewBuilder(make([]byte, 0, traceHeaderSize+len(records)*(8+8+1+x86.MaxInsnSize)))
	b.AddUint32(traceMagic)
	b.AddUint8(traceVersion)
	for i, r := range records {
		if len(r.Bytes) == 0 || len(r.Bytes) > x86.MaxInsnSize {
			return fmt.Errorf("invalid record %d: got %d instruction bytes, want 1 to %d", i, len(r.Bytes), x86.MaxInsnSize)
		}

		b.AddUint64(r.RIP)
		b.AddUint64(r.Code)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(r.Bytes)
		})
	}

	data, err := b.Bytes()
	if err != nil {
		return fmt.Errorf("vc: internal error: failed to encode trace: %v", err)
	}

	_, err = w.Write(data)

	return err
}

// ReadTrace decodes the records in a trace.
func ReadTrace(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return ParseTrace(data)
}

// ParseTrace decodes the records in a trace.
func ParseTrace(b []byte) ([]Record, error) {
	if len(b) < traceHeaderSize {
		return nil, fmt.Errorf("invalid trace header: %w", io.ErrUnexpectedEOF)
	}

	s := cryptobyte.String(b)

	var magic uint32
	var version uint8
	if !s.ReadUint32(&magic) || !s.ReadUint8(&version) {
		return nil, fmt.Errorf("vc: internal error: failed to read trace header: %w", io.ErrUnexpectedEOF)
	}

	if magic != traceMagic {
		return nil, fmt.Errorf("invalid trace header: got magic %x, want %x", magic, traceMagic)
	}

	if version != traceVersion {
		return nil, fmt.Errorf("unsupported trace: got version %d, but only %d is supported", version, traceVersion)
	}

	var records []Record
	for !s.Empty() {
		var r Record
		var code cryptobyte.String
		if !s.ReadUint64(&r.RIP) ||
			!s.ReadUint64(&r.Code) ||
			!s.ReadUint8LengthPrefixed(&code) {
			return nil, fmt.Errorf("invalid trace record %d: %w", len(records), io.ErrUnexpectedEOF)
		}

		if len(code) == 0 || len(code) > x86.MaxInsnSize {
			return nil, fmt.Errorf("invalid trace record %d: got %d instruction bytes, want 1 to %d", len(records), len(code), x86.MaxInsnSize)
		}

		r.Bytes = append([]byte(nil), code...)
		records = append(records, r)
	}

	return records, nil
}
