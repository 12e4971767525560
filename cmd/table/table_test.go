// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package table

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rsc.io/diff"

	"firefly-os.dev/tools/vctrap/x86"
)

func TestBuild(t *testing.T) {
	for _, workers := range []int{1, 4, 256} {
		entries, err := Build(context.Background(), workers)
		if err != nil {
			t.Fatalf("Build(%d): %v", workers, err)
		}

		var got [][]byte
		var ops []x86.Op
		for _, entry := range entries {
			got = append(got, entry.Code)
			ops = append(ops, entry.Decoded.Op())
		}

		want := [][]byte{
			{0x0f, 0xa2},
			{0x66, 0xed},
			{0x66, 0xef},
			{0xec},
			{0xed},
			{0xee},
			{0xef},
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Build(%d): codes (-want, +got)\n%s", workers, diff)
		}

		wantOps := []x86.Op{x86.OpCPUID, x86.OpInW, x86.OpOutW, x86.OpInB, x86.OpInL, x86.OpOutB, x86.OpOutL}
		if diff := cmp.Diff(wantOps, ops); diff != "" {
			t.Fatalf("Build(%d): ops (-want, +got)\n%s", workers, diff)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(context.Background(), 0)
	if err == nil {
		t.Errorf("Build(0 workers): got no error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, 1)
	if err == nil {
		t.Errorf("Build(cancelled): got no error")
	}
}

func TestMainOutput(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{"-workers", "2"})
	if err != nil {
		t.Fatalf("Main(): %v", err)
	}

	want := "" +
		"0f a2  cpuid  cpuid        2\n" +
		"66 ed  inw   in ax, dx    2\n" +
		"66 ef  outw  out dx, ax   2\n" +
		"ec     inb   in al, dx    1\n" +
		"ed     inl   in eax, dx   1\n" +
		"ee     outb  out dx, al   1\n" +
		"ef     outl  out dx, eax  1\n"

	if got := buf.String(); got != want {
		t.Fatalf("Main(): (+got, -want)\n%s", diff.Format(want, got))
	}
}
