// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package decode

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rsc.io/diff"

	"firefly-os.dev/tools/vctrap/x86"
)

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{"66 ed", "0fa2", "ee 41 41"})
	if err != nil {
		t.Fatalf("Main(): %v", err)
	}

	want := strings.Join([]string{
		"[66 ed]: in ax, dx (2 bytes)",
		"[0f a2]: cpuid (2 bytes)",
		"[ee 41 41]: out dx, al (1 bytes)",
		"",
	}, "\n")

	if got := buf.String(); got != want {
		t.Fatalf("Main(): (+got, -want)\n%s", diff.Format(want, got))
	}
}

func TestDecodeFailure(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{"66 ee", "ec"})
	if err == nil {
		t.Fatalf("Main(): got no error")
	}

	if err.Error() != "1 instruction failed to decode" {
		t.Errorf("Main(): got error %q", err)
	}

	want := strings.Join([]string{
		"[66 ee]: #VC at rip 0x0 (exit code 0x0): decode failed",
		"[ec]: in al, dx (1 bytes)",
		"",
	}, "\n")

	if got := buf.String(); got != want {
		t.Fatalf("Main(): (+got, -want)\n%s", diff.Format(want, got))
	}

	err = Main(context.Background(), &buf, []string{"not hex"})
	if err == nil {
		t.Fatalf("Main(not hex): got no error")
	}
}

func TestDecodeJSON(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{"-json", "ed", "0f 05"})
	if err == nil {
		t.Fatalf("Main(): got no error for 0f 05")
	}

	dec := json.NewDecoder(&buf)
	var got []Result
	for dec.More() {
		var res Result
		err := dec.Decode(&res)
		if err != nil {
			t.Fatalf("decoding output: %v", err)
		}

		got = append(got, res)
	}

	want := []Result{
		{Code: "[ed]", Op: x86.OpInL, Syntax: "in eax, dx", Size: 1, Register: "rdx"},
		{Code: "[0f 05]", Error: "#VC at rip 0x0 (exit code 0x0): decode failed"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Main(): (-want, +got)\n%s", diff)
	}
}
