package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/logrusorgru/aurora"

	"rvasm/assembler"
)

var sampleWords = []assembler.Word{
	{Addr: 0, Bits: 0x00208463, Line: 1},
	{Addr: 4, Bits: 0xFFF00093, Line: 2},
}

func renderString(t *testing.T, format string, nibble bool) string {
	t.Helper()
	var buf bytes.Buffer
	if err := render(&buf, sampleWords, format, nibble, aurora.NewAurora(false)); err != nil {
		t.Fatalf("render %s: %v", format, err)
	}
	return buf.String()
}

func TestRenderFormats(t *testing.T) {
	tests := []struct {
		format string
		nibble bool
		want   string
	}{
		{"listing", false, "0000: 00208463\n0004: fff00093\n"},
		{"hex", false, "0x00208463\n0xfff00093\n"},
		{"text", false, "00000000001000001000010001100011\n11111111111100000000000010010011\n"},
		{"text", true, "0000\t0000\t0010\t0000\t1000\t0100\t0110\t0011\n1111\t1111\t1111\t0000\t0000\t0000\t1001\t0011\n"},
		{"bin", false, "\x00\x20\x84\x63\xff\xf0\x00\x93"},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.format, tt.nibble); got != tt.want {
			t.Errorf("%s (nibble=%v) = %q, want %q", tt.format, tt.nibble, got, tt.want)
		}
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if err := render(&bytes.Buffer{}, sampleWords, "srec", false, aurora.NewAurora(false)); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

type failingWriter struct{}

var errDiskFull = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestRenderReportsWriteErrors(t *testing.T) {
	// enough words to overflow the bufio buffer before Flush
	words := make([]assembler.Word, 2048)
	for _, format := range []string{"listing", "hex", "text", "bin"} {
		if err := render(failingWriter{}, words, format, false, aurora.NewAurora(false)); !errors.Is(err, errDiskFull) {
			t.Errorf("%s: err = %v, want %v", format, err, errDiskFull)
		}
	}
}

func TestFormatFor(t *testing.T) {
	for output, want := range map[string]string{
		"":          "listing",
		"prog.bin":  "bin",
		"PROG.BIN":  "bin",
		"prog.txt":  "text",
		"prog.hex":  "listing",
		"dir/a.out": "listing",
	} {
		if got := formatFor(output); got != want {
			t.Errorf("formatFor(%q) = %q, want %q", output, got, want)
		}
	}
}

func TestRunWritesOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.s")
	body := "start:\n\tbeq x1, x2, end\n\tnop\nend:\taddi x1, x0, -1\n"
	if err := os.WriteFile(src, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	cfg := &config{color: "never", jobs: 1}
	if err := run(cfg, src, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "0000: 00208463\n0004: 00000013\n0008: fff00093\n"
	if stdout.String() != want {
		t.Fatalf("stdout = %q, want %q", stdout.String(), want)
	}

	out := filepath.Join(dir, "prog.bin")
	cfg = &config{color: "never", output: out, dump: true, verbose: true}
	stdout.Reset()
	stderr.Reset()
	if err := run(cfg, src, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 12 || data[0] != 0x00 || data[3] != 0x63 {
		t.Fatalf("prog.bin = % x", data)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q, want nothing when -o is set", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Assembling") || !strings.Contains(stderr.String(), "\"end\"") {
		t.Fatalf("stderr missing log or dump:\n%s", stderr.String())
	}
}

func TestRunReportsLineErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.s")
	if err := os.WriteFile(src, []byte("nop\nfrob x1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	err := run(&config{color: "never"}, src, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bad.s: line 2: unknown mnemonic") {
		t.Fatalf("error = %v", err)
	}
}
