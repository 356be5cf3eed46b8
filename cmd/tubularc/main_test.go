package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureRun(t *testing.T, args []string) (stdout, stderr string, code int) {
	t.Helper()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}

	code = run(args, outW, errW)
	outW.Close()
	errW.Close()

	outBuf := make([]byte, 1<<20)
	n, _ := outR.Read(outBuf)
	stdout = string(outBuf[:n])

	errBuf := make([]byte, 1<<20)
	n, _ = errR.Read(errBuf)
	stderr = string(errBuf[:n])
	return
}

func TestWrongArgCountPrintsFormatUsage(t *testing.T) {
	_, stderr, code := captureRun(t, []string{"tubularc"})
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Format: tubularc [filename]") {
		t.Fatalf("expected usage message, got: %q", stderr)
	}
}

func TestMissingFilePrintsOpenError(t *testing.T) {
	_, stderr, code := captureRun(t, []string{"tubularc", "/nonexistent/path/does-not-exist.tb"})
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unable to open file '/nonexistent/path/does-not-exist.tb'") {
		t.Fatalf("expected open-file error, got: %q", stderr)
	}
}

func TestSuccessfulCompilePrintsWatToStdout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.tb")
	if err := os.WriteFile(path, []byte("function main() : int { return 0; }"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	stdout, _, code := captureRun(t, []string{"tubularc", path})
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.HasPrefix(stdout, "(module") {
		t.Fatalf("expected WAT module on stdout, got: %q", stdout)
	}
}

func TestCompileErrorPrintsFormattedDiagnostic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.tb")
	if err := os.WriteFile(path, []byte("function main() : int { return 1.0; }"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, stderr, code := captureRun(t, []string{"tubularc", path})
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "bad.tb") {
		t.Fatalf("expected the filename in the diagnostic, got: %q", stderr)
	}
}
