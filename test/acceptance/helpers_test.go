//go:build acceptance

// Package acceptance contains black-box CLI acceptance tests (TestA_*).
// Run with: go test -tags=acceptance ./test/acceptance/...
package acceptance

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// tlsmatrixBinary is the path to the tlsmatrix binary.
// Set via TLSMATRIX_BINARY env var or default to ../../bin/tlsmatrix.
var tlsmatrixBinary string

func init() {
	if bin := os.Getenv("TLSMATRIX_BINARY"); bin != "" {
		tlsmatrixBinary = bin
	} else {
		tlsmatrixBinary = "../../bin/tlsmatrix"
	}
}

// runCLI executes the tlsmatrix CLI and returns stdout.
// Fails the test if the command returns a non-zero exit code.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command(tlsmatrixBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("tlsmatrix %s failed: %v\nstderr: %s\nstdout: %s",
			strings.Join(args, " "), err, stderr.String(), stdout.String())
	}
	return stdout.String()
}

// runCLIExpectError executes tlsmatrix and expects it to fail.
// Returns the combined output (stdout + stderr).
func runCLIExpectError(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command(tlsmatrixBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err == nil {
		t.Fatalf("tlsmatrix %s expected to fail but succeeded\nstdout: %s",
			strings.Join(args, " "), stdout.String())
	}
	return stdout.String() + stderr.String()
}
