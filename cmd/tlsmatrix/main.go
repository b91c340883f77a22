// Command tlsmatrix drives a combinatorial TLS and mTLS authentication
// test matrix: it generates throwaway certificate hierarchies, attempts
// a small RPC over every legal configuration, and compares observed
// behavior against the predicted verdict.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securerpc/tlsmatrix/internal/logging"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	logLevel string
	logFile  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tlsmatrix",
	Short: "Combinatorial TLS/mTLS authentication test matrix",
	Long: `tlsmatrix exercises every legal combination of TLS authentication
settings against a small addition RPC: no authentication, server-only
and mutual TLS, self-signed and CA-signed chains, deliberately corrupted
keys and deliberately mismatched names. Each scenario predicts whether
the connection must be accepted, rejected during the handshake, or
rejected by the server's identity policy, and the run fails if reality
disagrees.

Examples:
  # Run the full matrix
  tlsmatrix run

  # Run only mutual TLS scenarios, with an audit trail
  tlsmatrix run --parties mutual --audit-log run.jsonl

  # List every scenario and its predicted verdict
  tlsmatrix scenarios

  # Generate an intermediate-signed hierarchy for inspection
  tlsmatrix hierarchy --signer intermediate --mutual --out ./pki

  # Stand up the adder service manually, then call it
  tlsmatrix serve --cert pki/server.crt --key pki/server.key
  tlsmatrix call --addr localhost:4433 --ca pki/server-anchor.crt`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warning, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Write logs to this file instead of stderr")
}

// newLogBackend builds the process log backend from the global flags.
func newLogBackend() (*logging.Backend, error) {
	return logging.New(logFile, logLevel)
}
