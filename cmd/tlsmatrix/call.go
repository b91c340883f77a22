package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/securerpc/tlsmatrix/internal/adder"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

// Call command flags
var (
	callAddr          string
	callCA            string
	callCert          string
	callKey           string
	callKeyPassphrase string
	callServerName    string
	callPlaintext     bool
	callTimeout       time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Call the addition service once",
	Long: `Call the addition service once with random operands and verify
the sum.

Examples:
  # Against a plaintext server
  tlsmatrix call --plaintext --addr 127.0.0.1:4433

  # Against a TLS server, validating its chain
  tlsmatrix call --addr localhost:4433 --ca pki/server-anchor.crt

  # With a client certificate, validating a service name
  tlsmatrix call --addr 127.0.0.1:4433 --ca pki/server-anchor.crt \
    --cert pki/client.crt --key pki/client.key \
    --server-name adder.tlsmatrix.internal`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callAddr, "addr", "127.0.0.1:4433", "Server address")
	callCmd.Flags().StringVar(&callCA, "ca", "", "Trust anchor PEM for the server chain")
	callCmd.Flags().StringVar(&callCert, "cert", "", "Client certificate chain PEM")
	callCmd.Flags().StringVar(&callKey, "key", "", "Client private key PEM")
	callCmd.Flags().StringVar(&callKeyPassphrase, "key-passphrase", "", "Passphrase for an encrypted key")
	callCmd.Flags().StringVar(&callServerName, "server-name", "", "Validate the server against this name instead of the address host")
	callCmd.Flags().BoolVar(&callPlaintext, "plaintext", false, "Connect without TLS")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "Overall call timeout")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	var conn net.Conn
	var err error

	if callPlaintext {
		conn, err = net.DialTimeout("tcp", callAddr, callTimeout)
	} else {
		var cfg *tls.Config
		cfg, err = clientTLSConfig()
		if err != nil {
			return err
		}
		dialer := &net.Dialer{Timeout: callTimeout}
		conn, err = tls.DialWithDialer(dialer, "tcp", callAddr, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", callAddr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(callTimeout))

	if err := adder.Call(conn); err != nil {
		return err
	}
	fmt.Println("sum verified")
	return nil
}

func clientTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: callServerName,
		MinVersion: tls.VersionTLS12,
	}

	if callCA != "" {
		caPEM, err := os.ReadFile(callCA)
		if err != nil {
			return nil, fmt.Errorf("failed to read trust anchor: %w", err)
		}
		anchors, err := x509util.ParseCertificatesPEM(caPEM)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		for _, a := range anchors {
			pool.AddCert(a)
		}
		cfg.RootCAs = pool
	}

	if callCert != "" || callKey != "" {
		if callCert == "" || callKey == "" {
			return nil, fmt.Errorf("--cert and --key must be given together")
		}
		certPEM, err := os.ReadFile(callCert)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate: %w", err)
		}
		chain, err := x509util.ParseCertificatesPEM(certPEM)
		if err != nil {
			return nil, err
		}
		keyPEM, err := os.ReadFile(callKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
		key, err := keystore.ParsePrivateKeyPEM(keyPEM, []byte(callKeyPassphrase))
		if err != nil {
			return nil, err
		}
		der := make([][]byte, len(chain))
		for i, c := range chain {
			der[i] = c.Raw
		}
		cfg.Certificates = []tls.Certificate{{Certificate: der, PrivateKey: key, Leaf: chain[0]}}
	}

	return cfg, nil
}
