package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/op/go-logging.v1"

	"github.com/securerpc/tlsmatrix/internal/adder"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/probe"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

// Serve command flags
var (
	serveListen         string
	serveCert           string
	serveKey            string
	serveKeyPassphrase  string
	serveClientCA       string
	serveAllowedClients []string
	servePlaintext      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the addition service standalone",
	Long: `Run the addition service standalone, outside the matrix.

Useful for interoperability testing against foreign clients, and for
poking at saved hierarchies by hand. Without --plaintext a certificate
and key are required; adding --client-ca demands and verifies client
certificates, and --allowed-client additionally restricts which
verified identities get an answer.

Examples:
  # Plaintext
  tlsmatrix serve --plaintext --listen 127.0.0.1:4433

  # Server-authenticated TLS
  tlsmatrix serve --cert pki/server.crt --key pki/server.key

  # Mutual TLS with an identity allow-list
  tlsmatrix serve --cert pki/server.crt --key pki/server.key \
    --client-ca pki/client-anchor.crt --allowed-client client.tlsmatrix.internal`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:4433", "Listen address")
	serveCmd.Flags().StringVar(&serveCert, "cert", "", "Server certificate chain PEM")
	serveCmd.Flags().StringVar(&serveKey, "key", "", "Server private key PEM")
	serveCmd.Flags().StringVar(&serveKeyPassphrase, "key-passphrase", "", "Passphrase for an encrypted key")
	serveCmd.Flags().StringVar(&serveClientCA, "client-ca", "", "Require client certificates anchored here")
	serveCmd.Flags().StringSliceVar(&serveAllowedClients, "allowed-client", nil, "Allowed client identities (implies a post-handshake check)")
	serveCmd.Flags().BoolVar(&servePlaintext, "plaintext", false, "Serve without TLS")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	backend, err := newLogBackend()
	if err != nil {
		return err
	}
	defer backend.Close()
	log := backend.GetLogger("serve")

	ln, err := net.Listen("tcp", serveListen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serveListen, err)
	}

	if !servePlaintext {
		tlsCfg, err := serverTLSConfig()
		if err != nil {
			ln.Close()
			return err
		}
		ln = tls.NewListener(ln, tlsCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Noticef("serving on %s (plaintext=%t)", serveListen, servePlaintext)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Notice("shutting down")
				return nil
			}
			return err
		}
		go handleServeConn(conn, log)
	}
}

func serverTLSConfig() (*tls.Config, error) {
	if serveCert == "" || serveKey == "" {
		return nil, fmt.Errorf("--cert and --key are required without --plaintext")
	}

	certPEM, err := os.ReadFile(serveCert)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	chain, err := x509util.ParseCertificatesPEM(certPEM)
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(serveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	key, err := keystore.ParsePrivateKeyPEM(keyPEM, []byte(serveKeyPassphrase))
	if err != nil {
		return nil, err
	}

	der := make([][]byte, len(chain))
	for i, c := range chain {
		der[i] = c.Raw
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{{Certificate: der, PrivateKey: key, Leaf: chain[0]}},
		MinVersion:   tls.VersionTLS12,
	}

	if serveClientCA != "" {
		caPEM, err := os.ReadFile(serveClientCA)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA: %w", err)
		}
		anchors, err := x509util.ParseCertificatesPEM(caPEM)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		for _, a := range anchors {
			pool.AddCert(a)
		}
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	} else if len(serveAllowedClients) > 0 {
		return nil, fmt.Errorf("--allowed-client requires --client-ca")
	}

	return cfg, nil
}

func handleServeConn(conn net.Conn, log *logging.Logger) {
	defer conn.Close()

	refusal := ""
	if tlsConn, ok := conn.(*tls.Conn); ok {
		if err := tlsConn.Handshake(); err != nil {
			log.Warningf("%s: handshake failed: %v", conn.RemoteAddr(), err)
			return
		}
		if len(serveAllowedClients) > 0 {
			refusal = probe.IdentityRefusal(tlsConn.ConnectionState(), serveAllowedClients)
		}
	}

	if err := adder.Serve(conn, refusal); err != nil {
		log.Warningf("%s: %v", conn.RemoteAddr(), err)
		return
	}
	if refusal != "" {
		log.Noticef("%s: refused: %s", conn.RemoteAddr(), refusal)
	} else {
		log.Debugf("%s: served", conn.RemoteAddr())
	}
}
