// Package probe executes a single connection attempt between two
// configured peers and reduces whatever happened to a small outcome
// taxonomy. Each attempt gets its own loopback listener on an ephemeral
// port, its own deadline, and tears everything down before returning.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/securerpc/tlsmatrix/internal/adder"
	"github.com/securerpc/tlsmatrix/internal/credentials"
	"github.com/securerpc/tlsmatrix/internal/scenario"
)

// Disposition classifies how a connection attempt ended.
type Disposition string

const (
	// DispositionAccepted means the handshake (if any) completed and the
	// service answered the call.
	DispositionAccepted Disposition = "accepted"

	// DispositionHandshakeRejected means the TLS handshake failed, on
	// either side.
	DispositionHandshakeRejected Disposition = "handshake-rejected"

	// DispositionPolicyRejected means the handshake succeeded but the
	// service refused the verified identity.
	DispositionPolicyRejected Disposition = "policy-rejected"

	// DispositionTimeout means the attempt hit its deadline. Some stacks
	// silently drop rejected connections instead of alerting, so the
	// comparison treats a timeout like a handshake rejection.
	DispositionTimeout Disposition = "timeout"

	// DispositionError means the harness itself failed: a port could not
	// be bound, a dial was refused. It never satisfies any expectation.
	DispositionError Disposition = "error"
)

// Outcome is the observed result of one attempt.
type Outcome struct {
	Disposition Disposition `json:"disposition"`
	Reason      string      `json:"reason,omitempty"`
}

// Matches reports whether the outcome satisfies an expected verdict.
func (o Outcome) Matches(v scenario.Verdict) bool {
	switch v {
	case scenario.VerdictAccept:
		return o.Disposition == DispositionAccepted
	case scenario.VerdictRejectHandshake:
		return o.Disposition == DispositionHandshakeRejected ||
			o.Disposition == DispositionTimeout
	case scenario.VerdictRejectPolicy:
		return o.Disposition == DispositionPolicyRejected
	}
	return false
}

// Probe runs connection attempts with a fixed per-attempt deadline.
type Probe struct {
	timeout time.Duration
}

// DefaultTimeout bounds one attempt end to end.
const DefaultTimeout = 5 * time.Second

// New creates a probe. A non-positive timeout falls back to the default.
func New(timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{timeout: timeout}
}

// Attempt stands up the server side on a fresh loopback port, dials it
// with the client artifacts, and classifies the result. The listener is
// always released before Attempt returns.
func (p *Probe) Attempt(ctx context.Context, server *credentials.ServerArtifacts, client *credentials.ClientArtifacts) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Outcome{Disposition: DispositionError, Reason: fmt.Sprintf("listen: %v", err)}
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		serveOne(ctx, ln, server)
	}()

	out := p.dial(ctx, ln.Addr().String(), client)

	ln.Close()
	<-serverDone
	return out
}

// serveOne accepts a single connection and answers a single call. Server
// side errors are not reported directly; the client's view of the
// connection is the observation.
func serveOne(ctx context.Context, ln net.Listener, arts *credentials.ServerArtifacts) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	refusal := ""
	service := conn
	if !arts.Plaintext {
		cfg := &tls.Config{
			Certificates: []tls.Certificate{arts.Certificate},
			MinVersion:   tls.VersionTLS12,
		}
		if arts.RequireClientCert {
			cfg.ClientAuth = tls.RequireAndVerifyClientCert
			cfg.ClientCAs = arts.ClientAnchor
		}
		tlsConn := tls.Server(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return
		}
		service = tlsConn
		if len(arts.AllowedClients) > 0 {
			refusal = IdentityRefusal(tlsConn.ConnectionState(), arts.AllowedClients)
		}
	}

	adder.Serve(service, refusal)
}

// IdentityRefusal checks the verified client identity against the
// allow-list, returning a refusal reason or empty for a match.
func IdentityRefusal(state tls.ConnectionState, allowed []string) string {
	if len(state.PeerCertificates) == 0 {
		return "no client certificate presented"
	}
	name := state.PeerCertificates[0].Subject.CommonName
	for _, a := range allowed {
		if a == name {
			return ""
		}
	}
	return fmt.Sprintf("client identity %q is not allowed", name)
}

func (p *Probe) dial(ctx context.Context, addr string, arts *credentials.ClientArtifacts) Outcome {
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isTimeout(err) {
			return Outcome{Disposition: DispositionTimeout, Reason: err.Error()}
		}
		return Outcome{Disposition: DispositionError, Reason: fmt.Sprintf("dial: %v", err)}
	}
	defer raw.Close()
	if deadline, ok := ctx.Deadline(); ok {
		raw.SetDeadline(deadline)
	}

	conn := net.Conn(raw)
	if !arts.Plaintext {
		cfg := &tls.Config{
			RootCAs:    arts.ServerAnchor,
			ServerName: arts.ServerName,
			MinVersion: tls.VersionTLS12,
		}
		if arts.Certificate != nil {
			cfg.Certificates = []tls.Certificate{*arts.Certificate}
		}
		tlsConn := tls.Client(raw, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			if isTimeout(err) {
				return Outcome{Disposition: DispositionTimeout, Reason: err.Error()}
			}
			return Outcome{Disposition: DispositionHandshakeRejected, Reason: err.Error()}
		}
		conn = tlsConn
	}

	if err := adder.Call(conn); err != nil {
		return classifyCallError(err)
	}
	return Outcome{Disposition: DispositionAccepted}
}

// classifyCallError sorts a post-handshake call failure. Under TLS 1.3
// the client finishes its handshake before the server has judged the
// client certificate, so a server side rejection surfaces here as an
// alert on the first read rather than as a handshake error.
func classifyCallError(err error) Outcome {
	var refused *adder.RefusedError
	if errors.As(err, &refused) {
		return Outcome{Disposition: DispositionPolicyRejected, Reason: refused.Reason}
	}
	if isTimeout(err) {
		return Outcome{Disposition: DispositionTimeout, Reason: err.Error()}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "remote error" {
		return Outcome{Disposition: DispositionHandshakeRejected, Reason: err.Error()}
	}
	if strings.Contains(err.Error(), "tls:") {
		return Outcome{Disposition: DispositionHandshakeRejected, Reason: err.Error()}
	}
	return Outcome{Disposition: DispositionError, Reason: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
