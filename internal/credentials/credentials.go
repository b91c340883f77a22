// Package credentials translates a scenario configuration into the
// concrete artifact set each peer needs to attempt a connection: its own
// key and chain, the anchor it must trust, the name it must validate, and
// the server's client allow-list.
package credentials

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/securerpc/tlsmatrix/internal/hierarchy"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/scenario"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

// Well-known identities used across the matrix. The service name is
// deliberately distinct from the transport host name, and the wrong names
// are distinct from every legitimate one.
const (
	ServerHostName  = "localhost"
	ServiceName     = "adder.tlsmatrix.internal"
	ClientName      = "client.tlsmatrix.internal"
	WrongServerName = "wrong.tlsmatrix.internal"
	WrongClientName = "intruder.tlsmatrix.internal"
)

// ServerArtifacts is everything the listening side needs.
type ServerArtifacts struct {
	// Plaintext disables TLS entirely.
	Plaintext bool

	// Certificate is the server's leaf plus any intermediates, with the
	// usable private key.
	Certificate tls.Certificate

	// ClientAnchor verifies the client chain under mutual authentication.
	ClientAnchor *x509.CertPool

	// RequireClientCert demands and verifies a client certificate.
	RequireClientCert bool

	// AllowedClients, when non-empty, is checked against the verified
	// client identity after the handshake.
	AllowedClients []string
}

// ClientArtifacts is everything the dialing side needs.
type ClientArtifacts struct {
	Plaintext bool

	// ServerAnchor verifies the server chain.
	ServerAnchor *x509.CertPool

	// Certificate is the client's leaf chain, present only under mutual
	// authentication.
	Certificate *tls.Certificate

	// ServerName is the name the server certificate is validated
	// against, overriding the transport host name.
	ServerName string
}

// Names bundles the identities one matrix run works with. The zero
// value is not usable; start from DefaultNames.
type Names struct {
	ServerHost  string
	Service     string
	Client      string
	WrongServer string
	WrongClient string
}

// DefaultNames returns the well-known identity set.
func DefaultNames() Names {
	return Names{
		ServerHost:  ServerHostName,
		Service:     ServiceName,
		Client:      ClientName,
		WrongServer: WrongServerName,
		WrongClient: WrongClientName,
	}
}

// Configurator builds artifact sets from hierarchies.
type Configurator struct {
	assembler *hierarchy.Assembler
	names     Names
}

// New creates a configurator drawing key material from the assembler,
// using the default identity set.
func New(assembler *hierarchy.Assembler) *Configurator {
	return NewWithNames(assembler, DefaultNames())
}

// NewWithNames creates a configurator with a custom identity set.
func NewWithNames(assembler *hierarchy.Assembler, names Names) *Configurator {
	return &Configurator{assembler: assembler, names: names}
}

// Configure builds both peers' artifacts for one scenario. Illegal
// combinations fail with ErrIncompatibleScenario before any key material
// is generated.
func (c *Configurator) Configure(cfg scenario.Config) (*ServerArtifacts, *ClientArtifacts, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("credentials: %v: %w", err, ErrIncompatibleScenario)
	}
	if reason, ok := cfg.Legal(); !ok {
		return nil, nil, fmt.Errorf("credentials: %s: %w", reason, ErrIncompatibleScenario)
	}

	if cfg.Parties == scenario.PartiesNone {
		return &ServerArtifacts{Plaintext: true}, &ClientArtifacts{Plaintext: true}, nil
	}

	depth := signerDepth(cfg.Signer)

	serverSubject := x509util.SubjectIdentity{Name: c.names.ServerHost}
	if cfg.Naming == scenario.NamingService {
		serverSubject.Name = c.names.Service
	}

	var server *hierarchy.Result
	var client *hierarchy.Result
	var err error

	if depth == hierarchy.DepthSelf {
		// Self-signed peers are their own anchors; each side gets its
		// own single-certificate hierarchy.
		server, err = c.assembler.Assemble(keystore.RoleServer, depth, serverSubject,
			leafCorruption(cfg.Corruption == scenario.CorruptServer))
		if err != nil {
			return nil, nil, err
		}
		if cfg.Parties == scenario.PartiesMutual {
			client, err = c.assembler.Assemble(keystore.RoleClient, depth,
				x509util.SubjectIdentity{Name: c.names.Client},
				leafCorruption(cfg.Corruption == scenario.CorruptClient))
			if err != nil {
				return nil, nil, err
			}
		}
	} else {
		// CA-signed peers share one authority, so a corrupted CA breaks
		// every leaf it issued.
		auth, err := c.assembler.NewAuthority(depth, authorityCorruption(cfg.Corruption))
		if err != nil {
			return nil, nil, err
		}
		server, err = c.assembler.IssueLeaf(auth, keystore.RoleServer, serverSubject,
			cfg.Corruption == scenario.CorruptServer)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Parties == scenario.PartiesMutual {
			client, err = c.assembler.IssueLeaf(auth, keystore.RoleClient,
				x509util.SubjectIdentity{Name: c.names.Client},
				cfg.Corruption == scenario.CorruptClient)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	serverArts := &ServerArtifacts{
		Certificate: tlsCertificate(server),
	}
	clientArts := &ClientArtifacts{
		ServerAnchor: anchorPool(server.Anchor),
		ServerName:   c.clientServerName(cfg, serverSubject.Name),
	}

	if cfg.Parties == scenario.PartiesMutual {
		cert := tlsCertificate(client)
		clientArts.Certificate = &cert
		serverArts.ClientAnchor = anchorPool(client.Anchor)
		serverArts.RequireClientCert = true
	}

	if cfg.ClientCheck == scenario.ClientCheckEnabled {
		allowed := c.names.Client
		if cfg.Mismatch == scenario.MismatchClientName {
			allowed = c.names.WrongClient
		}
		serverArts.AllowedClients = []string{allowed}
	}

	return serverArts, clientArts, nil
}

// clientServerName picks the name the client validates the server
// against: the transport host name, the configured service name, or a
// deliberately wrong name.
func (c *Configurator) clientServerName(cfg scenario.Config, serverName string) string {
	if cfg.Mismatch == scenario.MismatchServerName {
		return c.names.WrongServer
	}
	return serverName
}

func signerDepth(s scenario.Signer) hierarchy.SignerDepth {
	switch s {
	case scenario.SignerRoot:
		return hierarchy.DepthRoot
	case scenario.SignerIntermediate:
		return hierarchy.DepthIntermediate
	default:
		return hierarchy.DepthSelf
	}
}

func leafCorruption(corrupt bool) hierarchy.CorruptTarget {
	if corrupt {
		return hierarchy.CorruptLeaf
	}
	return hierarchy.CorruptNone
}

// authorityCorruption maps scenario corruption onto the CA side; leaf
// corruption is handled at issuance.
func authorityCorruption(c scenario.Corruption) hierarchy.CorruptTarget {
	switch c {
	case scenario.CorruptRoot:
		return hierarchy.CorruptRoot
	case scenario.CorruptIntermediate:
		return hierarchy.CorruptIntermediate
	default:
		return hierarchy.CorruptNone
	}
}

// tlsCertificate packs a hierarchy result into a tls.Certificate: the
// leaf and any intermediates, but never the anchor itself.
func tlsCertificate(res *hierarchy.Result) tls.Certificate {
	chain := res.Chain
	if len(chain) > 1 {
		chain = chain[:len(chain)-1]
	}
	der := make([][]byte, len(chain))
	for i, cert := range chain {
		der[i] = cert.Raw
	}
	return tls.Certificate{
		Certificate: der,
		PrivateKey:  res.LeafKey.Private,
		Leaf:        res.Leaf,
	}
}

func anchorPool(anchor *x509.Certificate) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(anchor)
	return pool
}
