// Package hierarchy assembles complete certificate chains, from a
// self-signed leaf up to an intermediate-signed one, together with the
// trust anchor a verifying peer needs.
//
// All certificates live in memory for the duration of one scenario; there
// is no serial bookkeeping or index database. Deliberate key corruption is
// applied through the keystore at a single well-defined point, so the
// result never depends on the order in which keys were generated.
package hierarchy

import (
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

// SignerDepth says how deep the issuing hierarchy is.
type SignerDepth string

const (
	DepthSelf         SignerDepth = "self"
	DepthRoot         SignerDepth = "root"
	DepthIntermediate SignerDepth = "intermediate"
)

// IsValid reports whether the depth is one of the three supported depths.
func (d SignerDepth) IsValid() bool {
	switch d {
	case DepthSelf, DepthRoot, DepthIntermediate:
		return true
	}
	return false
}

// CorruptTarget names the key, if any, to deliberately break.
type CorruptTarget string

const (
	CorruptNone         CorruptTarget = "none"
	CorruptLeaf         CorruptTarget = "leaf"
	CorruptRoot         CorruptTarget = "root"
	CorruptIntermediate CorruptTarget = "intermediate"
)

// validAt reports whether the target exists at the given depth.
func (ct CorruptTarget) validAt(depth SignerDepth) bool {
	switch ct {
	case CorruptNone, CorruptLeaf:
		return true
	case CorruptRoot:
		return depth == DepthRoot || depth == DepthIntermediate
	case CorruptIntermediate:
		return depth == DepthIntermediate
	}
	return false
}

// Authority is the CA side of a hierarchy, shared by every leaf issued
// from it. For DepthSelf there is no authority and the zero value is used.
type Authority struct {
	Depth SignerDepth

	RootCert *x509.Certificate
	RootKey  *keystore.KeyPair

	IntermediateCert *x509.Certificate
	IntermediateKey  *keystore.KeyPair
}

// Anchor returns the certificate a peer must trust to validate leaves
// issued by this authority.
func (a *Authority) Anchor() *x509.Certificate {
	return a.RootCert
}

// issuingContext returns the signing context for leaf issuance.
func (a *Authority) issuingContext() x509util.SigningContext {
	if a.Depth == DepthIntermediate {
		return x509util.IssuedBy(a.IntermediateCert, a.IntermediateKey)
	}
	return x509util.IssuedBy(a.RootCert, a.RootKey)
}

// Result is one assembled leaf: its certificate, its usable key pair, the
// ordered chain, and the anchor the verifying peer needs.
type Result struct {
	Leaf    *x509.Certificate
	LeafKey *keystore.KeyPair
	Chain   Chain
	Anchor  *x509.Certificate
}

// Verify reconstructs trust from leaf to anchor and additionally checks
// that the leaf's usable private key belongs to the leaf certificate.
// Every corrupted assembly fails one of the two checks.
func (r *Result) Verify() error {
	pub, ok := r.Leaf.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return fmt.Errorf("leaf public key of type %T cannot be compared", r.Leaf.PublicKey)
	}
	if !pub.Equal(r.LeafKey.Private.Public()) {
		return ErrKeyMismatch
	}
	return r.Chain.Verify(r.Anchor, r.Leaf.NotBefore.Add(r.Leaf.NotAfter.Sub(r.Leaf.NotBefore)/2))
}

// Assembler builds hierarchies from key material it draws from one store.
type Assembler struct {
	ks  *keystore.KeyStore
	org string
}

// NewAssembler creates an assembler. The organization name is stamped into
// every subject it builds.
func NewAssembler(ks *keystore.KeyStore, org string) *Assembler {
	return &Assembler{ks: ks, org: org}
}

// NewAuthority builds the CA side of a hierarchy at the given depth,
// optionally corrupting the root or intermediate key. For DepthSelf it
// returns an empty authority.
func (a *Assembler) NewAuthority(depth SignerDepth, corrupt CorruptTarget) (*Authority, error) {
	if !depth.IsValid() {
		return nil, fmt.Errorf("hierarchy: invalid signer depth %q", depth)
	}
	if !corrupt.validAt(depth) {
		return nil, fmt.Errorf("hierarchy: corrupt %s at depth %s: %w", corrupt, depth, ErrInvalidDepthForCorruption)
	}

	auth := &Authority{Depth: depth}
	if depth == DepthSelf {
		return auth, nil
	}

	rootKey, err := a.ks.Generate(keystore.RoleRoot)
	if err != nil {
		return nil, err
	}
	rootCert, err := x509util.NewCertificateBuilder().
		Subject(x509util.SubjectIdentity{Name: "root.tlsmatrix.internal", Organization: a.org}).
		CA(1).
		BuildAndSign(rootKey.Public, x509util.SelfSigned(rootKey))
	if err != nil {
		return nil, fmt.Errorf("hierarchy: failed to build root certificate: %w", err)
	}
	// The corrupted root keeps its certificate consistent and only signs
	// children with the wrong key, so corruption happens after self-signing.
	if corrupt == CorruptRoot {
		if rootKey, err = a.ks.Corrupt(rootKey); err != nil {
			return nil, err
		}
	}
	auth.RootCert = rootCert
	auth.RootKey = rootKey

	if depth == DepthIntermediate {
		interKey, err := a.ks.Generate(keystore.RoleIntermediate)
		if err != nil {
			return nil, err
		}
		interCert, err := x509util.NewCertificateBuilder().
			Subject(x509util.SubjectIdentity{Name: "intermediate.tlsmatrix.internal", Organization: a.org}).
			CA(0).
			BuildAndSign(interKey.Public, x509util.IssuedBy(rootCert, rootKey))
		if err != nil {
			return nil, fmt.Errorf("hierarchy: failed to build intermediate certificate: %w", err)
		}
		if corrupt == CorruptIntermediate {
			if interKey, err = a.ks.Corrupt(interKey); err != nil {
				return nil, err
			}
		}
		auth.IntermediateCert = interCert
		auth.IntermediateKey = interKey
	}

	return auth, nil
}

// IssueLeaf issues one leaf for the role from an existing authority,
// optionally corrupting the leaf key. For DepthSelf the leaf is its own
// trust anchor.
func (a *Assembler) IssueLeaf(auth *Authority, role keystore.Role, subject x509util.SubjectIdentity, corruptLeaf bool) (*Result, error) {
	if role.IsCA() {
		return nil, fmt.Errorf("hierarchy: %q is not a leaf role: %w", role, keystore.ErrUnsupportedRole)
	}

	leafKey, err := a.ks.Generate(role)
	if err != nil {
		return nil, err
	}
	if corruptLeaf {
		if leafKey, err = a.ks.Corrupt(leafKey); err != nil {
			return nil, err
		}
	}

	subject.Organization = a.org
	builder := x509util.NewCertificateBuilder().Subject(subject)
	if role == keystore.RoleServer {
		builder.TLSServer()
	} else {
		builder.TLSClient()
	}

	ctx := x509util.SelfSigned(leafKey)
	if auth.Depth != DepthSelf {
		ctx = auth.issuingContext()
	}

	leaf, err := builder.BuildAndSign(leafKey.Public, ctx)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: failed to build %s leaf: %w", role, err)
	}

	res := &Result{Leaf: leaf, LeafKey: leafKey}
	switch auth.Depth {
	case DepthSelf:
		res.Chain = Chain{leaf}
		res.Anchor = leaf
	case DepthRoot:
		res.Chain = Chain{leaf, auth.RootCert}
		res.Anchor = auth.RootCert
	case DepthIntermediate:
		res.Chain = Chain{leaf, auth.IntermediateCert, auth.RootCert}
		res.Anchor = auth.RootCert
	}
	return res, nil
}

// Assemble builds a complete hierarchy for one leaf in a single call:
// authority (if any), leaf, chain, and anchor.
func (a *Assembler) Assemble(role keystore.Role, depth SignerDepth, subject x509util.SubjectIdentity, corrupt CorruptTarget) (*Result, error) {
	caCorrupt := corrupt
	if corrupt == CorruptLeaf {
		caCorrupt = CorruptNone
	}
	auth, err := a.NewAuthority(depth, caCorrupt)
	if err != nil {
		return nil, err
	}
	return a.IssueLeaf(auth, role, subject, corrupt == CorruptLeaf)
}
