// Package x509util builds the X.509 certificates used by the
// authentication test matrix.
//
// Every certificate carries its subject name redundantly in the legacy
// CommonName field and in a DNS subject-alternative-name, so both old
// CN-matching validators and modern SAN-only validators resolve the same
// identity.
package x509util

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/securerpc/tlsmatrix/internal/keystore"
)

// SubjectIdentity is the name and organizational metadata bound into a
// certificate subject.
type SubjectIdentity struct {
	// Name is a DNS-style host or service name. It becomes both the
	// CommonName and the single DNS SAN.
	Name string

	Organization string
	Country      string
}

// SigningContext says who signs a certificate: the subject itself, or an
// issuing CA.
//
// For an issued certificate the context checks that the issuer pair's
// identity matches the issuer certificate, then signs with the pair's
// issuing signer. A deliberately corrupted CA pair keeps its identity
// intact and swaps only the issuing signer, so corrupted issuance passes
// the identity check by construction and still produces the intended bad
// signature.
type SigningContext struct {
	issuerCert *x509.Certificate
	pair       *keystore.KeyPair
}

// SelfSigned returns a context in which the subject signs its own
// certificate with the pair's private half.
func SelfSigned(pair *keystore.KeyPair) SigningContext {
	return SigningContext{pair: pair}
}

// IssuedBy returns a context in which issuerPair signs on behalf of
// issuerCert.
func IssuedBy(issuerCert *x509.Certificate, issuerPair *keystore.KeyPair) SigningContext {
	return SigningContext{issuerCert: issuerCert, pair: issuerPair}
}

// verify checks the declared issuer identity against the issuer
// certificate. The issuing signer itself is deliberately not checked.
func (c SigningContext) verify() error {
	if c.pair == nil {
		return fmt.Errorf("signing context has no key pair")
	}
	if c.issuerCert == nil {
		return nil // self-signed
	}

	pub, ok := c.issuerCert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return fmt.Errorf("issuer public key of type %T cannot be compared", c.issuerCert.PublicKey)
	}
	if !pub.Equal(c.pair.Public) {
		return fmt.Errorf("issuer key pair does not match issuer certificate %q: %w",
			c.issuerCert.Subject.CommonName, ErrSigningKeyMismatch)
	}
	return nil
}

// CertificateBuilder assembles one certificate.
type CertificateBuilder struct {
	subject   SubjectIdentity
	notBefore time.Time
	notAfter  time.Time
	serial    *big.Int

	isCA        bool
	maxPathLen  int
	keyUsage    x509.KeyUsage
	extKeyUsage []x509.ExtKeyUsage
}

// NewCertificateBuilder creates a builder with a validity window that is
// already open and comfortably covers a test run.
func NewCertificateBuilder() *CertificateBuilder {
	now := time.Now()
	return &CertificateBuilder{
		notBefore:  now.Add(-time.Hour),
		notAfter:   now.Add(24 * time.Hour),
		maxPathLen: -1,
	}
}

// Subject sets the subject identity.
func (b *CertificateBuilder) Subject(id SubjectIdentity) *CertificateBuilder {
	b.subject = id
	return b
}

// Validity sets the certificate validity window.
func (b *CertificateBuilder) Validity(notBefore, notAfter time.Time) *CertificateBuilder {
	b.notBefore = notBefore
	b.notAfter = notAfter
	return b
}

// ValidFor sets the validity window to [now, now+d].
func (b *CertificateBuilder) ValidFor(d time.Duration) *CertificateBuilder {
	b.notBefore = time.Now()
	b.notAfter = b.notBefore.Add(d)
	return b
}

// SerialNumber overrides the random serial number.
func (b *CertificateBuilder) SerialNumber(sn *big.Int) *CertificateBuilder {
	b.serial = sn
	return b
}

// CA marks the certificate as a certificate authority. CA certificates
// get exactly the cert-signing usage bits and none of the leaf bits.
func (b *CertificateBuilder) CA(maxPathLen int) *CertificateBuilder {
	b.isCA = true
	b.maxPathLen = maxPathLen
	b.keyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	b.extKeyUsage = nil
	return b
}

// TLSServer marks the certificate as a server leaf.
func (b *CertificateBuilder) TLSServer() *CertificateBuilder {
	b.isCA = false
	b.maxPathLen = -1
	b.keyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	b.extKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	return b
}

// TLSClient marks the certificate as a client leaf.
func (b *CertificateBuilder) TLSClient() *CertificateBuilder {
	b.isCA = false
	b.maxPathLen = -1
	b.keyUsage = x509.KeyUsageDigitalSignature
	b.extKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	return b
}

// template materializes the builder into an x509 template, enforcing the
// CA/leaf usage invariants and the CN==SAN invariant.
func (b *CertificateBuilder) template() (*x509.Certificate, error) {
	if b.subject.Name == "" {
		return nil, fmt.Errorf("subject name is required")
	}
	if b.isCA && len(b.extKeyUsage) > 0 {
		return nil, fmt.Errorf("CA certificate must not carry leaf extended key usage")
	}
	if !b.isCA && b.keyUsage&x509.KeyUsageCertSign != 0 {
		return nil, fmt.Errorf("leaf certificate must not carry the cert-sign usage bit")
	}

	serial := b.serial
	if serial == nil {
		var err error
		serial, err = generateSerialNumber()
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial number: %w", err)
		}
	}

	subject := pkix.Name{CommonName: b.subject.Name}
	if b.subject.Organization != "" {
		subject.Organization = []string{b.subject.Organization}
	}
	if b.subject.Country != "" {
		subject.Country = []string{b.subject.Country}
	}

	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		DNSNames:              []string{b.subject.Name},
		NotBefore:             b.notBefore,
		NotAfter:              b.notAfter,
		KeyUsage:              b.keyUsage,
		ExtKeyUsage:           b.extKeyUsage,
		IsCA:                  b.isCA,
		MaxPathLen:            b.maxPathLen,
		MaxPathLenZero:        b.isCA && b.maxPathLen == 0,
		BasicConstraintsValid: true,
	}, nil
}

// BuildAndSign creates the certificate for pub under the signing context.
// It fails with ErrSigningKeyMismatch when the context's key pair does not
// belong to the issuer certificate.
func (b *CertificateBuilder) BuildAndSign(pub crypto.PublicKey, ctx SigningContext) (*x509.Certificate, error) {
	if err := ctx.verify(); err != nil {
		return nil, err
	}

	template, err := b.template()
	if err != nil {
		return nil, err
	}

	parent := ctx.issuerCert
	signer := ctx.pair.IssuingSigner()
	switch {
	case parent == nil:
		parent = template
		signer = ctx.pair.Private
	case ctx.pair.Corrupted():
		// CreateCertificate rejects a signer whose key differs from the
		// parent's public key, so hand it a copy of the parent carrying
		// the issuing signer's key. Issuer name and authority key id are
		// taken from the real certificate, and the resulting signature
		// does not verify against it.
		p := *parent
		p.PublicKey = signer.Public()
		parent = &p
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created certificate: %w", err)
	}
	return cert, nil
}

// generateSerialNumber generates a random 128-bit serial number.
func generateSerialNumber() (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, serialNumberLimit)
}
