package hierarchy

import (
	"crypto/x509"
	"fmt"
	"time"
)

// Chain is an ordered certificate sequence from leaf up to and including
// the certificate below the trust anchor. A self-signed chain is just the
// leaf; a CA-signed chain ends with the root.
type Chain []*x509.Certificate

// Leaf returns the end-entity certificate.
func (c Chain) Leaf() *x509.Certificate {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// Verify walks the chain from leaf to anchor and checks every link:
// validity window, CA status and cert-sign usage of the issuer, and the
// signature itself. The final certificate must be the anchor, and the
// anchor must be self-signed.
func (c Chain) Verify(anchor *x509.Certificate, at time.Time) error {
	if len(c) == 0 {
		return fmt.Errorf("empty chain: %w", ErrChainVerification)
	}
	if at.IsZero() {
		at = time.Now()
	}

	for i := 0; i < len(c)-1; i++ {
		if err := verifyLink(c[i], c[i+1], at); err != nil {
			return fmt.Errorf("link %d (%s -> %s): %v: %w",
				i, c[i].Subject.CommonName, c[i+1].Subject.CommonName, err, ErrChainVerification)
		}
	}

	last := c[len(c)-1]
	if !last.Equal(anchor) {
		return fmt.Errorf("chain does not terminate at the trust anchor: %w", ErrChainVerification)
	}
	if err := checkWindow(last, at); err != nil {
		return fmt.Errorf("anchor %s: %v: %w", last.Subject.CommonName, err, ErrChainVerification)
	}
	// The anchor may be a CA root or a self-signed leaf, so check the raw
	// self-signature instead of CheckSignatureFrom, which would demand CA
	// basic constraints the leaf case does not have.
	if last.Issuer.String() != last.Subject.String() {
		return fmt.Errorf("anchor %s is not self-issued: %w", last.Subject.CommonName, ErrChainVerification)
	}
	if err := last.CheckSignature(last.SignatureAlgorithm, last.RawTBSCertificate, last.Signature); err != nil {
		return fmt.Errorf("anchor %s self-signature: %v: %w", last.Subject.CommonName, err, ErrChainVerification)
	}
	return nil
}

// verifyLink checks that issuer validly signed child at the given time.
func verifyLink(child, issuer *x509.Certificate, at time.Time) error {
	if err := checkWindow(child, at); err != nil {
		return err
	}
	if !issuer.IsCA {
		return fmt.Errorf("issuer %s is not a CA", issuer.Subject.CommonName)
	}
	if issuer.KeyUsage&x509.KeyUsageCertSign == 0 {
		return fmt.Errorf("issuer %s lacks cert-sign usage", issuer.Subject.CommonName)
	}
	if child.Issuer.String() != issuer.Subject.String() {
		return fmt.Errorf("issuer name mismatch: %s vs %s", child.Issuer, issuer.Subject)
	}
	if err := child.CheckSignatureFrom(issuer); err != nil {
		return fmt.Errorf("signature: %v", err)
	}
	return nil
}

func checkWindow(cert *x509.Certificate, at time.Time) error {
	if at.Before(cert.NotBefore) {
		return fmt.Errorf("certificate not yet valid")
	}
	if at.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired")
	}
	return nil
}
