package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"io"
)

// AlgorithmID identifies a supported key algorithm.
type AlgorithmID string

const (
	AlgECDSAP256 AlgorithmID = "ecdsa-p256"
	AlgEd25519   AlgorithmID = "ed25519"
	AlgRSA2048   AlgorithmID = "rsa-2048"
)

// DefaultAlgorithm is used when a run profile does not name one.
const DefaultAlgorithm = AlgECDSAP256

// IsValid reports whether the algorithm is supported.
func (a AlgorithmID) IsValid() bool {
	switch a {
	case AlgECDSAP256, AlgEd25519, AlgRSA2048:
		return true
	}
	return false
}

// String returns the algorithm identifier.
func (a AlgorithmID) String() string {
	return string(a)
}

// ParseAlgorithm parses an algorithm identifier string.
func ParseAlgorithm(s string) (AlgorithmID, error) {
	a := AlgorithmID(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unsupported algorithm: %q", s)
	}
	return a, nil
}

// generateKey produces a fresh private key for the algorithm.
// All returned concrete types implement crypto.Signer and are accepted
// by crypto/x509 and crypto/tls without adaptation.
func generateKey(random io.Reader, alg AlgorithmID) (crypto.Signer, error) {
	switch alg {
	case AlgECDSAP256:
		return ecdsa.GenerateKey(elliptic.P256(), random)
	case AlgEd25519:
		_, priv, err := ed25519.GenerateKey(random)
		return priv, err
	case AlgRSA2048:
		return rsa.GenerateKey(random, 2048)
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", alg)
	}
}
