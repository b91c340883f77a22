// Package keystore generates and holds the asymmetric key material used to
// build certificate hierarchies.
//
// A KeyPair is either consistent (its public half matches the private half
// that certificates and handshakes will use) or deliberately corrupted for
// negative testing. Corruption differs by role:
//
//   - Leaf roles (server, client): the usable private half is swapped for an
//     unrelated key, so the certificate's embedded public key no longer
//     matches the key presented during the handshake.
//   - CA roles (root, intermediate): the pair itself stays internally
//     consistent, but the signer handed out for issuing child certificates
//     is swapped. The CA's own certificate remains valid; the signatures it
//     places on children do not verify against it.
package keystore

import (
	"crypto"
	"crypto/rand"
	"fmt"
	"io"
)

// Role identifies the owner of a key pair within a hierarchy.
type Role string

const (
	RoleServer       Role = "server"
	RoleClient       Role = "client"
	RoleRoot         Role = "root"
	RoleIntermediate Role = "intermediate"
)

// IsValid reports whether the role is one of the four hierarchy roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleServer, RoleClient, RoleRoot, RoleIntermediate:
		return true
	}
	return false
}

// IsCA reports whether the role signs other certificates.
func (r Role) IsCA() bool {
	return r == RoleRoot || r == RoleIntermediate
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// KeyPair holds one role's key material for the duration of a scenario.
type KeyPair struct {
	Algorithm AlgorithmID
	Role      Role

	// Private is the usable private half. For a corrupted leaf pair it is
	// an unrelated key that does not match Public.
	Private crypto.Signer

	// Public is the half embedded in the pair's certificate.
	Public crypto.PublicKey

	// issuing overrides Private when signing child certificates.
	// Set only by CA corruption.
	issuing crypto.Signer

	corrupted bool
}

// IssuingSigner returns the signer used when this pair issues child
// certificates. For a consistent pair this is the pair's own private half.
func (kp *KeyPair) IssuingSigner() crypto.Signer {
	if kp.issuing != nil {
		return kp.issuing
	}
	return kp.Private
}

// Corrupted reports whether the pair was deliberately broken.
func (kp *KeyPair) Corrupted() bool {
	return kp.corrupted
}

// KeyStore generates key pairs for hierarchy roles.
// It holds no cross-scenario state beyond the configured algorithm.
type KeyStore struct {
	alg    AlgorithmID
	random io.Reader
}

// New creates a key store producing keys of the given algorithm.
func New(alg AlgorithmID) (*KeyStore, error) {
	if !alg.IsValid() {
		return nil, fmt.Errorf("keystore: unsupported algorithm: %q", alg)
	}
	return &KeyStore{alg: alg, random: rand.Reader}, nil
}

// NewWithRand creates a key store using the provided random source.
func NewWithRand(alg AlgorithmID, random io.Reader) (*KeyStore, error) {
	ks, err := New(alg)
	if err != nil {
		return nil, err
	}
	ks.random = random
	return ks, nil
}

// Algorithm returns the algorithm this store generates.
func (s *KeyStore) Algorithm() AlgorithmID {
	return s.alg
}

// Generate produces a fresh, consistent key pair for the role.
func (s *KeyStore) Generate(role Role) (*KeyPair, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("keystore: generate %q: %w", role, ErrUnsupportedRole)
	}

	priv, err := generateKey(s.random, s.alg)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to generate %s key for %s: %w", s.alg, role, err)
	}

	return &KeyPair{
		Algorithm: s.alg,
		Role:      role,
		Private:   priv,
		Public:    priv.Public(),
	}, nil
}

// Corrupt returns a corrupted copy of the pair. The input pair is not
// modified, so a scenario can hold both halves of the comparison.
//
// Leaf roles get their private half replaced by an unrelated key.
// CA roles keep their own identity intact and get only their issuing
// signer replaced; see the package comment for why the two failure
// modes must stay distinct.
func (s *KeyStore) Corrupt(kp *KeyPair) (*KeyPair, error) {
	if !kp.Role.IsValid() {
		return nil, fmt.Errorf("keystore: corrupt %q: %w", kp.Role, ErrUnsupportedRole)
	}

	unrelated, err := generateKey(s.random, kp.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to generate replacement %s key: %w", kp.Algorithm, err)
	}

	out := &KeyPair{
		Algorithm: kp.Algorithm,
		Role:      kp.Role,
		Private:   kp.Private,
		Public:    kp.Public,
		corrupted: true,
	}
	if kp.Role.IsCA() {
		out.issuing = unrelated
	} else {
		out.Private = unrelated
	}
	return out, nil
}
