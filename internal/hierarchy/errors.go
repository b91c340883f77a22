package hierarchy

import "errors"

// Sentinel errors for hierarchy assembly.
var (
	// ErrInvalidDepthForCorruption indicates a corruption target that does
	// not exist at the requested signer depth, e.g. corrupting the
	// intermediate key of a self-signed hierarchy.
	ErrInvalidDepthForCorruption = errors.New("corruption target does not exist at this signer depth")

	// ErrChainVerification indicates the assembled chain does not verify
	// from leaf to trust anchor.
	ErrChainVerification = errors.New("certificate chain verification failed")

	// ErrKeyMismatch indicates the leaf's usable private key does not match
	// the public key embedded in the leaf certificate.
	ErrKeyMismatch = errors.New("leaf key does not match leaf certificate")
)
