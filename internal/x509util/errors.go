package x509util

import "errors"

// ErrSigningKeyMismatch indicates the caller supplied an issuer key pair
// that does not belong to the issuer certificate. Deliberate corruption
// never triggers it: a corrupted CA pair still matches its certificate's
// identity and only swaps the signer beneath it.
var ErrSigningKeyMismatch = errors.New("signing key does not match issuer certificate")
