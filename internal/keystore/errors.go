package keystore

import "errors"

// Sentinel errors for key store operations.
// Use errors.Is() to check for these through the error chain.
var (
	// ErrUnsupportedRole indicates a role outside {server, client, root, intermediate}.
	ErrUnsupportedRole = errors.New("unsupported key role")

	// ErrWrongPassphrase indicates an encrypted key could not be decrypted.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupt key file")
)
