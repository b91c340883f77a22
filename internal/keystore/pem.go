package keystore

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pemTypeKey          = "PRIVATE KEY"
	pemTypeEncryptedKey = "ENCRYPTED PRIVATE KEY"

	// HeaderCorrupted marks a serialized key whose pair was deliberately
	// broken, so dumps used for debugging are unambiguous.
	HeaderCorrupted = "Corrupted"

	kdfIterations = 210000
	saltSize      = 16
)

// MarshalPrivateKeyPEM serializes a private key to PKCS#8 PEM.
//
// With a non-empty passphrase the PKCS#8 DER is sealed with AES-256-GCM
// under a PBKDF2-SHA256 derived key; salt and nonce travel in PEM headers.
// Extra headers are attached to the block verbatim.
func MarshalPrivateKeyPEM(key crypto.Signer, passphrase []byte, headers map[string]string) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	block := &pem.Block{Type: pemTypeKey, Bytes: der}
	if len(passphrase) > 0 {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}

		aead, err := newKeyAEAD(passphrase, salt)
		if err != nil {
			return nil, err
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("failed to generate nonce: %w", err)
		}

		block = &pem.Block{
			Type:  pemTypeEncryptedKey,
			Bytes: aead.Seal(nil, nonce, der, nil),
			Headers: map[string]string{
				"KDF":   "PBKDF2-SHA256",
				"Salt":  hex.EncodeToString(salt),
				"Nonce": hex.EncodeToString(nonce),
			},
		}
	}

	if len(headers) > 0 {
		if block.Headers == nil {
			block.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			block.Headers[k] = v
		}
	}

	return pem.EncodeToMemory(block), nil
}

// ParsePrivateKeyPEM parses a private key produced by MarshalPrivateKeyPEM.
func ParsePrivateKeyPEM(data, passphrase []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	der := block.Bytes
	if block.Type == pemTypeEncryptedKey {
		salt, err := hex.DecodeString(block.Headers["Salt"])
		if err != nil {
			return nil, fmt.Errorf("invalid salt header: %w", err)
		}
		nonce, err := hex.DecodeString(block.Headers["Nonce"])
		if err != nil {
			return nil, fmt.Errorf("invalid nonce header: %w", err)
		}

		aead, err := newKeyAEAD(passphrase, salt)
		if err != nil {
			return nil, err
		}
		der, err = aead.Open(nil, nonce, block.Bytes, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt private key: %w", ErrWrongPassphrase)
		}
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("parsed key of type %T is not a signer", key)
	}
	return signer, nil
}

// newKeyAEAD derives an AES-256-GCM cipher from a passphrase and salt.
func newKeyAEAD(passphrase, salt []byte) (cipher.AEAD, error) {
	kek := pbkdf2.Key(passphrase, salt, kdfIterations, 32, sha256.New)
	blockCipher, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	return aead, nil
}
