package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"

	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

// NormalizePassphrase converts a passphrase to its canonical byte form.
// Passphrases are NFC-normalized before derivation so that the same visible
// characters always derive the same key, regardless of how the platform
// composed them.
func NormalizePassphrase(passphrase string) []byte {
	return []byte(norm.NFC.String(passphrase))
}

// DeriveKey derives a 256-bit key from a passphrase and salt using
// PBKDF2-SHA256. Deterministic: the same (passphrase, salt, iterations)
// always yields the same key.
func DeriveKey(passphrase []byte, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = misc.PBKDF2Iterations
	}
	return pbkdf2.Key(passphrase, salt, iterations, misc.KeySize, sha256.New)
}
