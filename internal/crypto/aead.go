package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

var (
	// ErrAuthentication is returned when a ciphertext fails tag verification.
	// Wrong key and corrupted data are deliberately indistinguishable.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRandomness is returned when the platform CSPRNG is unavailable.
	ErrRandomness = errors.New("secure random source unavailable")
)

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// RandomBytes returns n bytes drawn from the platform CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	return b, nil
}

// Seal encrypts plaintext with AES-256-GCM under key, generating a fresh
// 96-bit nonce. Returns the nonce and the ciphertext (tag appended).
// additionalData may be nil; when present it is authenticated but not
// encrypted and must be supplied unchanged to Open.
func Seal(key, plaintext, additionalData []byte) (nonce, ciphertext []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	nonce, err = RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, plaintext, additionalData)
	return nonce, ciphertext, nil
}

// Open decrypts an AES-256-GCM ciphertext. Any tag mismatch yields
// ErrAuthentication and no plaintext.
func Open(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("invalid nonce size")
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// SealWithPassphrase encrypts data under a passphrase-derived key with
// PBKDF2 + AES-256-GCM, producing salt + nonce + ciphertext.
func SealWithPassphrase(data []byte, passphrase []byte, iterations int, additionalData []byte) ([]byte, error) {
	// Generate random salt for PBKDF2
	salt, err := RandomBytes(misc.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	// Derive key using PBKDF2
	key := DeriveKey(passphrase, salt, iterations)
	defer wipe(key)

	nonce, ciphertext, err := Seal(key, data, additionalData)
	if err != nil {
		return nil, err
	}

	// Combine: salt + nonce + ciphertext
	result := make([]byte, len(salt)+len(nonce)+len(ciphertext))
	copy(result[:len(salt)], salt)
	copy(result[len(salt):len(salt)+len(nonce)], nonce)
	copy(result[len(salt)+len(nonce):], ciphertext)

	return result, nil
}

// OpenWithPassphrase decrypts data produced by SealWithPassphrase.
func OpenWithPassphrase(sealed []byte, passphrase []byte, iterations int, additionalData []byte) ([]byte, error) {
	if len(sealed) < misc.SaltSize+misc.NonceSize+misc.TagSize {
		return nil, errors.New("sealed data too short")
	}

	// Extract components
	salt := sealed[:misc.SaltSize]
	nonce := sealed[misc.SaltSize : misc.SaltSize+misc.NonceSize]
	ciphertext := sealed[misc.SaltSize+misc.NonceSize:]

	// Derive key
	key := DeriveKey(passphrase, salt, iterations)
	defer wipe(key)

	return Open(key, nonce, ciphertext, additionalData)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
