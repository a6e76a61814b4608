package rubeen

import (
	"errors"
	"fmt"

	"github.com/RubeOS-packages/RubeEn/internal/crypto"
	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

// File envelope layouts. Raw byte concatenation, no field framing:
//
//	Password-Direct:  salt(16) | iv(12) | ciphertext | tag(16)
//	Key-Wrap:                    iv(12) | ciphertext | tag(16)
//
// The salt only appears in Password-Direct Mode because there is no
// separate key artifact to carry it.
const (
	// DirectOverhead is the fixed byte overhead of a Password-Direct
	// envelope over its plaintext.
	DirectOverhead = misc.SaltSize + misc.NonceSize + misc.TagSize

	// KeyedOverhead is the fixed byte overhead of a Key-Wrap envelope
	// over its plaintext.
	KeyedOverhead = misc.NonceSize + misc.TagSize
)

// encodeDirect seals plaintext under a passphrase-derived key and frames
// the result as salt | iv | ciphertext+tag.
func encodeDirect(plaintext, passphrase []byte, iterations int, additionalData []byte) ([]byte, error) {
	envelope, err := crypto.SealWithPassphrase(plaintext, passphrase, iterations, additionalData)
	if err != nil {
		return nil, translateCryptoErr(err)
	}
	return envelope, nil
}

// decodeDirect splits a Password-Direct envelope by fixed offsets and opens
// it. Envelopes below the mandatory header length are rejected before any
// cipher call.
func decodeDirect(envelope, passphrase []byte, iterations int, additionalData []byte) ([]byte, error) {
	if len(envelope) < DirectOverhead {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedEnvelope, len(envelope), DirectOverhead)
	}

	plaintext, err := crypto.OpenWithPassphrase(envelope, passphrase, iterations, additionalData)
	if err != nil {
		return nil, translateCryptoErr(err)
	}
	return plaintext, nil
}

// encodeWithKey seals plaintext under a file key: iv | ciphertext+tag.
func encodeWithKey(plaintext []byte, key *FileKey, additionalData []byte) ([]byte, error) {
	keyBuffer, err := key.open()
	if err != nil {
		return nil, err
	}
	defer keyBuffer.Destroy()

	nonce, ciphertext, err := crypto.Seal(keyBuffer.Bytes(), plaintext, additionalData)
	if err != nil {
		return nil, translateCryptoErr(err)
	}

	// Combine nonce and ciphertext
	envelope := make([]byte, len(nonce)+len(ciphertext))
	copy(envelope[:len(nonce)], nonce)
	copy(envelope[len(nonce):], ciphertext)

	return envelope, nil
}

// decodeWithKey opens a Key-Wrap envelope with the given file key.
func decodeWithKey(envelope []byte, key *FileKey, additionalData []byte) ([]byte, error) {
	if len(envelope) < KeyedOverhead {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedEnvelope, len(envelope), KeyedOverhead)
	}

	keyBuffer, err := key.open()
	if err != nil {
		return nil, err
	}
	defer keyBuffer.Destroy()

	nonce := envelope[:misc.NonceSize]
	ciphertext := envelope[misc.NonceSize:]

	plaintext, err := crypto.Open(keyBuffer.Bytes(), nonce, ciphertext, additionalData)
	if err != nil {
		return nil, translateCryptoErr(err)
	}
	return plaintext, nil
}

// translateCryptoErr maps internal cipher errors onto the package's typed
// error taxonomy.
func translateCryptoErr(err error) error {
	switch {
	case errors.Is(err, crypto.ErrAuthentication):
		return ErrAuthenticationFailed
	case errors.Is(err, crypto.ErrRandomness):
		return fmt.Errorf("%w: %v", ErrRandomnessUnavailable, err)
	default:
		return err
	}
}
