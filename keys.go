package rubeen

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/RubeOS-packages/RubeEn/internal/crypto"
	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

// Initialize memguard in init function to ensure it's set up before any envelope operation
func init() {
	// Enable memguard protection
	memguard.CatchInterrupt()
}

// FileKey is a random 256-bit symmetric key generated once per encryption
// operation in Key-Wrap Mode. The raw key material lives in a memguard
// enclave and is only materialized for the duration of a single seal, wrap
// or unwrap call.
//
// A FileKey carries a random UUID that identifies the key across its two
// artifacts (encrypted file and key file). The ID is not secret; it travels
// in key file metadata and, when artifact binding is enabled, is fed to the
// cipher as additional authenticated data.
type FileKey struct {
	id      string
	enclave *memguard.Enclave
}

// GenerateFileKey creates a fresh random file key from the platform CSPRNG.
func GenerateFileKey() (*FileKey, error) {
	raw, err := crypto.RandomBytes(misc.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate file key: %w", ErrRandomnessUnavailable)
	}

	// NewEnclave wipes the source slice
	return &FileKey{
		id:      uuid.NewString(),
		enclave: memguard.NewEnclave(raw),
	}, nil
}

// ImportFileKey re-imports raw key material as a usable key, screening out
// degenerate material first. The input slice is wiped.
func ImportFileKey(id string, raw []byte) (*FileKey, error) {
	if len(raw) != misc.KeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrWeakKey, misc.KeySize, len(raw))
	}
	if crypto.IsWeakKey(raw) {
		memguard.WipeBytes(raw)
		return nil, ErrWeakKey
	}
	if id == "" {
		id = uuid.NewString()
	}

	return &FileKey{
		id:      id,
		enclave: memguard.NewEnclave(raw),
	}, nil
}

// ID returns the key's public identifier.
func (k *FileKey) ID() string {
	return k.id
}

// open materializes the key bytes in a locked buffer. The caller must
// Destroy the returned buffer as soon as the cipher call completes.
func (k *FileKey) open() (*memguard.LockedBuffer, error) {
	if k == nil || k.enclave == nil {
		return nil, errors.New("file key has been destroyed")
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to access file key: %w", err)
	}
	return buf, nil
}

// Destroy discards the key material. The key is unusable afterwards.
func (k *FileKey) Destroy() {
	if k != nil {
		k.enclave = nil
	}
}
