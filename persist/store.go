package persist

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Artifact file extensions. An encrypted file and its companion key file
// are paired by sharing a base name.
const (
	EnvelopeExt = ".ren"
	KeyFileExt  = ".renkey"
)

// ErrNotFound is returned when a named artifact does not exist in the store.
var ErrNotFound = errors.New("artifact not found")

// ArtifactInfo describes a stored envelope and its companion key file.
type ArtifactInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	HasKeyFile bool      `json:"has_key_file"`
}

// Store defines the interface for persisting envelope artifacts.
//
// Everything passed to this interface is already sealed by the envelope
// layer: binary file envelopes and key file text. The store never sees
// plaintext, passphrases or unwrapped keys — it moves opaque blobs.
type Store interface {

	// Envelope artifacts (binary)

	SaveEnvelope(name string, envelope []byte) error

	// LoadEnvelope retrieves the named envelope.
	// Returns ErrNotFound when no such artifact exists.
	LoadEnvelope(name string) ([]byte, error)

	EnvelopeExists(name string) (bool, error)

	// Key file artifacts (text)

	SaveKeyFile(name string, keyFileText string) error

	// LoadKeyFile retrieves the named key file.
	// Returns ErrNotFound when no such artifact exists.
	LoadKeyFile(name string) (string, error)

	KeyFileExists(name string) (bool, error)

	// Management

	// List enumerates stored envelopes with their pairing state.
	List() ([]ArtifactInfo, error)

	// Delete removes an envelope and its companion key file, if any.
	Delete(name string) error

	// Health

	// Ping verifies the backend is reachable.
	Ping() error

	// GetType returns the backend type identifier.
	GetType() string
}

// StoreConfig provides configuration for different storage backends.
//
// Example:
//
//	config := StoreConfig{
//	    Type:   StoreTypeFileSystem,
//	    Config: map[string]interface{}{"base_path": "/data/artifacts"},
//	}
type StoreConfig struct {
	// Type specifies the storage backend to be used.
	// This field must be one of the predefined StoreType constants.
	Type StoreType `json:"type"`

	// Config contains configuration settings specific to the chosen
	// backend, e.g. "base_path" for filesystem or "bucket" for S3.
	Config map[string]interface{} `json:"config"`
}

// StoreType represents the different types of storage backends that can be used.
type StoreType string

// Supported storage types.
const (
	// StoreTypeFileSystem indicates that the file system should be used for storage.
	StoreTypeFileSystem StoreType = "filesystem"

	// StoreTypeS3 indicates that an S3-compatible service should be used as the storage backend.
	StoreTypeS3 StoreType = "s3"
)

// validateArtifactName guards against path traversal and malformed names.
func validateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}

	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		strings.ContainsRune(name, 0) {
		return fmt.Errorf("artifact name contains invalid characters")
	}

	if len(name) > 200 {
		return fmt.Errorf("artifact name too long (max 200 characters)")
	}

	return nil
}
