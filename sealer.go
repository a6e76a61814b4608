package rubeen

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/RubeOS-packages/RubeEn/audit"
	"github.com/RubeOS-packages/RubeEn/internal/crypto"
	"github.com/RubeOS-packages/RubeEn/internal/mem"
)

// maxPlaintextSize caps single-shot payloads; streaming is out of scope
const maxPlaintextSize = 1 << 30 // 1GB

// Sealer implements the envelope operations: password-direct encryption,
// key-wrap encryption and the wrapped-key import/export pair.
//
// All operations are stateless pure functions over their inputs — the
// Sealer retains no secrets between calls. The struct exists to carry
// configuration (iteration count, agent name, key file encoding, artifact
// binding) and the audit logger, the way the rest of RubeOS wires its
// services.
//
// SECURITY PROPERTIES:
// - Keys are derived per call and wiped when the call returns
// - Fresh random salt and nonce per encryption from the platform CSPRNG
// - AES-256-GCM authenticated encryption; tampering fails decryption
// - Wrong passphrase and corruption are indistinguishable to callers
// - Nothing sensitive is audited: only operation names, sizes, key IDs
//   and failure kinds
//
// Concurrent use is safe: operations share no mutable state and each draws
// independent randomness.
type Sealer struct {
	options Options
	audit   audit.Logger

	// Memory protection
	memoryProtectionLevel mem.ProtectionLevel

	closed bool
}

// New creates a Sealer from the given options.
//
// When options request memory locking, locking is attempted best-effort and
// the achieved protection level is recorded; a refusal (EPERM in a
// container, for instance) degrades the level rather than failing
// construction. An audit logger is built from the options' audit config,
// defaulting to no-op.
func New(options Options) (*Sealer, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	s := &Sealer{
		options:               options,
		memoryProtectionLevel: mem.ProtectionNone,
	}

	if options.EnableMemoryLock {
		level, err := mem.Lock()
		if err != nil {
			return nil, fmt.Errorf("failed to set up memory protection: %w", err)
		}
		s.memoryProtectionLevel = level
	}

	logger, err := audit.NewLogger(options.AuditConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	s.audit = logger

	return s, nil
}

// Audit exposes the sealer's audit logger so callers can query the trail
// of operations. Returns the no-op logger when auditing is disabled.
func (s *Sealer) Audit() audit.Logger {
	return s.audit
}

// MemoryProtectionLevel reports the protection achieved at construction.
func (s *Sealer) MemoryProtectionLevel() mem.ProtectionLevel {
	return s.memoryProtectionLevel
}

// Close releases the audit logger and any memory locks. The Sealer must
// not be used afterwards.
func (s *Sealer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit logger: %w", err))
		}
	}
	if s.memoryProtectionLevel == mem.ProtectionFull {
		if err := mem.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GenerateFileKey creates a fresh random 256-bit file key for Key-Wrap
// Mode encryption.
func (s *Sealer) GenerateFileKey() (*FileKey, error) {
	key, err := GenerateFileKey()
	if err != nil {
		s.audit.Log("generate_file_key", false, map[string]interface{}{
			"error": "randomness unavailable",
		})
		return nil, err
	}

	s.audit.Log("generate_file_key", true, map[string]interface{}{
		"key_id": key.ID(),
	})
	return key, nil
}

// EncryptDirect encrypts plaintext directly under a passphrase-derived key
// (Password-Direct Mode).
//
// OUTPUT FORMAT:
//
//	salt(16) | iv(12) | ciphertext | tag(16)
//
// The salt rides in the envelope so decryption can reproduce the key; the
// output is exactly DirectOverhead bytes longer than the plaintext. Two
// calls with identical inputs produce different envelopes — salt and IV
// are drawn fresh from the CSPRNG every time.
//
// Parameters:
//   - plaintext: the file bytes to protect. May be empty; capped at 1GB.
//   - passphrase: treated as UTF-8 and NFC-normalized before derivation.
//     Must be non-empty.
//
// Returns the binary envelope, or an error (ErrRandomnessUnavailable when
// the CSPRNG fails).
func (s *Sealer) EncryptDirect(plaintext []byte, passphrase string) ([]byte, error) {
	if err := s.checkInput(plaintext, passphrase); err != nil {
		return nil, err
	}

	pass := crypto.NormalizePassphrase(passphrase)
	defer memguard.WipeBytes(pass)

	envelope, err := encodeDirect(plaintext, pass, s.options.iterations(), nil)
	if err != nil {
		s.audit.Log("encrypt_direct", false, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	s.audit.Log("encrypt_direct", true, map[string]interface{}{
		"data_size":   len(plaintext),
		"result_size": len(envelope),
	})
	return envelope, nil
}

// DecryptDirect decrypts a Password-Direct envelope.
//
// Envelopes shorter than the mandatory salt+iv+tag header are rejected as
// ErrMalformedEnvelope before any cipher work. A wrong passphrase or a
// tampered envelope yields ErrAuthenticationFailed; the two cases are
// deliberately indistinguishable and no partial plaintext is ever
// returned.
func (s *Sealer) DecryptDirect(envelope []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}

	pass := crypto.NormalizePassphrase(passphrase)
	defer memguard.WipeBytes(pass)

	plaintext, err := decodeDirect(envelope, pass, s.options.iterations(), nil)
	if err != nil {
		s.audit.Log("decrypt_direct", false, map[string]interface{}{
			"error": failureKind(err),
		})
		return nil, err
	}

	s.audit.Log("decrypt_direct", true, map[string]interface{}{
		"data_size":   len(envelope),
		"result_size": len(plaintext),
	})
	return plaintext, nil
}

// EncryptWithKey encrypts plaintext under a random file key (Key-Wrap
// Mode). The envelope carries only iv | ciphertext | tag; the key itself
// travels separately via ExportWrappedKey.
func (s *Sealer) EncryptWithKey(plaintext []byte, key *FileKey) ([]byte, error) {
	if len(plaintext) > maxPlaintextSize {
		return nil, errors.New("plaintext too large")
	}
	if key == nil {
		return nil, errors.New("file key is required")
	}

	envelope, err := encodeWithKey(plaintext, key, s.bindingData(key.ID()))
	if err != nil {
		s.audit.Log("encrypt_with_key", false, map[string]interface{}{
			"key_id": key.ID(),
			"error":  failureKind(err),
		})
		return nil, err
	}

	s.audit.Log("encrypt_with_key", true, map[string]interface{}{
		"key_id":      key.ID(),
		"data_size":   len(plaintext),
		"result_size": len(envelope),
	})
	return envelope, nil
}

// DecryptWithKey decrypts a Key-Wrap envelope with an already-unwrapped
// file key.
func (s *Sealer) DecryptWithKey(envelope []byte, key *FileKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("file key is required")
	}

	plaintext, err := decodeWithKey(envelope, key, s.bindingData(key.ID()))
	if err != nil {
		s.audit.Log("decrypt_with_key", false, map[string]interface{}{
			"key_id": key.ID(),
			"error":  failureKind(err),
		})
		return nil, err
	}

	s.audit.Log("decrypt_with_key", true, map[string]interface{}{
		"key_id":      key.ID(),
		"data_size":   len(envelope),
		"result_size": len(plaintext),
	})
	return plaintext, nil
}

// ExportWrappedKey wraps a file key under a passphrase-derived key and
// serializes it as key file text.
//
// The key file is a JSON record {salt, iv, key, metadata} with base64
// fields; when ObfuscateKeyFiles is set the whole record is base64-wrapped
// as well. Metadata is optional — pass nil to omit everything but the key
// ID. The sealer's Agent name is filled in when the caller left it empty.
func (s *Sealer) ExportWrappedKey(key *FileKey, passphrase string, meta *KeyMetadata) (string, error) {
	if key == nil {
		return "", errors.New("file key is required")
	}
	if passphrase == "" {
		return "", errors.New("passphrase cannot be empty")
	}

	if meta != nil && meta.Agent == "" {
		meta.Agent = s.options.Agent
	}

	pass := crypto.NormalizePassphrase(passphrase)
	defer memguard.WipeBytes(pass)

	text, err := wrapKey(key, pass, s.options.iterations(), meta, s.options.ObfuscateKeyFiles, s.bindingData(key.ID()))
	if err != nil {
		s.audit.Log("export_wrapped_key", false, map[string]interface{}{
			"key_id": key.ID(),
			"error":  failureKind(err),
		})
		return "", err
	}

	s.audit.Log("export_wrapped_key", true, map[string]interface{}{
		"key_id":      key.ID(),
		"result_size": len(text),
	})
	return text, nil
}

// ImportWrappedKey parses key file text and unwraps the file key it
// carries.
//
// Unparseable text fails as ErrMalformedKeyFile; a wrong passphrase fails
// as ErrAuthenticationFailed. The recovered raw key is screened against
// degenerate material before being re-imported.
func (s *Sealer) ImportWrappedKey(keyFileText, passphrase string) (*FileKey, *KeyMetadata, error) {
	if passphrase == "" {
		return nil, nil, errors.New("passphrase cannot be empty")
	}

	pass := crypto.NormalizePassphrase(passphrase)
	defer memguard.WipeBytes(pass)

	key, meta, err := unwrapKey(keyFileText, pass, s.options.iterations(), func(m *KeyMetadata) []byte {
		if m == nil {
			return s.bindingData("")
		}
		return s.bindingData(m.KeyID)
	})
	if err != nil {
		s.audit.Log("import_wrapped_key", false, map[string]interface{}{
			"error": failureKind(err),
		})
		return nil, nil, err
	}

	s.audit.Log("import_wrapped_key", true, map[string]interface{}{
		"key_id": key.ID(),
	})
	return key, meta, nil
}

// ImportKeyAndDecrypt is the full Key-Wrap read path: unwrap the file key
// from key file text, decrypt the envelope with it, and hand back the
// plaintext together with whatever metadata traveled in the key file. The
// unwrapped key is destroyed before returning.
func (s *Sealer) ImportKeyAndDecrypt(envelope []byte, keyFileText, passphrase string) ([]byte, *KeyMetadata, error) {
	key, meta, err := s.ImportWrappedKey(keyFileText, passphrase)
	if err != nil {
		return nil, nil, err
	}
	defer key.Destroy()

	plaintext, err := s.DecryptWithKey(envelope, key)
	if err != nil {
		return nil, nil, err
	}
	return plaintext, meta, nil
}

func (s *Sealer) checkInput(plaintext []byte, passphrase string) error {
	if len(plaintext) > maxPlaintextSize {
		return errors.New("plaintext too large")
	}
	if passphrase == "" {
		return errors.New("passphrase cannot be empty")
	}
	return nil
}

// bindingData returns the additional authenticated data tying the two
// Key-Wrap artifacts together, or nil when binding is disabled.
func (s *Sealer) bindingData(keyID string) []byte {
	if !s.options.BindArtifacts || keyID == "" {
		return nil
	}
	return []byte(keyID)
}

// failureKind reduces an error to its taxonomy name for audit logs,
// keeping anything sensitive out of diagnostics.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, ErrMalformedKeyFile):
		return "malformed_key_file"
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrRandomnessUnavailable):
		return "randomness_unavailable"
	case errors.Is(err, ErrWeakKey):
		return "weak_key"
	default:
		return "internal_error"
	}
}
