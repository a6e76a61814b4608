package rubeen

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RubeOS-packages/RubeEn/audit"
)

func TestKeyWrapRoundTrip(t *testing.T) {
	s := newTestSealer(t, Options{Agent: "RubeOS/test"})
	plaintext := []byte("the full two-artifact flow")

	// Producer side: encrypted file + wrapped key file
	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	envelope, err := s.EncryptWithKey(plaintext, key)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	if len(envelope) != len(plaintext)+KeyedOverhead {
		t.Errorf("Expected envelope length %d, got %d", len(plaintext)+KeyedOverhead, len(envelope))
	}

	keyFileText, err := s.ExportWrappedKey(key, "correct-horse", NewKeyMetadata("flow.bin", ""))
	if err != nil {
		t.Fatalf("Failed to export wrapped key: %v", err)
	}
	key.Destroy()

	// Consumer side: one call from the two artifacts back to plaintext
	got, meta, err := s.ImportKeyAndDecrypt(envelope, keyFileText, "correct-horse")
	if err != nil {
		t.Fatalf("Failed to import and decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("Decrypted data doesn't match original")
	}
	if meta == nil || meta.Filename != "flow.bin" {
		t.Errorf("Metadata did not travel with the key file: %+v", meta)
	}

	// Wrong passphrase fails on the key file, before the envelope is touched
	if _, _, err := s.ImportKeyAndDecrypt(envelope, keyFileText, "wrong-horse"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed, got: %v", err)
	}
}

func TestKeyWrapMinimumLengthRejection(t *testing.T) {
	s := newTestSealer(t, Options{})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	for length := 0; length < KeyedOverhead; length++ {
		if _, err := s.DecryptWithKey(make([]byte, length), key); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Length %d: expected ErrMalformedEnvelope, got: %v", length, err)
		}
	}
}

func TestGenerateFileKeyUniqueness(t *testing.T) {
	s := newTestSealer(t, Options{})

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		key, err := s.GenerateFileKey()
		if err != nil {
			t.Fatalf("Failed to generate key: %v", err)
		}
		if seen[key.ID()] {
			t.Fatalf("Duplicate key ID: %s", key.ID())
		}
		seen[key.ID()] = true
		key.Destroy()
	}
}

func TestImportFileKeyScreening(t *testing.T) {
	// Degenerate raw key material must be rejected on import
	if _, err := ImportFileKey("", make([]byte, 32)); !errors.Is(err, ErrWeakKey) {
		t.Errorf("All-zero key: expected ErrWeakKey, got: %v", err)
	}
	if _, err := ImportFileKey("", make([]byte, 16)); !errors.Is(err, ErrWeakKey) {
		t.Errorf("Short key: expected ErrWeakKey, got: %v", err)
	}
	if _, err := ImportFileKey("", bytes.Repeat([]byte{0x42}, 32)); !errors.Is(err, ErrWeakKey) {
		t.Errorf("Constant key: expected ErrWeakKey, got: %v", err)
	}
}

func TestArtifactBinding(t *testing.T) {
	bound := newTestSealer(t, Options{BindArtifacts: true})
	plaintext := []byte("bound artifacts")

	key, err := bound.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	envelope, err := bound.EncryptWithKey(plaintext, key)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	keyFileText, err := bound.ExportWrappedKey(key, "correct-horse", nil)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	// The matched pair round-trips
	got, _, err := bound.ImportKeyAndDecrypt(envelope, keyFileText, "correct-horse")
	if err != nil {
		t.Fatalf("Failed to decrypt matched pair: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("Decrypted data doesn't match original")
	}

	// A key file belonging to a different file key must not open this
	// envelope even with the right passphrase
	otherKey, err := bound.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	otherEnvelope, err := bound.EncryptWithKey([]byte("other file"), otherKey)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	if _, _, err := bound.ImportKeyAndDecrypt(otherEnvelope, keyFileText, "correct-horse"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Cross-pair decryption should fail authentication, got: %v", err)
	}

	// A plain reader cannot open bound artifacts; binding changes the
	// authenticated data on both sides
	plain := newTestSealer(t, Options{})
	if _, _, err := plain.ImportKeyAndDecrypt(envelope, keyFileText, "correct-horse"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Unbound reader should fail authentication on bound artifacts, got: %v", err)
	}
}

func TestConcurrentOperations(t *testing.T) {
	s := newTestSealer(t, Options{})

	var wg sync.WaitGroup
	errCh := make(chan error, 16)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			plaintext := []byte(fmt.Sprintf("worker %d payload", n))
			envelope, err := s.EncryptDirect(plaintext, "correct-horse")
			if err != nil {
				errCh <- err
				return
			}

			got, err := s.DecryptDirect(envelope, "correct-horse")
			if err != nil {
				errCh <- err
				return
			}
			if !bytes.Equal(got, plaintext) {
				errCh <- fmt.Errorf("worker %d: plaintext mismatch", n)
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func TestAuditTrail(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	s := newTestSealer(t, Options{
		AuditConfig: &audit.Config{
			Enabled: true,
			Agent:   "RubeOS/test",
			Type:    audit.FileAuditType,
			Options: map[string]interface{}{"file_path": logPath},
		},
	})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	if _, err := s.EncryptWithKey([]byte("audited"), key); err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	if _, err := s.DecryptDirect([]byte("too short"), "correct-horse"); err == nil {
		t.Fatal("Expected failure on malformed envelope")
	}

	result, err := s.audit.Query(audit.QueryOptions{KeyOperations: true})
	if err != nil {
		t.Fatalf("Failed to query audit log: %v", err)
	}
	if result.Filtered < 2 {
		t.Errorf("Expected at least 2 key operation events, got %d", result.Filtered)
	}
	for _, event := range result.Events {
		if event.Action == "" {
			t.Error("Audit event missing action")
		}
	}

	// The failure must be recorded with its taxonomy kind only
	failed := false
	all, err := s.audit.Query(audit.QueryOptions{Action: "decrypt_direct"})
	if err != nil {
		t.Fatalf("Failed to query audit log: %v", err)
	}
	for _, event := range all.Events {
		if !event.Success && event.Error == "malformed_envelope" {
			failed = true
		}
	}
	if !failed {
		t.Error("Malformed envelope failure not found in audit trail")
	}
}
