package rubeen

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	s := newTestSealer(t, Options{Agent: "RubeOS/test"})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	meta := NewKeyMetadata("report.pdf", "")
	text, err := s.ExportWrappedKey(key, "correct-horse", meta)
	if err != nil {
		t.Fatalf("Failed to export wrapped key: %v", err)
	}

	imported, gotMeta, err := s.ImportWrappedKey(text, "correct-horse")
	if err != nil {
		t.Fatalf("Failed to import wrapped key: %v", err)
	}
	defer imported.Destroy()

	if imported.ID() != key.ID() {
		t.Errorf("Key ID not preserved: %s vs %s", imported.ID(), key.ID())
	}
	if gotMeta == nil {
		t.Fatal("Expected metadata to round trip")
	}
	if gotMeta.Filename != "report.pdf" {
		t.Errorf("Expected filename report.pdf, got %s", gotMeta.Filename)
	}
	if gotMeta.Agent != "RubeOS/test" {
		t.Errorf("Expected agent filled from options, got %q", gotMeta.Agent)
	}
	if gotMeta.CreatedAt().IsZero() || time.Since(gotMeta.CreatedAt()) > time.Minute {
		t.Errorf("Unexpected creation timestamp: %v", gotMeta.CreatedAt())
	}

	// The imported key must actually decrypt data sealed with the original
	envelope, err := s.EncryptWithKey([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	plaintext, err := s.DecryptWithKey(envelope, imported)
	if err != nil {
		t.Fatalf("Failed to decrypt with imported key: %v", err)
	}
	if string(plaintext) != "payload" {
		t.Errorf("Expected payload, got %q", string(plaintext))
	}
}

func TestWrapWithoutMetadata(t *testing.T) {
	s := newTestSealer(t, Options{})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	text, err := s.ExportWrappedKey(key, "correct-horse", nil)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	// The record still carries the key ID so artifacts stay pairable
	var record struct {
		Salt     string       `json:"salt"`
		IV       string       `json:"iv"`
		Key      string       `json:"key"`
		Metadata *KeyMetadata `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		t.Fatalf("Key file is not valid JSON: %v", err)
	}

	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil || len(salt) != 16 {
		t.Errorf("Expected 16-byte base64 salt, got %q", record.Salt)
	}
	iv, err := base64.StdEncoding.DecodeString(record.IV)
	if err != nil || len(iv) != 12 {
		t.Errorf("Expected 12-byte base64 iv, got %q", record.IV)
	}
	wrapped, err := base64.StdEncoding.DecodeString(record.Key)
	if err != nil || len(wrapped) != 48 {
		t.Errorf("Expected 48-byte wrapped key (32 key + 16 tag), got %d bytes", len(wrapped))
	}
	if record.Metadata == nil || record.Metadata.KeyID != key.ID() {
		t.Error("Key ID missing from key file metadata")
	}
}

func TestWrapObfuscation(t *testing.T) {
	s := newTestSealer(t, Options{ObfuscateKeyFiles: true})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	text, err := s.ExportWrappedKey(key, "correct-horse", nil)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	// Obfuscated form is base64 of the JSON record, no braces in sight
	if strings.Contains(text, "{") {
		t.Error("Obfuscated key file leaks JSON structure")
	}
	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		t.Fatalf("Obfuscated key file is not valid base64: %v", err)
	}
	if !json.Valid(decoded) {
		t.Error("Decoded obfuscated key file is not valid JSON")
	}

	// Import accepts the obfuscated form directly
	imported, _, err := s.ImportWrappedKey(text, "correct-horse")
	if err != nil {
		t.Fatalf("Failed to import obfuscated key file: %v", err)
	}
	imported.Destroy()

	// A plain sealer also accepts it: the outer encoding is a transport
	// convenience, not part of the protocol
	plain := newTestSealer(t, Options{})
	imported2, _, err := plain.ImportWrappedKey(text, "correct-horse")
	if err != nil {
		t.Fatalf("Plain sealer failed to import obfuscated key file: %v", err)
	}
	imported2.Destroy()
}

func TestUnwrapWrongPassphrase(t *testing.T) {
	s := newTestSealer(t, Options{})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	text, err := s.ExportWrappedKey(key, "correct-horse", nil)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	if _, _, err := s.ImportWrappedKey(text, "wrong-horse"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed, got: %v", err)
	}
}

func TestUnwrapMalformedInput(t *testing.T) {
	s := newTestSealer(t, Options{})

	malformed := []string{
		"",
		"   ",
		"not json at all",
		"{\"salt\":\"\"}",
		"{}",
		base64.StdEncoding.EncodeToString([]byte("still not json")),
		`{"salt":"AAAA","iv":"AAAA","key":"AAAA"}`, // wrong field lengths
	}

	for i, input := range malformed {
		if _, _, err := s.ImportWrappedKey(input, "correct-horse"); !errors.Is(err, ErrMalformedKeyFile) {
			t.Errorf("Case %d: expected ErrMalformedKeyFile, got: %v", i, err)
		}
	}
}

func TestUnwrapTamperedRecord(t *testing.T) {
	s := newTestSealer(t, Options{})

	key, err := s.GenerateFileKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	text, err := s.ExportWrappedKey(key, "correct-horse", nil)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	// Corrupt the wrapped key ciphertext inside the record
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		t.Fatalf("Failed to parse key file: %v", err)
	}
	wrapped, _ := base64.StdEncoding.DecodeString(record["key"].(string))
	wrapped[0] ^= 0x01
	record["key"] = base64.StdEncoding.EncodeToString(wrapped)
	tampered, _ := json.Marshal(record)

	if _, _, err := s.ImportWrappedKey(string(tampered), "correct-horse"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for tampered record, got: %v", err)
	}
}
