package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	pass := []byte("correct-horse")
	salt, err := RandomBytes(misc.SaltSize)
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	k1 := DeriveKey(pass, salt, 0)
	k2 := DeriveKey(pass, salt, 0)

	if len(k1) != misc.KeySize {
		t.Errorf("Expected %d-byte key, got %d", misc.KeySize, len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("Derivation is not deterministic for identical inputs")
	}

	// Different salt must give a different key
	salt2, _ := RandomBytes(misc.SaltSize)
	k3 := DeriveKey(pass, salt2, 0)
	if bytes.Equal(k1, k3) {
		t.Error("Different salts produced the same key")
	}

	// Different iteration count must give a different key
	k4 := DeriveKey(pass, salt, 1000)
	if bytes.Equal(k1, k4) {
		t.Error("Different iteration counts produced the same key")
	}
}

func TestNormalizePassphrase(t *testing.T) {
	// "é" composed (U+00E9) vs decomposed (U+0065 U+0301) must normalize
	// to the same bytes.
	composed := NormalizePassphrase("café")
	decomposed := NormalizePassphrase("café")

	if !bytes.Equal(composed, decomposed) {
		t.Errorf("NFC normalization mismatch: %x vs %x", composed, decomposed)
	}

	// Plain ASCII passes through unchanged
	if !bytes.Equal(NormalizePassphrase("correct-horse"), []byte("correct-horse")) {
		t.Error("ASCII passphrase was altered by normalization")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := RandomBytes(misc.KeySize)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	testCases := [][]byte{
		[]byte("Hello, World!"),
		[]byte("Special chars: !@#$%^&*()_+{}|"),
		[]byte("Unicode: こんにちは"),
		make([]byte, 10241), // Large data > 10KB
		{},                  // Empty plaintext
	}

	for i, tc := range testCases {
		nonce, ciphertext, err := Seal(key, tc, nil)
		if err != nil {
			t.Fatalf("Case %d: failed to seal: %v", i, err)
		}
		if len(nonce) != misc.NonceSize {
			t.Errorf("Case %d: expected %d-byte nonce, got %d", i, misc.NonceSize, len(nonce))
		}
		if len(ciphertext) != len(tc)+misc.TagSize {
			t.Errorf("Case %d: expected ciphertext length %d, got %d", i, len(tc)+misc.TagSize, len(ciphertext))
		}

		plaintext, err := Open(key, nonce, ciphertext, nil)
		if err != nil {
			t.Fatalf("Case %d: failed to open: %v", i, err)
		}
		if !bytes.Equal(plaintext, tc) {
			t.Errorf("Case %d: plaintext mismatch", i)
		}
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	key, _ := RandomBytes(misc.KeySize)
	nonce, ciphertext, err := Seal(key, []byte("sensitive payload"), nil)
	if err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	for i := range ciphertext {
		tampered := make([]byte, len(ciphertext))
		copy(tampered, ciphertext)
		tampered[i] ^= 0x01

		if _, err := Open(key, nonce, tampered, nil); !errors.Is(err, ErrAuthentication) {
			t.Errorf("Flipping bit in byte %d did not fail authentication: %v", i, err)
		}
	}

	// Wrong key
	wrongKey, _ := RandomBytes(misc.KeySize)
	if _, err := Open(wrongKey, nonce, ciphertext, nil); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Wrong key did not fail authentication: %v", err)
	}
}

func TestAdditionalDataBinding(t *testing.T) {
	key, _ := RandomBytes(misc.KeySize)
	aad := []byte("artifact-id-1234")

	nonce, ciphertext, err := Seal(key, []byte("bound payload"), aad)
	if err != nil {
		t.Fatalf("Failed to seal with AAD: %v", err)
	}

	if _, err := Open(key, nonce, ciphertext, aad); err != nil {
		t.Fatalf("Failed to open with matching AAD: %v", err)
	}

	if _, err := Open(key, nonce, ciphertext, []byte("other-id")); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Mismatched AAD did not fail authentication: %v", err)
	}
	if _, err := Open(key, nonce, ciphertext, nil); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Missing AAD did not fail authentication: %v", err)
	}
}

func TestSealWithPassphraseRoundTrip(t *testing.T) {
	data := []byte("secret with passphrase derivation")
	pass := NormalizePassphrase("correct-horse")

	sealed, err := SealWithPassphrase(data, pass, 0, nil)
	if err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}
	if len(sealed) != misc.SaltSize+misc.NonceSize+len(data)+misc.TagSize {
		t.Errorf("Unexpected sealed length %d", len(sealed))
	}

	plaintext, err := OpenWithPassphrase(sealed, pass, 0, nil)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if !bytes.Equal(plaintext, data) {
		t.Error("Round trip mismatch")
	}

	// Wrong passphrase fails authentication
	if _, err := OpenWithPassphrase(sealed, NormalizePassphrase("wrong-horse"), 0, nil); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Wrong passphrase did not fail authentication: %v", err)
	}

	// Two seals of the same data differ (fresh salt and nonce)
	sealed2, err := SealWithPassphrase(data, pass, 0, nil)
	if err != nil {
		t.Fatalf("Failed to seal again: %v", err)
	}
	if bytes.Equal(sealed, sealed2) {
		t.Error("Two independent seals produced identical output")
	}
}

func TestIsWeakKey(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
		weak bool
	}{
		{"too short", make([]byte, 16), true},
		{"all zeros", make([]byte, 32), true},
		{"all same byte", bytes.Repeat([]byte{0xAB}, 32), true},
		{"low variety", append(bytes.Repeat([]byte{1, 2}, 15), 3, 4), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWeakKey(tt.key); got != tt.weak {
				t.Errorf("IsWeakKey() = %v, want %v", got, tt.weak)
			}
		})
	}

	random, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	if IsWeakKey(random) {
		t.Error("Random 32-byte key flagged as weak")
	}
}
