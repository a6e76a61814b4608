package rubeen

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/RubeOS-packages/RubeEn/internal/crypto"
	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

// keyFile is the serialized form of a wrapped file key:
//
//	{
//	  "salt": <base64, 16 bytes>,
//	  "iv":   <base64, 12 bytes>,
//	  "key":  <base64, wrapped key + 16-byte tag>,
//	  "metadata": { "filename": ..., "timestamp": ..., "agent": ..., "key_id": ... }
//	}
//
// The record may additionally be base64-wrapped as a whole for transport
// opacity. That outer encoding carries no security value and import accepts
// both forms.
type keyFile struct {
	Salt     string       `json:"salt"`
	IV       string       `json:"iv"`
	Key      string       `json:"key"`
	Metadata *KeyMetadata `json:"metadata,omitempty"`
}

// wrappedKeySize is the exact ciphertext length of a wrapped 256-bit key.
const wrappedKeySize = misc.KeySize + misc.TagSize

// wrapKey exports the file key to raw bytes, seals them under a fresh
// passphrase-derived wrapping key and serializes the result.
func wrapKey(key *FileKey, passphrase []byte, iterations int, meta *KeyMetadata, obfuscate bool, additionalData []byte) (string, error) {
	salt, err := crypto.RandomBytes(misc.SaltSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", ErrRandomnessUnavailable)
	}

	wrappingKey := crypto.DeriveKey(passphrase, salt, iterations)
	defer memguard.WipeBytes(wrappingKey)

	keyBuffer, err := key.open()
	if err != nil {
		return "", err
	}
	defer keyBuffer.Destroy()

	nonce, wrapped, err := crypto.Seal(wrappingKey, keyBuffer.Bytes(), additionalData)
	if err != nil {
		return "", translateCryptoErr(err)
	}

	if meta == nil {
		meta = &KeyMetadata{}
	}
	meta.KeyID = key.ID()

	record := keyFile{
		Salt:     base64.StdEncoding.EncodeToString(salt),
		IV:       base64.StdEncoding.EncodeToString(nonce),
		Key:      base64.StdEncoding.EncodeToString(wrapped),
		Metadata: meta,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to serialize key file: %w", err)
	}

	if obfuscate {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return string(data), nil
}

// parseKeyFile turns key file text back into its structured record,
// tolerating the optional outer base64 wrapping.
func parseKeyFile(text string) (*keyFile, error) {
	raw := []byte(strings.TrimSpace(text))
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedKeyFile)
	}

	var record keyFile
	if err := json.Unmarshal(raw, &record); err != nil {
		// Not plain JSON; try the obfuscated form
		decoded, decErr := base64.StdEncoding.DecodeString(string(raw))
		if decErr != nil {
			return nil, fmt.Errorf("%w: not JSON or base64", ErrMalformedKeyFile)
		}
		if err = json.Unmarshal(decoded, &record); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKeyFile, err)
		}
	}

	if record.Salt == "" || record.IV == "" || record.Key == "" {
		return nil, fmt.Errorf("%w: missing required field", ErrMalformedKeyFile)
	}
	return &record, nil
}

// ReadKeyFileMetadata parses key file text and returns the plaintext
// metadata block without unwrapping the key, so no passphrase is needed.
// Returns nil metadata for a valid record that carries none.
func ReadKeyFileMetadata(keyFileText string) (*KeyMetadata, error) {
	record, err := parseKeyFile(keyFileText)
	if err != nil {
		return nil, err
	}
	return record.Metadata, nil
}

// unwrapKey parses key file text, derives the wrapping key from the stored
// salt and re-imports the unwrapped raw bytes as a usable key.
func unwrapKey(text string, passphrase []byte, iterations int, additionalData func(meta *KeyMetadata) []byte) (*FileKey, *KeyMetadata, error) {
	record, err := parseKeyFile(text)
	if err != nil {
		return nil, nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil || len(salt) != misc.SaltSize {
		return nil, nil, fmt.Errorf("%w: bad salt", ErrMalformedKeyFile)
	}
	nonce, err := base64.StdEncoding.DecodeString(record.IV)
	if err != nil || len(nonce) != misc.NonceSize {
		return nil, nil, fmt.Errorf("%w: bad iv", ErrMalformedKeyFile)
	}
	wrapped, err := base64.StdEncoding.DecodeString(record.Key)
	if err != nil || len(wrapped) != wrappedKeySize {
		return nil, nil, fmt.Errorf("%w: bad wrapped key", ErrMalformedKeyFile)
	}

	var aad []byte
	if additionalData != nil {
		aad = additionalData(record.Metadata)
	}

	wrappingKey := crypto.DeriveKey(passphrase, salt, iterations)
	defer memguard.WipeBytes(wrappingKey)

	raw, err := crypto.Open(wrappingKey, nonce, wrapped, aad)
	if err != nil {
		return nil, nil, translateCryptoErr(err)
	}

	keyID := ""
	if record.Metadata != nil {
		keyID = record.Metadata.KeyID
	}

	// ImportFileKey wipes raw
	fileKey, err := ImportFileKey(keyID, raw)
	if err != nil {
		return nil, nil, err
	}
	return fileKey, record.Metadata, nil
}
