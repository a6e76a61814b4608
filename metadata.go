package rubeen

import "time"

// KeyMetadata is the optional descriptive record carried inside a key file.
// None of it is secret; it exists so the key artifact can say which file it
// belongs to and where it came from without bloating the file envelope.
type KeyMetadata struct {
	// Filename is the original name of the protected file
	Filename string `json:"filename,omitempty"`

	// Timestamp is the creation time in epoch milliseconds
	Timestamp int64 `json:"timestamp,omitempty"`

	// Agent identifies the producing application or host
	Agent string `json:"agent,omitempty"`

	// KeyID is the public identifier of the wrapped file key. When
	// artifact binding is enabled it doubles as the additional
	// authenticated data tying the key file to its encrypted file.
	KeyID string `json:"key_id,omitempty"`
}

// NewKeyMetadata builds a metadata record for a file protected now by agent.
func NewKeyMetadata(filename, agent string) *KeyMetadata {
	return &KeyMetadata{
		Filename:  filename,
		Timestamp: time.Now().UTC().UnixMilli(),
		Agent:     agent,
	}
}

// CreatedAt returns the creation timestamp as a time.Time, or the zero
// time when no timestamp was recorded.
func (m *KeyMetadata) CreatedAt() time.Time {
	if m == nil || m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp).UTC()
}
