package misc

// Protocol constants. These are wire-format parameters: changing any of
// them breaks compatibility with existing artifacts.
const (
	// PBKDF2Iterations is the PBKDF2-SHA256 work factor
	PBKDF2Iterations = 100000

	KeySize   = 32 // AES-256
	SaltSize  = 16
	NonceSize = 12 // GCM standard nonce
	TagSize   = 16 // GCM tag
)
