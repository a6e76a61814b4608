package rubeen

import "errors"

var (
	// ErrMalformedEnvelope indicates a file envelope shorter than its
	// mandatory header or otherwise structurally invalid. Detected before
	// any cipher operation is attempted.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMalformedKeyFile indicates a key file that could not be parsed
	// into the expected structure.
	ErrMalformedKeyFile = errors.New("malformed key file")

	// ErrAuthenticationFailed indicates a wrong passphrase or tampered
	// ciphertext. The two causes are deliberately not distinguished.
	ErrAuthenticationFailed = errors.New("decryption failed: wrong passphrase or corrupted data")

	// ErrRandomnessUnavailable indicates the platform's secure random
	// source could not be read. Fatal; the operation is aborted.
	ErrRandomnessUnavailable = errors.New("secure random source unavailable")

	// ErrWeakKey indicates imported raw key material that is degenerate
	// (wrong length, constant bytes, near-zero entropy).
	ErrWeakKey = errors.New("key material is weak or malformed")
)
