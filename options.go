package rubeen

import (
	"fmt"

	"github.com/RubeOS-packages/RubeEn/audit"
	"github.com/RubeOS-packages/RubeEn/internal/misc"
)

// Options configures a Sealer.
//
// The zero value is usable: protocol-standard iteration count, plain JSON
// key files, no artifact binding, no audit logging. Iteration count is a
// wire-compatibility parameter — both sides of an exchange must agree on
// it, so it should only be raised for closed deployments.
type Options struct {
	// Iterations overrides the PBKDF2 iteration count. Zero means the
	// protocol default (100000). Values below the default are rejected;
	// weakening the work factor is never a valid configuration.
	Iterations int `json:"iterations,omitempty"`

	// Agent names the producing application in key file metadata,
	// e.g. "RubeOS/1.4". Empty leaves the field out.
	Agent string `json:"agent,omitempty"`

	// ObfuscateKeyFiles base64-wraps the whole key file JSON so the
	// artifact is opaque at a glance. This is a transport convenience,
	// not a security boundary: import accepts both forms.
	ObfuscateKeyFiles bool `json:"obfuscate_key_files,omitempty"`

	// BindArtifacts feeds the file key's ID to the cipher as additional
	// authenticated data in both the file envelope and the key wrap,
	// cryptographically tying the two artifacts together. Both sides
	// must enable it; bound artifacts are not readable by plain readers.
	BindArtifacts bool `json:"bind_artifacts,omitempty"`

	// EnableMemoryLock requests mlock of process memory so key material
	// is not swapped to disk. Best effort; failure degrades, not aborts.
	EnableMemoryLock bool `json:"enable_memory_lock,omitempty"`

	// AuditConfig enables audit logging of envelope operations. Only
	// operation names, sizes, key IDs and failure kinds are logged.
	AuditConfig *audit.Config `json:"audit,omitempty"`
}

// Validate checks option consistency before a Sealer is built.
func (o *Options) Validate() error {
	if o.Iterations != 0 && o.Iterations < misc.PBKDF2Iterations {
		return fmt.Errorf("iteration count %d below protocol minimum %d", o.Iterations, misc.PBKDF2Iterations)
	}
	return nil
}

// iterations resolves the effective PBKDF2 iteration count.
func (o *Options) iterations() int {
	if o.Iterations > 0 {
		return o.Iterations
	}
	return misc.PBKDF2Iterations
}
