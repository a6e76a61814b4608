//go:build windows

package mem

func lockMemoryPlatform() (ProtectionLevel, error) {
	// VirtualLock exists on Windows but has working-set size limitations,
	// so only partial protection is claimed
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	// Nothing to unlock
	return nil
}
