//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package mem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/RubeOS-packages/RubeEn/internal/debug"
)

func lockMemoryPlatform() (ProtectionLevel, error) {
	err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			// Permission denied but still continue
			debug.Print("mlockall denied (EPERM), degrading to partial protection\n")
			return ProtectionPartial, nil
		} else if errors.Is(err, unix.ENOSYS) {
			// Function not implemented on this system
			debug.Print("mlockall not implemented (ENOSYS), degrading to partial protection\n")
			return ProtectionPartial, nil
		}
		return ProtectionNone, fmt.Errorf("failed to lock memory: %w", err)
	}
	debug.Print("mlockall succeeded, full memory protection\n")
	return ProtectionFull, nil
}

func unlockMemoryPlatform() error {
	err := unix.Munlockall()
	if err != nil {
		// Non-critical error, just report it
		return fmt.Errorf("failed to unlock memory: %w", err)
	}
	return nil
}
