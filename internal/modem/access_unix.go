//go:build unix

package modem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func checkAccess(path string) error {
	err := unix.Access(path, unix.R_OK|unix.W_OK)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("access %s: %w", path, err)
	}
}
