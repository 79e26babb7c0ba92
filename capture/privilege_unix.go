//go:build unix

package capture

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isPermissionErrno(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}
