//go:build linux || darwin || freebsd

package vmem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// normalizeCode maps POSIX errno values onto the error taxonomy. Errors with
// no close match stay ErrBackendFailure.
func normalizeCode(err error) (ErrorCode, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case unix.EACCES, unix.EPERM:
		return ErrPermissionDenied, true
	case unix.ENOMEM, unix.EAGAIN:
		// mlock over RLIMIT_MEMLOCK reports EAGAIN on some kernels and
		// ENOMEM on others; both are resource exhaustion here.
		return ErrOutOfMemory, true
	case unix.ENXIO:
		return ErrFileTooSmall, true
	}
	return 0, false
}
