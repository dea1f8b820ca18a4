//go:build windows

package vmem

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// normalizeCode maps win32 error values onto the error taxonomy. Errors with
// no close match stay ErrBackendFailure.
func normalizeCode(err error) (ErrorCode, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case windows.ERROR_ACCESS_DENIED:
		return ErrPermissionDenied, true
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_OUTOFMEMORY,
		windows.ERROR_COMMITMENT_LIMIT, windows.ERROR_WORKING_SET_QUOTA:
		return ErrOutOfMemory, true
	}
	return 0, false
}
