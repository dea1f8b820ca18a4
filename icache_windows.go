//go:build windows

package vmem

import "golang.org/x/sys/windows"

var procFlushInstructionCache = modkernel32.NewProc("FlushInstructionCache")

// flushICache delegates to the kernel, which knows the architecture's
// maintenance requirements (a no-op on x86, a real flush on arm64).
func flushICache(base uintptr, n int) error {
	if n == 0 {
		return nil
	}
	r, _, err := procFlushInstructionCache.Call(
		uintptr(windows.CurrentProcess()),
		base,
		uintptr(n),
	)
	if r == 0 {
		return osError("instruction cache flush failed", err)
	}
	return nil
}
