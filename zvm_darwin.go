//go:build darwin

package vmem

// Mach and libproc bindings for the region walk, in the libSystem trampoline
// convention golang.org/x/sys uses for its own darwin syscalls.

import (
	"syscall"
	"unsafe"
)

//go:linkname syscall_syscall syscall.syscall
func syscall_syscall(fn, a1, a2, a3 uintptr) (r1, r2 uintptr, err syscall.Errno)

//go:linkname syscall_syscall6 syscall.syscall6
func syscall_syscall6(fn, a1, a2, a3, a4, a5, a6 uintptr) (r1, r2 uintptr, err syscall.Errno)

var libc_task_self_trap_trampoline_addr uintptr

//go:cgo_import_dynamic libc_task_self_trap task_self_trap "/usr/lib/libSystem.B.dylib"

var libc_mach_vm_region_recurse_trampoline_addr uintptr

//go:cgo_import_dynamic libc_mach_vm_region_recurse mach_vm_region_recurse "/usr/lib/libSystem.B.dylib"

var libc_proc_regionfilename_trampoline_addr uintptr

//go:cgo_import_dynamic libc_proc_regionfilename proc_regionfilename "/usr/lib/libSystem.B.dylib"

// taskSelf returns the send right to the current task's port.
func taskSelf() uint32 {
	r1, _, _ := syscall_syscall(libc_task_self_trap_trampoline_addr, 0, 0, 0)
	return uint32(r1)
}

// machVMRegionRecurse wraps mach_vm_region_recurse; the return value is a
// kern_return_t, not an errno.
func machVMRegionRecurse(task uint32, addr *uint64, size *uint64, depth *uint32, info *vmRegionSubmapShortInfo64, cnt *uint32) int32 {
	r1, _, _ := syscall_syscall6(
		libc_mach_vm_region_recurse_trampoline_addr,
		uintptr(task),
		uintptr(unsafe.Pointer(addr)),
		uintptr(unsafe.Pointer(size)),
		uintptr(unsafe.Pointer(depth)),
		uintptr(unsafe.Pointer(info)),
		uintptr(unsafe.Pointer(cnt)),
	)
	return int32(r1)
}

// procRegionFilename returns the length of the path written to buf, or zero
// when the region has no backing file.
func procRegionFilename(pid int, addr uint64, buf []byte) int {
	r1, _, _ := syscall_syscall6(
		libc_proc_regionfilename_trampoline_addr,
		uintptr(pid),
		uintptr(addr),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0, 0,
	)
	return int(r1)
}
