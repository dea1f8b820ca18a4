//go:build linux || darwin || freebsd

package vmem

import (
	"math/bits"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// memSlice views a raw range as a byte slice for the x/sys wrappers that
// take one. The wrappers only read the pointer and length.
func memSlice(base uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
}

func protToUnix(prot Protection) int {
	p := unix.PROT_NONE
	if prot.Has(ProtRead) {
		p |= unix.PROT_READ
	}
	if prot.Has(ProtWrite) {
		p |= unix.PROT_WRITE
	}
	if prot.Has(ProtExec) {
		p |= unix.PROT_EXEC
	}
	return p
}

// checkProtRepresentable accepts every combination: POSIX mmap takes the
// three bits verbatim.
func checkProtRepresentable(Protection) error {
	return nil
}

// sysReserve claims address space with an inaccessible anonymous mapping.
// Classical POSIX has no reserve/commit split; PROT_NONE plus no-reserve
// keeps the range from consuming commit charge where the kernel supports it.
func sysReserve(hint uintptr, length int, _ Flags) (uintptr, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON | reserveExtraFlags
	addr, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), uintptr(length), unix.PROT_NONE, flags)
	if err != nil {
		return 0, osError("reserve failed", err)
	}
	return uintptr(addr), nil
}

// sysCommit maps zero-initialized anonymous pages. With fixed set it remaps
// over an existing reservation at hint; otherwise hint is only a placement
// suggestion.
func sysCommit(hint uintptr, length int, prot Protection, fl Flags, pageSize int, fixed bool) (uintptr, error) {
	flags := unix.MAP_ANON
	if fl.Has(FlagShared) && !fixed {
		flags |= unix.MAP_SHARED
	} else {
		flags |= unix.MAP_PRIVATE
	}
	if fixed {
		flags |= unix.MAP_FIXED
	}
	flags |= osCommitFlags(fl, pageSize)

	addr, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), uintptr(length), protToUnix(prot), flags)
	if err != nil {
		return 0, osError("anonymous commit failed", err)
	}
	base := uintptr(addr)
	if fl.Has(FlagPopulate) && !hasMapPopulate {
		_ = unix.Madvise(memSlice(base, length), unix.MADV_WILLNEED)
	}
	return base, nil
}

// sysCommitFile maps length bytes of f at offset. The section return is
// only meaningful on Windows and is always zero here.
func sysCommitFile(hint uintptr, length int, prot Protection, fl Flags, f *os.File, offset int64, sharing Sharing) (uintptr, uintptr, error) {
	flags := unix.MAP_PRIVATE
	if sharing == ShareShared {
		flags = unix.MAP_SHARED
	}
	flags |= osFileFlags(fl)

	addr, err := unix.MmapPtr(int(f.Fd()), offset, unsafe.Pointer(hint), uintptr(length), protToUnix(prot), flags)
	if err != nil {
		return 0, 0, osError("file mapping failed", err)
	}
	base := uintptr(addr)
	if fl.Has(FlagPopulate) && !hasMapPopulate {
		_ = unix.Madvise(memSlice(base, length), unix.MADV_WILLNEED)
	}
	return base, 0, nil
}

func sysProtect(base uintptr, length int, prot Protection, _ bool) error {
	if err := unix.Mprotect(memSlice(base, length), protToUnix(prot)); err != nil {
		return osError("protection change failed", err)
	}
	return nil
}

// sysDecommit drops the pages behind the range and returns it to a
// reservation by remapping it inaccessible in place.
func sysDecommit(base uintptr, length int) error {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON | unix.MAP_FIXED | reserveExtraFlags
	_, err := unix.MmapPtr(-1, 0, unsafe.Pointer(base), uintptr(length), unix.PROT_NONE, flags)
	if err != nil {
		return osError("decommit failed", err)
	}
	return nil
}

// sysReleasePartial unmaps the piece's own sub-range. POSIX munmap splits
// and shrinks mappings freely, so every piece releases independently.
func sysReleasePartial(base uintptr, length int, _ bool) error {
	if err := unix.MunmapPtr(unsafe.Pointer(base), uintptr(length)); err != nil {
		return osError("unmap failed", err)
	}
	return nil
}

// sysReleaseAll has nothing left to do once every piece is unmapped.
func sysReleaseAll(*allocation) error {
	return nil
}

func sysFlush(base uintptr, length int, _ *os.File, sync bool) error {
	flags := unix.MS_ASYNC
	if sync {
		flags = unix.MS_SYNC
	}
	if err := unix.Msync(memSlice(base, length), flags); err != nil {
		return osError("msync failed", err)
	}
	return nil
}

func sysLock(base uintptr, length int) error {
	if err := unix.Mlock(memSlice(base, length)); err != nil {
		return osError("mlock failed", err)
	}
	return nil
}

func sysUnlock(base uintptr, length int) error {
	if err := unix.Munlock(memSlice(base, length)); err != nil {
		return osError("munlock failed", err)
	}
	return nil
}

func sysAdvise(base uintptr, length int, adv Advice) error {
	madv, ok := osAdvice(adv)
	if !ok {
		// Advice the platform has no word for is a successful no-op.
		return nil
	}
	if err := unix.Madvise(memSlice(base, length), madv); err != nil {
		return osError("madvise failed", err)
	}
	return nil
}

func fileWritable(f *os.File) bool {
	fl, err := unix.FcntlInt(f.Fd(), unix.F_GETFL, 0)
	if err != nil {
		return false
	}
	return fl&unix.O_ACCMODE != unix.O_RDONLY
}

func log2(n int) int {
	return bits.Len(uint(n)) - 1
}
