//go:build windows

package vmem

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procMapViewOfFileEx       = modkernel32.NewProc("MapViewOfFileEx")
	procPrefetchVirtualMemory = modkernel32.NewProc("PrefetchVirtualMemory")
)

// Section and view constants missing from x/sys/windows.
const (
	secLargePages     = 0x80000000
	fileMapLargePages = 0x20000000
)

// win32MemoryRangeEntry mirrors WIN32_MEMORY_RANGE_ENTRY.
type win32MemoryRangeEntry struct {
	virtualAddress uintptr
	numberOfBytes  uintptr
}

// protToWin translates a protection set to a PAGE_* value. cow selects the
// write-copy flavors for private file-backed views. Write without read has
// no page protection on Windows.
func protToWin(prot Protection, cow bool) (uint32, error) {
	switch {
	case prot == ProtNone:
		return windows.PAGE_NOACCESS, nil
	case prot == ProtRead:
		return windows.PAGE_READONLY, nil
	case prot == ProtReadWrite:
		if cow {
			return windows.PAGE_WRITECOPY, nil
		}
		return windows.PAGE_READWRITE, nil
	case prot == ProtReadExec:
		return windows.PAGE_EXECUTE_READ, nil
	case prot == ProtRead|ProtWrite|ProtExec:
		if cow {
			return windows.PAGE_EXECUTE_WRITECOPY, nil
		}
		return windows.PAGE_EXECUTE_READWRITE, nil
	case prot == ProtExec:
		return windows.PAGE_EXECUTE, nil
	}
	return 0, errCodef(ErrInvalidProtection, "protection %s is not representable on Windows", prot)
}

func checkProtRepresentable(prot Protection) error {
	_, err := protToWin(prot, false)
	return err
}

func sysReserve(hint uintptr, length int, _ Flags) (uintptr, error) {
	base, err := windows.VirtualAlloc(hint, uintptr(length), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil && hint != 0 {
		// The hint range was occupied; place the reservation anywhere.
		base, err = windows.VirtualAlloc(0, uintptr(length), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	}
	if err != nil {
		return 0, osError("reserve failed", err)
	}
	return base, nil
}

func sysCommit(hint uintptr, length int, prot Protection, fl Flags, _ int, fixed bool) (uintptr, error) {
	winProt, err := protToWin(prot, false)
	if err != nil {
		return 0, err
	}
	if fixed {
		// Committing inside an existing reservation.
		base, err := windows.VirtualAlloc(hint, uintptr(length), windows.MEM_COMMIT, winProt)
		if err != nil {
			return 0, osError("commit failed", err)
		}
		return base, nil
	}

	allocType := uint32(windows.MEM_RESERVE | windows.MEM_COMMIT)
	if fl.Has(FlagHugePages) {
		allocType |= windows.MEM_LARGE_PAGES
	}
	base, err := windows.VirtualAlloc(hint, uintptr(length), allocType, winProt)
	if err != nil && hint != 0 {
		base, err = windows.VirtualAlloc(0, uintptr(length), allocType, winProt)
	}
	if err != nil {
		return 0, osError("anonymous commit failed", err)
	}
	if fl.Has(FlagPopulate) {
		prefetch(base, length)
	}
	return base, nil
}

// sectionProbe checks whether a file mapping object can be created with the
// given protection; Windows will not let a view's protection exceed what the
// section was created with, so the section is created as wide as the file
// handle permits and views narrow from there.
func sectionProbe(f *os.File, prot uint32) bool {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, prot, 0, 0, nil)
	if err != nil || h == 0 {
		return false
	}
	windows.CloseHandle(h)
	return true
}

func sysCommitFile(hint uintptr, length int, prot Protection, fl Flags, f *os.File, offset int64, sharing Sharing) (uintptr, uintptr, error) {
	canWrite := sectionProbe(f, windows.PAGE_READWRITE)
	canExec := sectionProbe(f, windows.PAGE_EXECUTE_READ)

	access := uint32(windows.FILE_MAP_READ)
	var sectionProt uint32
	switch {
	case canWrite && canExec:
		access |= windows.FILE_MAP_WRITE | windows.FILE_MAP_EXECUTE
		sectionProt = windows.PAGE_EXECUTE_READWRITE
	case canWrite:
		access |= windows.FILE_MAP_WRITE
		sectionProt = windows.PAGE_READWRITE
	case canExec:
		access |= windows.FILE_MAP_EXECUTE
		sectionProt = windows.PAGE_EXECUTE_READ
	default:
		sectionProt = windows.PAGE_READONLY
	}
	if fl.Has(FlagHugePages) {
		access |= fileMapLargePages
		sectionProt |= secLargePages
	}

	section, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, sectionProt, 0, 0, nil)
	if err != nil {
		return 0, 0, osError("file mapping object creation failed", err)
	}

	offHigh := uint32(uint64(offset) >> 32)
	offLow := uint32(uint64(offset))
	addr, _, callErr := procMapViewOfFileEx.Call(
		uintptr(section),
		uintptr(access),
		uintptr(offHigh),
		uintptr(offLow),
		uintptr(length),
		hint,
	)
	if addr == 0 && hint != 0 {
		addr, _, callErr = procMapViewOfFileEx.Call(
			uintptr(section), uintptr(access), uintptr(offHigh), uintptr(offLow), uintptr(length), 0,
		)
	}
	if addr == 0 {
		windows.CloseHandle(section)
		return 0, 0, osError("view mapping failed", callErr)
	}

	// Views come in at the section's width; narrow to the request.
	cow := sharing == SharePrivate && prot.Has(ProtWrite)
	winProt, err := protToWin(prot, cow)
	if err != nil {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(section)
		return 0, 0, err
	}
	var old uint32
	if err := windows.VirtualProtect(addr, uintptr(length), winProt, &old); err != nil {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(section)
		return 0, 0, osError("view protection failed", err)
	}
	if fl.Has(FlagPopulate) {
		prefetch(addr, length)
	}
	return addr, uintptr(section), nil
}

func sysProtect(base uintptr, length int, prot Protection, cow bool) error {
	winProt, err := protToWin(prot, cow && prot.Has(ProtWrite))
	if err != nil {
		return err
	}
	var old uint32
	if err := windows.VirtualProtect(base, uintptr(length), winProt, &old); err != nil {
		return osError("protection change failed", err)
	}
	return nil
}

func sysDecommit(base uintptr, length int) error {
	if err := windows.VirtualFree(base, uintptr(length), windows.MEM_DECOMMIT); err != nil {
		return osError("decommit failed", err)
	}
	return nil
}

// sysReleasePartial can only decommit a sub-range: MEM_RELEASE and
// UnmapViewOfFile accept nothing but the allocation base for the whole
// allocation. The address space itself is returned in sysReleaseAll when the
// last piece sharing the allocation closes.
func sysReleasePartial(base uintptr, length int, fileBacked bool) error {
	if fileBacked {
		return nil
	}
	if err := windows.VirtualFree(base, uintptr(length), windows.MEM_DECOMMIT); err != nil {
		return osError("decommit failed", err)
	}
	return nil
}

func sysReleaseAll(a *allocation) error {
	if a.fileBacked {
		err := windows.UnmapViewOfFile(a.base)
		if a.section != 0 {
			windows.CloseHandle(windows.Handle(a.section))
		}
		if err != nil {
			return osError("view unmap failed", err)
		}
		return nil
	}
	if err := windows.VirtualFree(a.base, 0, windows.MEM_RELEASE); err != nil {
		return osError("release failed", err)
	}
	return nil
}

func sysFlush(base uintptr, length int, f *os.File, sync bool) error {
	if err := windows.FlushViewOfFile(base, uintptr(length)); err != nil {
		return osError("view flush failed", err)
	}
	if sync && f != nil {
		if err := windows.FlushFileBuffers(windows.Handle(f.Fd())); err != nil {
			return osError("file flush failed", err)
		}
	}
	return nil
}

func sysLock(base uintptr, length int) error {
	if err := windows.VirtualLock(base, uintptr(length)); err != nil {
		return osError("lock failed", err)
	}
	return nil
}

func sysUnlock(base uintptr, length int) error {
	if err := windows.VirtualUnlock(base, uintptr(length)); err != nil {
		return osError("unlock failed", err)
	}
	return nil
}

// sysAdvise maps willneed onto PrefetchVirtualMemory; Windows has no channel
// for the remaining advice, which is therefore a successful no-op.
func sysAdvise(base uintptr, length int, adv Advice) error {
	if adv == AdviceWillNeed {
		prefetch(base, length)
	}
	return nil
}

func prefetch(base uintptr, length int) {
	entry := win32MemoryRangeEntry{virtualAddress: base, numberOfBytes: uintptr(length)}
	// Best effort; absent before Windows 8 and irrelevant to correctness.
	_, _, _ = procPrefetchVirtualMemory.Call(
		uintptr(windows.CurrentProcess()),
		1,
		uintptr(unsafe.Pointer(&entry)),
		0,
	)
}

// fileWritable probes the handle's access rights through the section
// machinery, the only reliable reflection of the open mode.
func fileWritable(f *os.File) bool {
	return sectionProbe(f, windows.PAGE_READWRITE)
}
