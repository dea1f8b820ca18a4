//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var procGetMappedFileNameW = modkernel32.NewProc("K32GetMappedFileNameW")

// Region types VirtualQuery reports; not wrapped by x/sys.
const (
	memPrivate = 0x20000
	memMapped  = 0x40000
	memImage   = 0x1000000
)

func openAreas() (*Areas, error) {
	return &Areas{}, nil
}

func (a *Areas) next() (Area, bool, error) {
	for {
		var mbi windows.MemoryBasicInformation
		err := windows.VirtualQuery(a.waddr, &mbi, unsafe.Sizeof(mbi))
		if err != nil {
			// Walking past the highest application address ends the
			// sequence.
			return Area{}, false, nil
		}
		next := mbi.BaseAddress + mbi.RegionSize
		if next <= a.waddr {
			return Area{}, false, nil
		}
		a.waddr = next

		if mbi.State&windows.MEM_COMMIT == 0 {
			continue
		}
		return areaFromInfo(&mbi), true, nil
	}
}

func areaFromInfo(mbi *windows.MemoryBasicInformation) Area {
	prot, cow := protFromWin(mbi.Protect)

	var sharing Sharing
	switch {
	case mbi.Type&memPrivate != 0:
		sharing = SharePrivate
	case cow:
		sharing = ShareCopyOnWrite
	default:
		sharing = ShareShared
	}

	area := Area{
		Base:       mbi.BaseAddress,
		Length:     int(mbi.RegionSize),
		Protection: prot,
		Sharing:    sharing,
	}

	if mbi.Type&(memMapped|memImage) != 0 {
		var name [windows.MAX_PATH]uint16
		n, _, _ := procGetMappedFileNameW.Call(
			uintptr(windows.CurrentProcess()),
			mbi.BaseAddress,
			uintptr(unsafe.Pointer(&name[0])),
			uintptr(len(name)),
		)
		if n != 0 {
			area.Path = windows.UTF16ToString(name[:n])
			area.Offset = int64(mbi.BaseAddress - mbi.AllocationBase)
		}
	}
	return area
}

func protFromWin(p uint32) (Protection, bool) {
	switch p &^ (windows.PAGE_GUARD | windows.PAGE_NOCACHE | windows.PAGE_WRITECOMBINE) {
	case windows.PAGE_EXECUTE:
		return ProtExec, false
	case windows.PAGE_EXECUTE_READ:
		return ProtReadExec, false
	case windows.PAGE_EXECUTE_READWRITE:
		return ProtRead | ProtWrite | ProtExec, false
	case windows.PAGE_EXECUTE_WRITECOPY:
		return ProtRead | ProtWrite | ProtExec, true
	case windows.PAGE_READONLY:
		return ProtRead, false
	case windows.PAGE_READWRITE:
		return ProtReadWrite, false
	case windows.PAGE_WRITECOPY:
		return ProtReadWrite, true
	}
	return ProtNone, false
}

// queryDirect is the short-circuit VirtualQuery lookup.
func queryDirect(addr uintptr) (*Area, bool, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return nil, true, nil
	}
	if mbi.State&windows.MEM_COMMIT == 0 {
		return nil, true, nil
	}
	area := areaFromInfo(&mbi)
	return &area, true, nil
}
