//go:build darwin

package vmem

import (
	"os"
	"unsafe"
)

// Mach constants for the region walk.
const (
	kernSuccess        = 0
	kernInvalidAddress = 1

	vmProtRead  = 1 << 0
	vmProtWrite = 1 << 1
	vmProtExec  = 1 << 2

	smCOW           = 1
	smShared        = 4
	smTrueShared    = 5
	smSharedAliased = 7
)

// vmRegionSubmapShortInfo64 mirrors vm_region_submap_short_info_64, which
// the kernel lays out with 4-byte packing; the 64-bit offset is therefore
// split into two words here.
type vmRegionSubmapShortInfo64 struct {
	Protection     int32
	MaxProtection  int32
	Inheritance    uint32
	OffsetLo       uint32
	OffsetHi       uint32
	UserTag        uint32
	RefCount       uint32
	ShadowDepth    uint16
	ExternalPager  uint8
	ShareMode      uint8
	IsSubmap       int32
	Behavior       int32
	ObjectID       uint32
	UserWiredCount uint16
	pad            uint16
}

func openAreas() (*Areas, error) {
	return &Areas{task: taskSelf()}, nil
}

// next performs the recursive task-region walk: submaps are descended into
// by deepening the cursor rather than reported as regions themselves.
func (a *Areas) next() (Area, bool, error) {
	for {
		var (
			size uint64
			info vmRegionSubmapShortInfo64
		)
		cnt := uint32(unsafe.Sizeof(info) / 4)
		kr := machVMRegionRecurse(a.task, &a.addr, &size, &a.depth, &info, &cnt)
		switch kr {
		case kernInvalidAddress:
			return Area{}, false, nil
		case kernSuccess:
		default:
			return Area{}, false, errCodef(ErrBackendFailure, "mach_vm_region_recurse returned %d", kr)
		}

		if info.IsSubmap != 0 {
			a.depth++
			continue
		}

		var prot Protection
		if info.Protection&vmProtRead != 0 {
			prot |= ProtRead
		}
		if info.Protection&vmProtWrite != 0 {
			prot |= ProtWrite
		}
		if info.Protection&vmProtExec != 0 {
			prot |= ProtExec
		}

		sharing := SharePrivate
		switch info.ShareMode {
		case smCOW:
			sharing = ShareCopyOnWrite
		case smShared, smTrueShared, smSharedAliased:
			sharing = ShareShared
		}

		area := Area{
			Base:       uintptr(a.addr),
			Length:     int(size),
			Protection: prot,
			Sharing:    sharing,
		}

		var buf [1024]byte
		if n := procRegionFilename(os.Getpid(), a.addr, buf[:]); n > 0 {
			area.Path = string(buf[:n])
			area.Offset = int64(uint64(info.OffsetHi)<<32 | uint64(info.OffsetLo))
		}

		a.addr += size
		return area, true, nil
	}
}

// queryDirect has no kernel shortcut here; Query rides the walk.
func queryDirect(uintptr) (*Area, bool, error) {
	return nil, false, nil
}
