package vmem

import (
	"bufio"
	"os"
)

// Area is an immutable snapshot of one region of the process's memory map.
// Descriptors carry no rights over the region; the underlying mapping may
// change or vanish at any time after the snapshot.
type Area struct {
	// Base is the start address of the region.
	Base uintptr

	// Length is the size of the region in bytes.
	Length int

	// Protection is the protection the region was observed with.
	Protection Protection

	// Sharing is the observed share mode.
	Sharing Sharing

	// Path names the backing file for file-backed regions; empty for
	// anonymous regions. The spelling is the kernel's (on Windows a
	// device path).
	Path string

	// Offset is the offset into Path at which the region starts, where
	// the kernel reports one.
	Offset int64
}

// Contains reports whether addr falls inside the area.
func (a *Area) Contains(addr uintptr) bool {
	return addr >= a.Base && addr-a.Base < uintptr(a.Length)
}

// End returns the first address past the area.
func (a *Area) End() uintptr {
	return a.Base + uintptr(a.Length)
}

// Areas is a lazy, single-pass walk over the committed regions of the
// calling process, in ascending base-address order. The kernel's view is
// reported verbatim: adjacent regions with identical attributes are not
// coalesced. The walk is restartable only by opening a new one, since the
// underlying map may have changed.
//
//	areas, err := vmem.OpenAreas()
//	if err != nil { ... }
//	defer areas.Close()
//	for areas.Next() {
//		a := areas.Area()
//		...
//	}
//	if err := areas.Err(); err != nil { ... }
type Areas struct {
	cur  Area
	err  error
	done bool

	// Linux: the open maps file.
	f  *os.File
	sc *bufio.Scanner

	// FreeBSD: raw kinfo_vmentry records and the parse cursor.
	raw []byte
	off int

	// Darwin: task port and walk cursor (only used on Darwin, zero
	// elsewhere).
	task  uint32
	addr  uint64
	depth uint32

	// Windows: VirtualQuery cursor.
	waddr uintptr
}

// OpenAreas starts a walk over the current process's memory map.
func OpenAreas() (*Areas, error) {
	return openAreas()
}

// Next advances to the next region. It returns false when the walk is
// exhausted or an error occurred; Err separates the two.
func (a *Areas) Next() bool {
	if a.done || a.err != nil {
		return false
	}
	area, ok, err := a.next()
	if err != nil {
		a.err = err
		return false
	}
	if !ok {
		a.done = true
		return false
	}
	a.cur = area
	return true
}

// Area returns the region most recently read by Next.
func (a *Areas) Area() Area {
	return a.cur
}

// Err returns the first error encountered during the walk.
func (a *Areas) Err() error {
	return a.err
}

// Close releases the walk's OS resources. Safe to call at any point.
func (a *Areas) Close() error {
	a.done = true
	if a.f != nil {
		err := a.f.Close()
		a.f = nil
		return err
	}
	return nil
}

// Query returns the area containing addr, or nil if no committed region
// contains it. On Windows this is a direct lookup; elsewhere it walks the
// map and stops as soon as the walk passes addr.
func Query(addr uintptr) (*Area, error) {
	if area, handled, err := queryDirect(addr); handled {
		return area, err
	}
	areas, err := OpenAreas()
	if err != nil {
		return nil, err
	}
	defer areas.Close()
	for areas.Next() {
		area := areas.Area()
		if area.Contains(addr) {
			return &area, nil
		}
		if area.Base > addr {
			break
		}
	}
	return nil, areas.Err()
}

// QueryRange returns the areas intersecting [base, base+length), in
// ascending order.
func QueryRange(base uintptr, length int) ([]Area, error) {
	if length <= 0 {
		return nil, errCodef(ErrInvalidSize, "query length %d must be positive", length)
	}
	end := base + uintptr(length)
	areas, err := OpenAreas()
	if err != nil {
		return nil, err
	}
	defer areas.Close()
	var out []Area
	for areas.Next() {
		area := areas.Area()
		if area.End() <= base {
			continue
		}
		if area.Base >= end {
			break
		}
		out = append(out, area)
	}
	return out, areas.Err()
}
