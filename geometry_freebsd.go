//go:build freebsd

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func fallbackPageSize() int {
	return unix.Getpagesize()
}

// queryGeometry reads hw.pagesizes, which reports every page size the MMU
// offers as an array of uint64, zero-terminated short of its capacity.
func queryGeometry() (pageGeometry, error) {
	page := unix.Getpagesize()
	g := pageGeometry{
		pageSize:    page,
		granularity: page,
	}

	raw, err := unix.SysctlRaw("hw.pagesizes")
	if err != nil {
		return g, nil
	}
	for off := 0; off+8 <= len(raw); off += 8 {
		size := *(*uint64)(unsafe.Pointer(&raw[off]))
		if size == 0 {
			break
		}
		if int(size) != page {
			g.pageSizes = append(g.pageSizes, int(size))
		}
	}
	return g, nil
}
