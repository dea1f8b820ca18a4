//go:build darwin

package vmem

import (
	"golang.org/x/sys/unix"
)

func fallbackPageSize() int {
	return unix.Getpagesize()
}

// queryGeometry returns the base page size. Darwin offers superpages only on
// x86-64 and only through a dedicated mmap channel, so the supported set is
// just the base page.
func queryGeometry() (pageGeometry, error) {
	page := unix.Getpagesize()
	return pageGeometry{
		pageSize:    page,
		granularity: page,
	}, nil
}
