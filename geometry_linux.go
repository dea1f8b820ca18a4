//go:build linux

package vmem

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func fallbackPageSize() int {
	return unix.Getpagesize()
}

// queryGeometry reads the base page size from the kernel and enumerates the
// configured huge-page pools from sysfs. A missing or unreadable hugepages
// directory means no huge-page support, not an error.
func queryGeometry() (pageGeometry, error) {
	page := unix.Getpagesize()
	g := pageGeometry{
		pageSize:    page,
		granularity: page,
	}

	entries, err := os.ReadDir("/sys/kernel/mm/hugepages")
	if err != nil {
		return g, nil
	}
	for _, e := range entries {
		// Entries are named hugepages-<n>kB.
		name := e.Name()
		name = strings.TrimPrefix(name, "hugepages-")
		name = strings.TrimSuffix(name, "kB")
		kb, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		g.pageSizes = append(g.pageSizes, kb*1024)
	}
	return g, nil
}
