//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemInfo       = modkernel32.NewProc("GetSystemInfo")
	procGetLargePageMinimum = modkernel32.NewProc("GetLargePageMinimum")
)

// systemInfo mirrors SYSTEM_INFO.
type systemInfo struct {
	processorArchitecture     uint16
	reserved                  uint16
	pageSize                  uint32
	minimumApplicationAddress uintptr
	maximumApplicationAddress uintptr
	activeProcessorMask       uintptr
	numberOfProcessors        uint32
	processorType             uint32
	allocationGranularity     uint32
	processorLevel            uint16
	processorRevision         uint16
}

func getSystemInfo() systemInfo {
	var si systemInfo
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
	return si
}

func fallbackPageSize() int {
	return int(getSystemInfo().pageSize)
}

// queryGeometry reads the page size and allocation granularity from
// GetSystemInfo. The large-page minimum is zero when the processor or the
// process privileges do not support large pages.
func queryGeometry() (pageGeometry, error) {
	si := getSystemInfo()
	g := pageGeometry{
		pageSize:    int(si.pageSize),
		granularity: int(si.allocationGranularity),
	}
	if large, _, _ := procGetLargePageMinimum.Call(); large != 0 {
		g.pageSizes = append(g.pageSizes, int(large))
	}
	return g, nil
}
