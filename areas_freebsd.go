//go:build freebsd

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// kinfo_vmentry field offsets and bits; the records are variable-length,
// kve_structsize first.
const (
	kveStructsize = 0
	kveStart      = 8
	kveEnd        = 16
	kveOffset     = 24
	kveFlags      = 44
	kveProtection = 56
	kvePath       = 136

	kvmeProtRead  = 1 << 0
	kvmeProtWrite = 1 << 1
	kvmeProtExec  = 1 << 2
	kvmeFlagCOW   = 1 << 0
)

func openAreas() (*Areas, error) {
	raw, err := unix.SysctlRaw("kern.proc.vmmap", unix.Getpid())
	if err != nil {
		return nil, osError("kern.proc.vmmap query failed", err)
	}
	return &Areas{raw: raw}, nil
}

func (a *Areas) next() (Area, bool, error) {
	if a.off+4 > len(a.raw) {
		return Area{}, false, nil
	}
	rec := a.raw[a.off:]
	size := int(*(*uint32)(unsafe.Pointer(&rec[kveStructsize])))
	if size <= 0 || a.off+size > len(a.raw) {
		return Area{}, false, nil
	}
	a.off += size

	start := *(*uint64)(unsafe.Pointer(&rec[kveStart]))
	end := *(*uint64)(unsafe.Pointer(&rec[kveEnd]))
	offset := *(*uint64)(unsafe.Pointer(&rec[kveOffset]))
	flags := *(*int32)(unsafe.Pointer(&rec[kveFlags]))
	kprot := *(*int32)(unsafe.Pointer(&rec[kveProtection]))

	var prot Protection
	if kprot&kvmeProtRead != 0 {
		prot |= ProtRead
	}
	if kprot&kvmeProtWrite != 0 {
		prot |= ProtWrite
	}
	if kprot&kvmeProtExec != 0 {
		prot |= ProtExec
	}

	sharing := SharePrivate
	if flags&kvmeFlagCOW != 0 {
		sharing = ShareCopyOnWrite
	}

	var path string
	if size > kvePath {
		raw := rec[kvePath:size]
		if n := cstrlen(raw); n > 0 {
			path = string(raw[:n])
		}
	}

	return Area{
		Base:       uintptr(start),
		Length:     int(end - start),
		Protection: prot,
		Sharing:    sharing,
		Path:       path,
		Offset:     int64(offset),
	}, true, nil
}

func cstrlen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// queryDirect has no kernel shortcut here; Query rides the walk.
func queryDirect(uintptr) (*Area, bool, error) {
	return nil, false, nil
}
