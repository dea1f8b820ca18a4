package vmem

import (
	"os"
	"sync/atomic"
	"unsafe"
)

// allocation is the OS-level allocation a Mapping belongs to. Splitting a
// mapping produces two handles that share one allocation; the address space
// is returned to the OS when the last handle sharing it closes. On POSIX
// every piece unmaps its own sub-range and the final release is a no-op; on
// Windows sub-ranges can only be decommitted, so the record carries the
// allocation base and the section handle until the end.
type allocation struct {
	base       uintptr
	length     int
	refs       atomic.Int32
	section    uintptr // Windows file-mapping handle; zero elsewhere
	fileBacked bool
}

// Mapping owns exactly one contiguous range of address space. The zero value
// is not usable; mappings are produced by the Options builder and by
// SplitOff. A Mapping must not be copied and must not be mutated from
// multiple goroutines without external synchronization; reads and writes
// through Bytes follow the usual data-race rules.
type Mapping struct {
	base     uintptr
	length   int
	state    MappingState
	prot     Protection
	kind     mapKind
	sharing  Sharing
	flags    Flags
	pageSize int // non-zero when a specific page size was requested
	file     *os.File
	fileOff  int64
	locked   bool
	alloc    *allocation
}

// Base returns the start address of the owned range.
func (m *Mapping) Base() uintptr { return m.base }

// Len returns the length of the owned range in bytes.
func (m *Mapping) Len() int { return m.length }

// State returns the lifecycle state.
func (m *Mapping) State() MappingState { return m.state }

// Protection returns the current protection. Reserved mappings report
// ProtNone.
func (m *Mapping) Protection() Protection { return m.prot }

// Sharing returns the sharing mode the mapping was requested with.
func (m *Mapping) Sharing() Sharing { return m.sharing }

// Flags returns the flags the mapping was requested with.
func (m *Mapping) Flags() Flags { return m.flags }

// PageSize returns the page size the mapping was requested with, or zero
// when the default base page size is in use.
func (m *Mapping) PageSize() int { return m.pageSize }

// IsAnonymous reports whether the mapping has no file backing.
func (m *Mapping) IsAnonymous() bool { return m.kind != kindFile }

// File returns the borrowed backing file, or nil for anonymous mappings.
// The file must outlive the mapping.
func (m *Mapping) File() *os.File { return m.file }

// FileOffset returns the offset within the backing file at which this
// mapping starts. Zero for anonymous mappings.
func (m *Mapping) FileOffset() int64 { return m.fileOff }

// IsLocked reports whether the pages are pinned in physical memory.
func (m *Mapping) IsLocked() bool { return m.locked }

// Bytes returns the mapped range as a byte slice, or nil if the mapping is
// not committed. Writing through the slice requires ProtWrite; for
// file-backed mappings the caller must ensure the file is not truncated
// below FileOffset+Len for the life of the mapping, a precondition this
// package cannot enforce across processes.
func (m *Mapping) Bytes() []byte {
	if m.state != StateCommitted {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(m.base)), m.length)
}

// Protect transitions a committed mapping to the given protection. On
// failure the prior protection remains in effect. Write+execute requires the
// mapping to have been requested with FlagJIT.
func (m *Mapping) Protect(prot Protection) error {
	if err := m.needCommitted("protect"); err != nil {
		return err
	}
	if prot.Has(ProtWrite|ProtExec) && !m.flags.Has(FlagJIT) {
		return errCode(ErrInvalidProtection, "write+execute requires the JIT flag")
	}
	if err := checkProtRepresentable(prot); err != nil {
		return err
	}
	cow := m.kind == kindFile && m.sharing == SharePrivate
	if err := sysProtect(m.base, m.length, prot, cow); err != nil {
		return err
	}
	m.prot = prot
	return nil
}

// MakeNone makes the mapping inaccessible.
func (m *Mapping) MakeNone() error { return m.Protect(ProtNone) }

// MakeReadOnly makes the mapping read-only.
func (m *Mapping) MakeReadOnly() error { return m.Protect(ProtRead) }

// MakeReadWrite makes the mapping readable and writable.
func (m *Mapping) MakeReadWrite() error { return m.Protect(ProtReadWrite) }

// MakeExec flushes the instruction cache over the range and then makes the
// mapping readable and executable, so code written while the mapping was
// writable becomes visible to the fetch path.
func (m *Mapping) MakeExec() error {
	if err := m.FlushICache(0, m.length); err != nil {
		return err
	}
	return m.Protect(ProtReadExec)
}

// Commit backs a reserved mapping with zero-initialized pages at the given
// protection.
func (m *Mapping) Commit(prot Protection) error {
	if err := m.live("commit"); err != nil {
		return err
	}
	if m.state != StateReserved {
		return errCode(ErrBadState, "commit requires a reserved mapping")
	}
	if prot.Has(ProtWrite|ProtExec) && !m.flags.Has(FlagJIT) {
		return errCode(ErrInvalidProtection, "write+execute requires the JIT flag")
	}
	if err := checkProtRepresentable(prot); err != nil {
		return err
	}
	if _, err := sysCommit(m.base, m.length, prot, m.flags, m.pageSize, true); err != nil {
		return err
	}
	m.state = StateCommitted
	m.prot = prot
	return nil
}

// Decommit drops the physical pages behind an anonymous committed mapping
// and returns it to the reserved state. The contents are lost; access faults
// until Commit is called again.
func (m *Mapping) Decommit() error {
	if err := m.needCommitted("decommit"); err != nil {
		return err
	}
	if m.kind == kindFile {
		return errCode(ErrBadState, "decommit requires an anonymous mapping")
	}
	if m.locked {
		if err := m.Unlock(); err != nil {
			return err
		}
	}
	if err := sysDecommit(m.base, m.length); err != nil {
		return err
	}
	m.state = StateReserved
	m.prot = ProtNone
	return nil
}

// SplitOff splits the mapping at offset. The receiver keeps [0, offset) and
// the returned mapping owns [offset, Len). offset must be a multiple of the
// base page size and strictly inside the range. Both pieces retain the kind,
// sharing, flags and state of the original and each carries release
// responsibility for its own sub-range.
func (m *Mapping) SplitOff(offset int) (*Mapping, error) {
	if err := m.live("split"); err != nil {
		return nil, err
	}
	if offset <= 0 || offset >= m.length {
		return nil, errCodef(ErrInvalidSize, "split offset %d outside (0, %d)", offset, m.length)
	}
	if !aligned(uintptr(offset), PageSize()) {
		return nil, errCodef(ErrUnalignedAddress, "split offset %d is not page-aligned", offset)
	}

	high := &Mapping{
		base:     m.base + uintptr(offset),
		length:   m.length - offset,
		state:    m.state,
		prot:     m.prot,
		kind:     m.kind,
		sharing:  m.sharing,
		flags:    m.flags,
		pageSize: m.pageSize,
		file:     m.file,
		locked:   m.locked,
		alloc:    m.alloc,
	}
	if m.kind == kindFile {
		high.fileOff = m.fileOff + int64(offset)
	}
	m.alloc.refs.Add(1)
	m.length = offset
	return high, nil
}

// Merge reabsorbs other into m. It succeeds only if other is the immediate
// high neighbor produced by splitting the same allocation and all attributes
// match; unrelated mappings are never coalesced. On success other is
// consumed and must not be used again.
func (m *Mapping) Merge(other *Mapping) error {
	if err := m.live("merge"); err != nil {
		return err
	}
	if other == nil {
		return errCode(ErrUnrelatedMapping, "merge with nil mapping")
	}
	if err := other.live("merge"); err != nil {
		return err
	}
	if other.alloc != m.alloc {
		return errCode(ErrUnrelatedMapping, "mappings were not produced by the same split")
	}
	if other.base != m.base+uintptr(m.length) {
		return errCode(ErrUnrelatedMapping, "mapping is not the immediate high neighbor")
	}
	if other.kind != m.kind || other.sharing != m.sharing || other.flags != m.flags ||
		other.state != m.state || other.prot != m.prot || other.locked != m.locked {
		return errCode(ErrUnrelatedMapping, "mapping attributes differ")
	}

	m.length += other.length
	other.state = StateReleased
	m.alloc.refs.Add(-1)
	return nil
}

// Flush writes modified pages in [off, off+n) back to the file. Valid only
// for shared file-backed mappings. The call blocks until the kernel reports
// the pages written.
func (m *Mapping) Flush(off, n int) error {
	return m.flush(off, n, true)
}

// FlushAsync schedules a flush of [off, off+n) and returns without waiting.
// No durability is guaranteed at return.
func (m *Mapping) FlushAsync(off, n int) error {
	return m.flush(off, n, false)
}

func (m *Mapping) flush(off, n int, sync bool) error {
	if err := m.needCommitted("flush"); err != nil {
		return err
	}
	if m.kind != kindFile || m.sharing != ShareShared {
		return errCode(ErrBadState, "flush requires a shared file-backed mapping")
	}
	if err := m.checkRange(off, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return sysFlush(m.base+uintptr(off), n, m.file, sync)
}

// FlushICache invalidates the instruction cache over [off, off+n). Callers
// that write code into an executable mapping must call this before executing
// it; on architectures with coherent instruction and data caches it is free.
func (m *Mapping) FlushICache(off, n int) error {
	if err := m.needCommitted("icache flush"); err != nil {
		return err
	}
	if err := m.checkRange(off, n); err != nil {
		return err
	}
	return flushICache(m.base+uintptr(off), n)
}

// Lock pins the physical pages so access causes no page faults. May fail
// with a permission or quota error.
func (m *Mapping) Lock() error {
	if err := m.needCommitted("lock"); err != nil {
		return err
	}
	if err := sysLock(m.base, m.length); err != nil {
		return err
	}
	m.locked = true
	return nil
}

// Unlock allows the OS to swap out the pages again.
func (m *Mapping) Unlock() error {
	if err := m.needCommitted("unlock"); err != nil {
		return err
	}
	if err := sysUnlock(m.base, m.length); err != nil {
		return err
	}
	m.locked = false
	return nil
}

// Advise conveys an access-pattern hint for the range. Unsupported advice on
// the host platform is a successful no-op.
func (m *Mapping) Advise(adv Advice) error {
	if err := m.needCommitted("advise"); err != nil {
		return err
	}
	return sysAdvise(m.base, m.length, adv)
}

// Close releases the owned range back to the OS. It is idempotent; the
// range is released exactly once no matter how often Close is called or how
// the original mapping was split.
func (m *Mapping) Close() error {
	if m.state == StateReleased {
		return nil
	}
	m.state = StateReleased
	err := sysReleasePartial(m.base, m.length, m.alloc.fileBacked)
	if m.alloc.refs.Add(-1) == 0 {
		if err2 := sysReleaseAll(m.alloc); err == nil {
			err = err2
		}
	}
	return err
}

func (m *Mapping) live(op string) error {
	if m.state == StateReleased {
		return errCodef(ErrReleased, "%s on released mapping", op)
	}
	return nil
}

func (m *Mapping) needCommitted(op string) error {
	if err := m.live(op); err != nil {
		return err
	}
	if m.state != StateCommitted {
		return errCodef(ErrBadState, "%s requires a committed mapping", op)
	}
	return nil
}

func (m *Mapping) checkRange(off, n int) error {
	if off < 0 || n < 0 || off+n > m.length {
		return errCodef(ErrInvalidSize, "range [%d, %d) outside mapping of %d bytes", off, off+n, m.length)
	}
	return nil
}
