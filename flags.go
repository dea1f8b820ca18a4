package vmem

import "strings"

// Protection is the access protection of a mapping, a set drawn from
// read, write and execute.
type Protection uint8

// Protection bits
const (
	// ProtNone makes the pages inaccessible
	ProtNone Protection = 0

	// ProtRead permits reads
	ProtRead Protection = 1 << 0

	// ProtWrite permits writes
	ProtWrite Protection = 1 << 1

	// ProtExec permits instruction fetch
	ProtExec Protection = 1 << 2
)

// Common combinations
const (
	ProtReadWrite = ProtRead | ProtWrite
	ProtReadExec  = ProtRead | ProtExec
)

// Has reports whether all bits of p2 are set in p.
func (p Protection) Has(p2 Protection) bool {
	return p&p2 == p2
}

func (p Protection) String() string {
	if p == ProtNone {
		return "---"
	}
	var sb strings.Builder
	for _, b := range [...]struct {
		bit Protection
		c   byte
	}{{ProtRead, 'r'}, {ProtWrite, 'w'}, {ProtExec, 'x'}} {
		if p.Has(b.bit) {
			sb.WriteByte(b.c)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// Flags configures a mapping request. On platforms where a flag has no
// corresponding kernel facility it is a successful no-op, never an error.
type Flags uint32

// Mapping flags
const (
	// FlagCopyOnWrite selects private copy-on-write sharing for
	// file-backed mappings; writes are never carried to the file
	FlagCopyOnWrite Flags = 1 << 0

	// FlagShared makes writes visible to the file and to other shared
	// mappers
	FlagShared Flags = 1 << 1

	// FlagStack hints that the region is used as a stack. No-op on
	// Windows and Darwin.
	FlagStack Flags = 1 << 2

	// FlagPopulate prefaults the pages at map time. Emulated with a
	// willneed advice where the kernel has no map-time flag.
	FlagPopulate Flags = 1 << 3

	// FlagNoReserve skips swap-space reservation. No-op on Windows and
	// FreeBSD.
	FlagNoReserve Flags = 1 << 4

	// FlagHugePages requests pages of the size given to
	// Options.WithPageSize from the kernel's huge-page pool. On Linux and
	// FreeBSD it applies to anonymous mappings only; file-backed mappings
	// there are mapped with base pages.
	FlagHugePages Flags = 1 << 5

	// FlagTransparentHugePages advises the kernel to coalesce the region
	// to huge pages. Linux only; no-op elsewhere.
	FlagTransparentHugePages Flags = 1 << 6

	// FlagLocked locks the pages on commit, as if Lock had been called
	FlagLocked Flags = 1 << 7

	// FlagNoCoreDump excludes the region from core dumps. No-op on
	// Windows and Darwin, and for file-backed mappings on FreeBSD.
	FlagNoCoreDump Flags = 1 << 8

	// FlagJIT opts in to simultaneously writable and executable pages.
	// Required by CommitJIT and by any protection carrying write+execute.
	// On Darwin the mapping is tagged MAP_JIT, which needs the
	// per-process JIT entitlement.
	FlagJIT Flags = 1 << 9
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Sharing describes how writes to a mapping propagate.
type Sharing uint8

const (
	// SharePrivate keeps modifications invisible outside this mapping
	SharePrivate Sharing = iota

	// ShareCopyOnWrite is reported by the area iterator for regions the
	// kernel marks as not-yet-copied private views. Requests use
	// SharePrivate; the distinction only exists in kernel bookkeeping.
	ShareCopyOnWrite

	// ShareShared carries writes to the backing object and to other
	// shared mappers
	ShareShared
)

func (s Sharing) String() string {
	switch s {
	case SharePrivate:
		return "private"
	case ShareCopyOnWrite:
		return "copy-on-write"
	case ShareShared:
		return "shared"
	}
	return "unknown"
}

// Advice conveys an access-pattern hint to the kernel. Advice the platform
// does not support is a successful no-op.
type Advice int

const (
	// AdviceNormal resets to the default access pattern
	AdviceNormal Advice = iota

	// AdviceSequential expects accesses in ascending address order
	AdviceSequential

	// AdviceRandom expects accesses in no particular order
	AdviceRandom

	// AdviceWillNeed expects access in the near future
	AdviceWillNeed

	// AdviceDontNeed does not expect access in the near future
	AdviceDontNeed

	// AdviceHugePage advises transparent huge-page coalescing
	AdviceHugePage

	// AdviceNoCoreDump excludes the range from core dumps
	AdviceNoCoreDump
)

// mapKind is the backing of a mapping.
type mapKind uint8

const (
	kindAnonymous mapKind = iota
	kindFile
	kindStack
)

// MappingState is the lifecycle state of a mapping.
type MappingState uint8

const (
	// StateReserved means the range is claimed in the process's VM table
	// but not backed; access faults
	StateReserved MappingState = iota

	// StateCommitted means the range is backed and accessible per its
	// protection
	StateCommitted

	// StateReleased means the range has been returned to the OS; terminal
	StateReleased
)

func (s MappingState) String() string {
	switch s {
	case StateReserved:
		return "reserved"
	case StateCommitted:
		return "committed"
	case StateReleased:
		return "released"
	}
	return "unknown"
}
