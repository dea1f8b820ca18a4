// Package vmem mediates access to the virtual-memory subsystem of the host
// operating system. It provides a uniform interface for reserving,
// committing, protecting, splitting and releasing page-granular memory
// regions in the calling process, backed by mmap on POSIX systems (Linux,
// FreeBSD and Darwin) and by VirtualAlloc and file mapping objects on
// Windows. On Darwin the memory-map walk uses task-scoped Mach region
// queries.
//
// A mapping is built with the Options builder and owned by exactly one
// *Mapping handle:
//
//	m, err := vmem.New(vmem.PageSize()).CommitAnonymous(vmem.ProtReadWrite)
//	if err != nil {
//		// ...
//	}
//	defer m.Close()
//	copy(m.Bytes(), data)
//
// Handles can be split at page boundaries, merged back, transitioned between
// protections, locked, advised and flushed. Release happens exactly once per
// byte range no matter how the handle was split.
//
// The package also exposes an iterator over the current process's memory map
// (OpenAreas, Query, QueryRange) and a portable instruction-cache flush for
// JIT-style workloads (CommitExecutable, FlushICache).
package vmem
