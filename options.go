package vmem

import (
	"os"
)

// Options collects the parameters of a mapping request. Methods chain;
// validation happens in the terminal operations, first failing check wins.
type Options struct {
	length   int
	addrHint uintptr
	flags    Flags
	pageSize int
}

// New starts a mapping request for length bytes. The length is rounded up
// to a multiple of the base page size.
func New(length int) *Options {
	return &Options{length: length}
}

// WithAddress requests the mapping be placed at addr, which must be a
// multiple of the allocation granularity. The address is a hint, not a
// demand: the kernel may place the mapping elsewhere rather than replace
// existing mappings.
func (o *Options) WithAddress(addr uintptr) *Options {
	o.addrHint = addr
	return o
}

// WithFlags adds flags to the request.
func (o *Options) WithFlags(flags Flags) *Options {
	o.flags |= flags
	return o
}

// WithPageSize requests a specific page size, which must be reported by
// SupportedPageSizes. Meaningful together with FlagHugePages.
func (o *Options) WithPageSize(size int) *Options {
	o.pageSize = size
	return o
}

// validate runs the request checks shared by every terminal operation:
// geometry, length, hint alignment, then flag consistency. Returns the
// rounded length.
func (o *Options) validate(kind mapKind) (int, error) {
	g, err := geometry()
	if err != nil {
		return 0, osError("page geometry query failed", err)
	}
	if o.length <= 0 {
		return 0, errCodef(ErrInvalidSize, "mapping length %d must be positive", o.length)
	}
	length := alignUp(o.length, g.pageSize)
	if o.addrHint != 0 && !aligned(o.addrHint, g.granularity) {
		return 0, errCodef(ErrUnalignedAddress, "address hint %#x is not aligned to the allocation granularity %d", o.addrHint, g.granularity)
	}
	if kind == kindFile && o.flags.Has(FlagStack) {
		return 0, errCode(ErrUnsupportedFlag, "a stack mapping cannot be file-backed")
	}
	if o.flags.Has(FlagCopyOnWrite) && o.flags.Has(FlagShared) {
		return 0, errCode(ErrUnsupportedFlag, "COPY_ON_WRITE and SHARED are mutually exclusive")
	}
	if o.flags.Has(FlagHugePages) {
		if o.pageSize == 0 || o.pageSize <= g.pageSize {
			return 0, errCode(ErrUnsupportedPageSize, "HUGE_PAGES requires WithPageSize larger than the base page")
		}
		if !contains(g.pageSizes, o.pageSize) {
			return 0, errCodef(ErrUnsupportedPageSize, "page size %d is not offered by the host", o.pageSize)
		}
		length = alignUp(length, o.pageSize)
	} else if o.pageSize != 0 && o.pageSize != g.pageSize {
		return 0, errCodef(ErrUnsupportedPageSize, "page size %d requires the HUGE_PAGES flag", o.pageSize)
	}
	return length, nil
}

func (o *Options) kind() mapKind {
	if o.flags.Has(FlagStack) {
		return kindStack
	}
	return kindAnonymous
}

// Reserve claims the address range without backing it. The resulting
// mapping is in the reserved state with no protection; accessing it faults
// until Commit is called.
func (o *Options) Reserve() (*Mapping, error) {
	length, err := o.validate(o.kind())
	if err != nil {
		return nil, err
	}
	base, err := sysReserve(o.addrHint, length, o.flags)
	if err != nil {
		return nil, err
	}
	return o.newMapping(base, length, StateReserved, ProtNone, o.kind(), SharePrivate, nil, 0, 0), nil
}

// CommitAnonymous maps zero-initialized pages at the given protection.
func (o *Options) CommitAnonymous(prot Protection) (*Mapping, error) {
	length, err := o.validate(o.kind())
	if err != nil {
		return nil, err
	}
	if prot.Has(ProtExec) && !o.flags.Has(FlagJIT) {
		return nil, errCode(ErrInvalidProtection, "executable mappings require CommitExecutable or the JIT flag")
	}
	if err := checkProtRepresentable(prot); err != nil {
		return nil, err
	}
	sharing := SharePrivate
	if o.flags.Has(FlagShared) {
		sharing = ShareShared
	}
	base, err := sysCommit(o.addrHint, length, prot, o.flags, o.pageSize, false)
	if err != nil {
		return nil, err
	}
	m := o.newMapping(base, length, StateCommitted, prot, o.kind(), sharing, nil, 0, 0)
	if err := o.finishCommit(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CommitFile maps length bytes of f starting at offset. The file is
// borrowed and must outlive the mapping. offset must be a multiple of the
// allocation granularity; the file must extend to offset+length. Writable
// shared mappings require a file opened for writing.
func (o *Options) CommitFile(f *os.File, offset int64, prot Protection) (*Mapping, error) {
	length, err := o.validate(kindFile)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errCode(ErrBadState, "CommitFile requires an open file")
	}
	if offset < 0 || !aligned(uintptr(offset), AllocationGranularity()) {
		return nil, errCodef(ErrInvalidOffset, "file offset %d is not a multiple of the allocation granularity", offset)
	}
	if prot.Has(ProtExec) && !o.flags.Has(FlagJIT) {
		return nil, errCode(ErrInvalidProtection, "executable mappings require CommitExecutable or the JIT flag")
	}
	if err := checkProtRepresentable(prot); err != nil {
		return nil, err
	}
	sharing := SharePrivate
	if o.flags.Has(FlagShared) {
		sharing = ShareShared
	}
	if sharing == ShareShared && prot.Has(ProtWrite) && !fileWritable(f) {
		return nil, errCode(ErrPermissionDenied, "shared writable mapping requires a writable file")
	}
	st, err := f.Stat()
	if err != nil {
		return nil, osError("stat of backing file failed", err)
	}
	if st.Size() < offset+int64(length) {
		return nil, errCodef(ErrFileTooSmall, "file ends at %d, mapping needs %d", st.Size(), offset+int64(length))
	}

	base, section, err := sysCommitFile(o.addrHint, length, prot, o.flags, f, offset, sharing)
	if err != nil {
		return nil, err
	}
	m := o.newMapping(base, length, StateCommitted, prot, kindFile, sharing, f, offset, section)
	if err := o.finishCommit(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CommitExecutable maps a private anonymous region, copies code into it,
// flushes the instruction cache across the range and transitions the pages
// to read+execute. This is the safe channel for small JIT payloads; at no
// point is the region writable and executable at once.
func (o *Options) CommitExecutable(code []byte) (*Mapping, error) {
	if o.flags.Has(FlagShared) {
		return nil, errCode(ErrUnsupportedFlag, "executable mappings are private")
	}
	length, err := o.validate(o.kind())
	if err != nil {
		return nil, err
	}
	if len(code) > length {
		return nil, errCodef(ErrInvalidSize, "payload of %d bytes exceeds mapping of %d", len(code), length)
	}
	base, err := sysCommit(o.addrHint, length, ProtReadWrite, o.flags, o.pageSize, false)
	if err != nil {
		return nil, err
	}
	m := o.newMapping(base, length, StateCommitted, ProtReadWrite, o.kind(), SharePrivate, nil, 0, 0)
	copy(m.Bytes(), code)
	// Mid-operation failure rolls back to no mapping at all.
	if err := m.MakeExec(); err != nil {
		m.Close()
		return nil, err
	}
	if err := o.finishCommit(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CommitJIT maps a private anonymous region that is simultaneously writable
// and executable. The request must carry FlagJIT. On Darwin the mapping is
// tagged for JIT use, which requires the process to hold the JIT
// entitlement; on arm64 the caller is additionally responsible for the
// per-thread write-protection toggles the platform demands.
func (o *Options) CommitJIT() (*Mapping, error) {
	if !o.flags.Has(FlagJIT) {
		return nil, errCode(ErrUnsupportedFlag, "CommitJIT requires the JIT flag")
	}
	if o.flags.Has(FlagShared) {
		return nil, errCode(ErrUnsupportedFlag, "executable mappings are private")
	}
	length, err := o.validate(o.kind())
	if err != nil {
		return nil, err
	}
	prot := ProtRead | ProtWrite | ProtExec
	base, err := sysCommit(o.addrHint, length, prot, o.flags, o.pageSize, false)
	if err != nil {
		return nil, err
	}
	m := o.newMapping(base, length, StateCommitted, prot, o.kind(), SharePrivate, nil, 0, 0)
	if err := o.finishCommit(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (o *Options) newMapping(base uintptr, length int, state MappingState, prot Protection, kind mapKind, sharing Sharing, f *os.File, off int64, section uintptr) *Mapping {
	a := &allocation{
		base:       base,
		length:     length,
		section:    section,
		fileBacked: kind == kindFile,
	}
	a.refs.Store(1)
	m := &Mapping{
		base:     base,
		length:   length,
		state:    state,
		prot:     prot,
		kind:     kind,
		sharing:  sharing,
		flags:    o.flags,
		pageSize: o.pageSize,
		file:     f,
		fileOff:  off,
		alloc:    a,
	}
	return m
}

// finishCommit applies the post-map flags that are separate OS calls. A
// failing LOCKED request tears the mapping down again; advisory flags never
// fail.
func (o *Options) finishCommit(m *Mapping) error {
	if o.flags.Has(FlagTransparentHugePages) {
		_ = sysAdvise(m.base, m.length, AdviceHugePage)
	}
	if o.flags.Has(FlagNoCoreDump) {
		_ = sysAdvise(m.base, m.length, AdviceNoCoreDump)
	}
	if o.flags.Has(FlagLocked) {
		if err := m.Lock(); err != nil {
			m.Close()
			return err
		}
	}
	return nil
}
