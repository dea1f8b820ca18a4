//go:build darwin

package vmem

import "golang.org/x/sys/unix"

const hasMapPopulate = false

const reserveExtraFlags = unix.MAP_NORESERVE

// mapJIT tags the mapping for JIT use; required for writable+executable
// pages under the hardened runtime. The process needs the JIT entitlement.
const mapJIT = 0x800

func osCommitFlags(fl Flags, _ int) int {
	f := 0
	if fl.Has(FlagNoReserve) {
		f |= unix.MAP_NORESERVE
	}
	if fl.Has(FlagJIT) {
		f |= mapJIT
	}
	// STACK and HUGE_PAGES have no mmap channel here; huge pages are
	// already rejected by validation because the supported set holds
	// only the base page.
	return f
}

func osFileFlags(Flags) int {
	return 0
}

func osAdvice(adv Advice) (int, bool) {
	switch adv {
	case AdviceNormal:
		return unix.MADV_NORMAL, true
	case AdviceSequential:
		return unix.MADV_SEQUENTIAL, true
	case AdviceRandom:
		return unix.MADV_RANDOM, true
	case AdviceWillNeed:
		return unix.MADV_WILLNEED, true
	case AdviceDontNeed:
		return unix.MADV_DONTNEED, true
	}
	return 0, false
}
