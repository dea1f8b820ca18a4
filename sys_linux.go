//go:build linux

package vmem

import "golang.org/x/sys/unix"

// Linux prefaults at map time with MAP_POPULATE.
const hasMapPopulate = true

// reserveExtraFlags keeps reservations out of the commit charge.
const reserveExtraFlags = unix.MAP_NORESERVE

func osCommitFlags(fl Flags, pageSize int) int {
	f := 0
	if fl.Has(FlagStack) {
		f |= unix.MAP_STACK
	}
	if fl.Has(FlagPopulate) {
		f |= unix.MAP_POPULATE
	}
	if fl.Has(FlagNoReserve) {
		f |= unix.MAP_NORESERVE
	}
	if fl.Has(FlagHugePages) && pageSize > 0 {
		f |= unix.MAP_HUGETLB | log2(pageSize)<<unix.MAP_HUGE_SHIFT
	}
	return f
}

func osFileFlags(fl Flags) int {
	f := 0
	if fl.Has(FlagPopulate) {
		f |= unix.MAP_POPULATE
	}
	return f
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
	case AdviceHugePage:
		return unix.MADV_HUGEPAGE, true
	case AdviceNoCoreDump:
		return unix.MADV_DONTDUMP, true
	}
	return 0, false
}
