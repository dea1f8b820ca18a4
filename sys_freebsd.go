//go:build freebsd

package vmem

import "golang.org/x/sys/unix"

const hasMapPopulate = false

const reserveExtraFlags = 0

func osCommitFlags(fl Flags, _ int) int {
	f := 0
	if fl.Has(FlagStack) {
		f |= unix.MAP_STACK
	}
	if fl.Has(FlagNoCoreDump) {
		f |= unix.MAP_NOCORE
	}
	if fl.Has(FlagHugePages) {
		f |= unix.MAP_ALIGNED_SUPER
	}
	return f
}

func osFileFlags(fl Flags) int {
	f := 0
	if fl.Has(FlagPopulate) {
		f |= unix.MAP_PREFAULT_READ
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
	}
	return 0, false
}
