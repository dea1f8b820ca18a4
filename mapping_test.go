package vmem

import (
	"bytes"
	"errors"
	"testing"
)

func TestAnonymousReadWrite(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	b := m.Bytes()
	if b == nil {
		t.Fatal("no view on committed mapping")
	}
	for i := range b {
		if b[i] != 0 {
			t.Fatalf("byte %d not zero-initialized", i)
		}
		b[i] = 0xA5
	}
	for i := range b {
		if b[i] != 0xA5 {
			t.Fatalf("byte %d lost its value", i)
		}
	}
}

func TestReserveCommitDecommit(t *testing.T) {
	m, err := New(2 * PageSize()).Reserve()
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.State() != StateReserved {
		t.Fatalf("state %v after reserve", m.State())
	}
	if m.Protection() != ProtNone {
		t.Fatalf("protection %v on reservation", m.Protection())
	}
	if m.Bytes() != nil {
		t.Fatal("reservation must not expose a view")
	}

	if err := m.Commit(ProtReadWrite); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateCommitted {
		t.Fatalf("state %v after commit", m.State())
	}
	b := m.Bytes()
	if b == nil {
		t.Fatal("no view after commit")
	}
	b[0] = 0xFF

	if err := m.Decommit(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateReserved {
		t.Fatalf("state %v after decommit", m.State())
	}
	if m.Bytes() != nil {
		t.Fatal("decommitted mapping must not expose a view")
	}

	// Recommitting yields fresh zero pages.
	if err := m.Commit(ProtReadWrite); err != nil {
		t.Fatal(err)
	}
	if got := m.Bytes()[0]; got != 0 {
		t.Fatalf("recommitted page not zeroed, got %#x", got)
	}
}

func TestCommitOnCommitted(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	wantCode(t, m.Commit(ProtRead), ErrBadState)
}

func TestDecommitOnReservation(t *testing.T) {
	m, err := New(PageSize()).Reserve()
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	wantCode(t, m.Decommit(), ErrBadState)
}

func TestProtectTransitions(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.MakeReadOnly(); err != nil {
		t.Fatal(err)
	}
	if m.Protection() != ProtRead {
		t.Fatalf("protection %v after MakeReadOnly", m.Protection())
	}
	if got := m.Bytes()[0]; got != 0 {
		t.Fatalf("read through read-only view got %#x", got)
	}

	if err := m.MakeNone(); err != nil {
		t.Fatal(err)
	}
	if m.Protection() != ProtNone {
		t.Fatalf("protection %v after MakeNone", m.Protection())
	}

	if err := m.MakeReadWrite(); err != nil {
		t.Fatal(err)
	}
	m.Bytes()[0] = 1
}

func TestProtectRejectsWXWithoutJIT(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	wantCode(t, m.Protect(ProtRead|ProtWrite|ProtExec), ErrInvalidProtection)
}

func TestSplitMerge(t *testing.T) {
	page := PageSize()
	m, err := New(4 * page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	base := m.Base()

	high, err := m.SplitOff(2 * page)
	if err != nil {
		t.Fatal(err)
	}
	if m.Base() != base || m.Len() != 2*page {
		t.Fatalf("low piece [%#x, +%d), want [%#x, +%d)", m.Base(), m.Len(), base, 2*page)
	}
	if high.Base() != base+uintptr(2*page) || high.Len() != 2*page {
		t.Fatalf("high piece [%#x, +%d), want [%#x, +%d)", high.Base(), high.Len(), base+uintptr(2*page), 2*page)
	}

	// Both halves stay writable through their own views.
	m.Bytes()[0] = 0x11
	high.Bytes()[0] = 0x22

	if err := m.Merge(high); err != nil {
		t.Fatal(err)
	}
	if m.Base() != base || m.Len() != 4*page {
		t.Fatalf("merged mapping [%#x, +%d), want [%#x, +%d)", m.Base(), m.Len(), base, 4*page)
	}
	b := m.Bytes()
	if b[0] != 0x11 || b[2*page] != 0x22 {
		t.Fatal("merged view lost writes")
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSplitClosePieces(t *testing.T) {
	page := PageSize()
	m, err := New(2 * page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	high, err := m.SplitOff(page)
	if err != nil {
		t.Fatal(err)
	}
	// Each piece releases its own sub-range; order must not matter.
	if err := high.Close(); err != nil {
		t.Fatal(err)
	}
	m.Bytes()[0] = 1
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSplitOffsetValidation(t *testing.T) {
	page := PageSize()
	m, err := New(2 * page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.SplitOff(0); err == nil {
		t.Fatal("split at 0 accepted")
	}
	if _, err := m.SplitOff(2 * page); err == nil {
		t.Fatal("split at length accepted")
	}
	_, err = m.SplitOff(page / 2)
	wantCode(t, err, ErrUnalignedAddress)
}

func TestMergeUnrelated(t *testing.T) {
	page := PageSize()
	a, err := New(page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := New(page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	wantCode(t, a.Merge(b), ErrUnrelatedMapping)
}

func TestMergeAttributeMismatch(t *testing.T) {
	page := PageSize()
	m, err := New(2 * page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	high, err := m.SplitOff(page)
	if err != nil {
		t.Fatal(err)
	}
	defer high.Close()
	defer m.Close()

	if err := high.MakeReadOnly(); err != nil {
		t.Fatal(err)
	}
	wantCode(t, m.Merge(high), ErrUnrelatedMapping)

	// Restoring the protection makes the halves mergeable again.
	if err := high.MakeReadWrite(); err != nil {
		t.Fatal(err)
	}
	if err := m.Merge(high); err != nil {
		t.Fatal(err)
	}
}

func TestMergeWrongOrder(t *testing.T) {
	page := PageSize()
	m, err := New(2 * page).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	high, err := m.SplitOff(page)
	if err != nil {
		t.Fatal(err)
	}
	defer high.Close()

	// Only the low piece can absorb its high neighbor.
	wantCode(t, high.Merge(m), ErrUnrelatedMapping)
}

func TestDoubleClose(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close returned %v", err)
	}
	if m.State() != StateReleased {
		t.Fatalf("state %v after close", m.State())
	}
}

func TestUseAfterClose(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	wantCode(t, m.Protect(ProtRead), ErrReleased)
	if m.Bytes() != nil {
		t.Fatal("released mapping exposes a view")
	}
	_, err = m.SplitOff(0)
	wantCode(t, err, ErrReleased)
}

func TestFlushRequiresSharedFile(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	wantCode(t, m.Flush(0, m.Len()), ErrBadState)
}

func TestLockUnlock(t *testing.T) {
	m, err := New(PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Lock(); err != nil {
		var e *Error
		if errors.As(err, &e) && (e.Code == ErrPermissionDenied || e.Code == ErrOutOfMemory) {
			t.Skipf("lock quota exhausted: %v", err)
		}
		t.Fatal(err)
	}
	if !m.IsLocked() {
		t.Fatal("IsLocked false after Lock")
	}
	if err := m.Unlock(); err != nil {
		t.Fatal(err)
	}
	if m.IsLocked() {
		t.Fatal("IsLocked true after Unlock")
	}
}

func TestAdvise(t *testing.T) {
	m, err := New(4 * PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	for _, adv := range []Advice{AdviceNormal, AdviceSequential, AdviceRandom, AdviceWillNeed} {
		if err := m.Advise(adv); err != nil {
			t.Fatalf("advice %d: %v", adv, err)
		}
	}
}

func TestStackMapping(t *testing.T) {
	m, err := New(4 * PageSize()).WithFlags(FlagStack).CommitAnonymous(ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	b := m.Bytes()
	copy(b[len(b)-8:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if !bytes.Equal(b[len(b)-8:], []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatal("stack mapping not writable")
	}
}
