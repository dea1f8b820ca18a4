package vmem

import "testing"

func BenchmarkCommitAnonymous(b *testing.B) {
	size := 16 * PageSize()
	for n := 0; n < b.N; n++ {
		m, err := New(size).CommitAnonymous(ProtReadWrite)
		if err != nil {
			b.Fatal(err)
		}
		m.Close()
	}
}

func BenchmarkProtectToggle(b *testing.B) {
	m, err := New(16 * PageSize()).CommitAnonymous(ProtReadWrite)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	for n := 0; n < b.N; n++ {
		if err := m.MakeReadOnly(); err != nil {
			b.Fatal(err)
		}
		if err := m.MakeReadWrite(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAreasWalk(b *testing.B) {
	for n := 0; n < b.N; n++ {
		areas, err := OpenAreas()
		if err != nil {
			b.Fatal(err)
		}
		for areas.Next() {
		}
		if err := areas.Err(); err != nil {
			b.Fatal(err)
		}
		areas.Close()
	}
}
