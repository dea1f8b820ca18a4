//go:build linux

package vmem

import (
	"path/filepath"
	"strings"
	"testing"

	bolt "go.etcd.io/bbolt"
)

// bbolt memory-maps its database file; its mapping must show up in the
// process memory map as a file-backed region carrying the database path.
func TestAreasSeeBoltDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "areas.db")

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("regions"))
		if err != nil {
			return err
		}
		return b.Put([]byte("page"), make([]byte, 512))
	})
	if err != nil {
		t.Fatal(err)
	}

	areas, err := OpenAreas()
	if err != nil {
		t.Fatal(err)
	}
	defer areas.Close()

	for areas.Next() {
		a := areas.Area()
		if strings.HasSuffix(a.Path, "areas.db") {
			if !a.Protection.Has(ProtRead) {
				t.Fatalf("database mapping observed with protection %v", a.Protection)
			}
			return
		}
	}
	if err := areas.Err(); err != nil {
		t.Fatal(err)
	}
	t.Fatal("bbolt database mapping missing from the memory map")
}
