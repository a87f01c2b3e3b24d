package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/errdefs"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "disk.img")

	created := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := s.Put(Record{
		Path:       base,
		Kind:       KindBase,
		LoopDevice: "/dev/loop0",
		FSType:     "ext3",
		SizeBytes:  1 << 30,
		CreatedAt:  created,
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, err := s.Get(base)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Kind != KindBase || r.LoopDevice != "/dev/loop0" || r.SizeBytes != 1<<30 || !r.CreatedAt.Equal(created) {
		t.Errorf("unexpected record %+v", r)
	}

	if err := s.Delete(base); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(base); !errdefs.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := s.Delete(base); err != nil {
		t.Errorf("deleting a missing record should succeed, got %v", err)
	}
}

func TestRelativePathsAreNormalized(t *testing.T) {
	s := newStore(t)
	t.Chdir(t.TempDir())

	if err := s.Put(Record{Path: "snap.img", Kind: KindLayer, MapperName: "snap.img", Base: "images/disk.img"}); err != nil {
		t.Fatal(err)
	}
	abs, err := filepath.Abs("snap.img")
	if err != nil {
		t.Fatal(err)
	}
	absBase, err := filepath.Abs("images/disk.img")
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Get(abs)
	if err != nil {
		t.Fatalf("Get by absolute path failed: %v", err)
	}
	if r.Path != abs {
		t.Errorf("Path = %q, want %q", r.Path, abs)
	}
	if r.Base != absBase {
		t.Errorf("Base = %q, want %q", r.Base, absBase)
	}

	if err := s.Put(Record{Path: "disk.img", Kind: KindBase}); err != nil {
		t.Fatal(err)
	}
	if r, err := s.Get("disk.img"); err != nil || r.Base != "" {
		t.Errorf("a base record has no base, got %q (err=%v)", r.Base, err)
	}
}

func TestList(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()

	for _, r := range []Record{
		{Path: filepath.Join(dir, "b-snap.img"), Kind: KindLayer, Base: filepath.Join(dir, "a-disk.img"), Persistent: true},
		{Path: filepath.Join(dir, "a-disk.img"), Kind: KindBase},
	} {
		if err := s.Put(r); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Kind != KindBase || records[1].Kind != KindLayer {
		t.Errorf("records not ordered by path: %+v", records)
	}
	if !records[1].Persistent {
		t.Error("layer should be persistent")
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(Record{Path: "/images/disk.img", Kind: KindBase}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get("/images/disk.img"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
}
