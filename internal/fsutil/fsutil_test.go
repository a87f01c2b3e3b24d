package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hut8labs/palimpsest/internal/command/commandtest"
)

func TestSize(t *testing.T) {
	tests := []struct {
		size  Size
		str   string
		bytes int64
	}{
		{Gigabytes(1), "1G", 1 << 30},
		{Gigabytes(20), "20G", 20 << 30},
		{Bytes(1073741824), "1073741824", 1 << 30},
		{Bytes(4096), "4096", 4096},
	}
	for _, tc := range tests {
		t.Run(tc.str, func(t *testing.T) {
			if got := tc.size.String(); got != tc.str {
				t.Errorf("String() = %q, want %q", got, tc.str)
			}
			if got := tc.size.Bytes(); got != tc.bytes {
				t.Errorf("Bytes() = %d, want %d", got, tc.bytes)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()
	r := commandtest.NewRecorder()

	if err := Truncate(ctx, r, "disk.img", Gigabytes(1)); err != nil {
		t.Fatal(err)
	}
	if err := Truncate(ctx, r, "snap.img", Bytes(1073741824)); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"truncate -s 1G disk.img",
		"truncate -s 1073741824 snap.img",
	}
	if got := r.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	// Zero is left for the tools to judge.
	if err := Truncate(ctx, r, "zero.img", Gigabytes(0)); err != nil {
		t.Errorf("zero size should be passed through: %v", err)
	}
	if got := r.Lines(); len(got) != 3 || got[2] != "truncate -s 0G zero.img" {
		t.Errorf("commands = %v", got)
	}

	if err := Truncate(ctx, r, "neg.img", Bytes(-1)); err == nil {
		t.Error("expected error for negative size")
	}
	if len(r.Lines()) != 3 {
		t.Error("negative size should not issue a command")
	}
}

func TestFormat(t *testing.T) {
	ctx := context.Background()
	r := commandtest.NewRecorder()

	if err := Format(ctx, r, "ext4", "disk.img.lo"); err != nil {
		t.Fatal(err)
	}
	if err := Format(ctx, r, "", "other.img.lo"); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"mkfs.ext4 -m 0 disk.img.lo",
		"mkfs.ext3 -m 0 other.img.lo",
	}
	if got := r.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestUsageSparse(t *testing.T) {
	file := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(64 << 20); err != nil {
		f.Close()
		t.Fatal(err)
	}
	if _, err := f.WriteAt(make([]byte, 4096), 0); err != nil {
		f.Close()
		t.Fatal(err)
	}
	f.Close()

	used, err := Usage(context.Background(), file)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if used >= 64<<20 {
		t.Errorf("sparse file reports %d allocated bytes, expected less than apparent size", used)
	}
}
