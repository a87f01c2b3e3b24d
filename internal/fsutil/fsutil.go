// Package fsutil allocates and formats image files.
package fsutil

import (
	"context"
	"fmt"
	"strconv"

	"github.com/containerd/continuity/fs"
	"github.com/docker/go-units"

	"github.com/hut8labs/palimpsest/internal/command"
)

// DefaultFSType is the filesystem created on new base images.
const DefaultFSType = "ext3"

// Size is a truncate(1) size argument.
type Size struct {
	n         int64
	gigabytes bool
}

// Gigabytes returns a size of n GiB, rendered with truncate's "G" suffix.
func Gigabytes(n int64) Size {
	return Size{n: n, gigabytes: true}
}

// Bytes returns a size of exactly n bytes.
func Bytes(n int64) Size {
	return Size{n: n}
}

// String renders s as truncate expects it.
func (s Size) String() string {
	if s.gigabytes {
		return strconv.FormatInt(s.n, 10) + "G"
	}
	return strconv.FormatInt(s.n, 10)
}

// Bytes returns s in bytes.
func (s Size) Bytes() int64 {
	if s.gigabytes {
		return s.n * units.GiB
	}
	return s.n
}

// Truncate creates file, or extends it, to size without allocating
// blocks.
func Truncate(ctx context.Context, r command.Runner, file string, size Size) error {
	// truncate reads a leading '-' as "shrink by".
	if size.n < 0 {
		return fmt.Errorf("negative size %s for %s", size, file)
	}
	_, err := r.Run(ctx, command.New("truncate", "-s", size.String(), file))
	return err
}

// Format creates a filesystem of fsType on dev with no reserved blocks.
func Format(ctx context.Context, r command.Runner, fsType, dev string) error {
	if fsType == "" {
		fsType = DefaultFSType
	}
	_, err := r.Run(ctx, command.New("mkfs."+fsType, "-m", "0", dev))
	return err
}

// Usage returns the bytes actually allocated to file on disk, which for
// a sparse image is usually far below its apparent size.
func Usage(ctx context.Context, file string) (int64, error) {
	u, err := fs.DiskUsage(ctx, file)
	if err != nil {
		return 0, fmt.Errorf("failed to compute disk usage of %s: %w", file, err)
	}
	return u.Size, nil
}
