package loop

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hut8labs/palimpsest/internal/command"
)

// Attach binds file to the first free loop device and returns the device
// path printed by losetup.
func Attach(ctx context.Context, r command.Runner, file string) (string, error) {
	out, err := r.Run(ctx, command.New("losetup", "-f", "--show", file))
	if err != nil {
		return "", err
	}
	dev := strings.TrimSpace(out)
	if dev == "" {
		return "", fmt.Errorf("losetup printed no device for %s", file)
	}
	return dev, nil
}

// Detach releases the loop device at dev. dev may be a symlink to the
// device node.
func Detach(ctx context.Context, r command.Runner, dev string) error {
	_, err := r.Run(ctx, command.New("losetup", "-d", dev))
	return err
}

// Sectors returns the size of the block device at dev in 512-byte
// sectors.
func Sectors(ctx context.Context, r command.Runner, dev string) (uint64, error) {
	out, err := r.Run(ctx, command.New("blockdev", "--getsz", dev))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected blockdev output for %s %q: %w", dev, out, err)
	}
	return n, nil
}
