package layering

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/containerd/log"

	"github.com/hut8labs/palimpsest/internal/fsutil"
	"github.com/hut8labs/palimpsest/internal/layout"
	"github.com/hut8labs/palimpsest/internal/loop"
	"github.com/hut8labs/palimpsest/internal/mountutils"
)

// Binding describes one binding symlink.
type Binding struct {
	// Link is the symlink path (file.lo or file.dm).
	Link string
	// Target is where the link points; empty when Linked is false.
	Target string
	// Linked is true when Link is a symlink.
	Linked bool
	// Live is true when Target exists.
	Live bool
}

// Status is a point-in-time report on an image. It is informational only;
// operations decide on the binding symlinks alone.
type Status struct {
	Path           string
	Exists         bool
	SizeBytes      int64
	AllocatedBytes int64
	Loop           Binding
	Mapper         Binding
	// BackingFile is the file the kernel reports behind the loop device,
	// empty when it could not be read.
	BackingFile string
	// LoopFlags are the kernel flags of the bound loop device.
	LoopFlags []string
	// Orphan is a loop device the kernel has bound to the image while no
	// loop binding symlink exists, for example after an interrupted create.
	Orphan      string
	Mountpoints []string
}

// Layer reports whether the image looks like a layer.
func (s *Status) Layer() bool {
	return s.Mapper.Linked
}

func inspectBinding(link string) Binding {
	b := Binding{Link: link}
	if !layout.IsSymlink(link) {
		return b
	}
	b.Linked = true
	b.Target, _ = os.Readlink(link)
	b.Live = layout.Exists(link)
	return b
}

// Status inspects file, its binding symlinks, the kernel's view of its
// loop device and the mount table.
func (m *Manager) Status(ctx context.Context, file string) (*Status, error) {
	st := &Status{
		Path:   file,
		Loop:   inspectBinding(layout.LoopLink(file)),
		Mapper: inspectBinding(layout.MapperLink(file)),
	}

	fi, err := os.Stat(file)
	switch {
	case err == nil:
		st.Exists = true
		st.SizeBytes = fi.Size()
		if st.AllocatedBytes, err = fsutil.Usage(ctx, file); err != nil {
			log.G(ctx).WithError(err).Debug("disk usage unavailable")
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to stat %s: %w", file, err)
	}

	if st.Loop.Live {
		if dev, err := loop.Open(st.Loop.Link); err != nil {
			log.G(ctx).WithError(err).Debug("loop device unavailable")
		} else if info, err := dev.GetInfo(); err != nil {
			log.G(ctx).WithError(err).Debug("loop status unavailable")
		} else {
			st.LoopFlags = info.FlagNames()
			if st.BackingFile = dev.SysfsBackingFile(); st.BackingFile == "" {
				st.BackingFile = info.BackingFile()
			}
		}
	} else if st.Exists && !st.Loop.Linked {
		if dev, err := loop.FindByBackingFile(file); err != nil {
			log.G(ctx).WithError(err).Debug("loop scan unavailable")
		} else if dev != nil {
			st.Orphan = dev.Path
		}
	}

	seen := make(map[string]bool)
	for _, b := range []Binding{st.Loop, st.Mapper} {
		if !b.Live {
			continue
		}
		targets, err := mountutils.MountedAt(b.Link)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if !seen[t] {
				seen[t] = true
				st.Mountpoints = append(st.Mountpoints, t)
			}
		}
	}
	sort.Strings(st.Mountpoints)

	return st, nil
}

// Unmount unmounts whatever is mounted at mountpoint.
func (m *Manager) Unmount(ctx context.Context, mountpoint string) error {
	if err := mountutils.Unmount(ctx, mountpoint); err != nil {
		return err
	}
	log.G(ctx).WithField("mountpoint", mountpoint).Info("unmounted")
	return nil
}
