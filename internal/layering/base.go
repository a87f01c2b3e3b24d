package layering

import (
	"context"
	"fmt"
	"os"

	"github.com/containerd/log"

	"github.com/hut8labs/palimpsest/internal/cleanup"
	"github.com/hut8labs/palimpsest/internal/command"
	"github.com/hut8labs/palimpsest/internal/fsutil"
	"github.com/hut8labs/palimpsest/internal/layout"
	"github.com/hut8labs/palimpsest/internal/loop"
	"github.com/hut8labs/palimpsest/internal/mountutils"
	"github.com/hut8labs/palimpsest/internal/preflight"
	"github.com/hut8labs/palimpsest/internal/registry"
)

// BaseCreate allocates a sparse image of sizeGB gigabytes at file, binds
// it to a loop device, records the binding as file.lo and formats it with
// fsType (ext3 when empty) without reserved blocks. If mountpoint is not
// empty the new base is mounted there.
//
// The loop device stays bound after BaseCreate returns.
func (m *Manager) BaseCreate(ctx context.Context, file string, sizeGB int64, mountpoint, fsType string) error {
	if layout.Exists(file) {
		return &ExistsError{Path: file}
	}
	if fsType == "" {
		fsType = fsutil.DefaultFSType
	}
	if err := m.checkPreflight(preflight.BaseCreate, fsType); err != nil {
		return err
	}
	size := fsutil.Gigabytes(sizeGB)
	logger := log.G(ctx).WithField("file", file)

	var undo cleanup.Stack
	// A dangling symlink at file passes the existence check; truncate
	// then writes through it, and the link is not ours to remove.
	preexisting := exists(file)
	if err := fsutil.Truncate(ctx, m.runner, file, size); err != nil {
		return m.abort(ctx, file, &undo, fmt.Errorf("failed to allocate %s: %w", file, err))
	}
	if !preexisting {
		undo.Push("allocate "+file, func(ctx context.Context) error {
			_, err := m.runner.Run(ctx, command.New("rm", "-f", file))
			return err
		})
	}

	dev, err := loop.Attach(ctx, m.runner, file)
	if err != nil {
		return m.abort(ctx, file, &undo, fmt.Errorf("failed to attach %s: %w", file, err))
	}
	undo.Push("attach "+dev, func(ctx context.Context) error {
		return loop.Detach(ctx, m.runner, dev)
	})

	link := layout.LoopLink(file)
	created, err := symlink(dev, link)
	if err != nil {
		return m.abort(ctx, file, &undo, err)
	}
	if created {
		undo.Push("link "+link, func(context.Context) error {
			return os.Remove(link)
		})
	}

	if err := fsutil.Format(ctx, m.runner, fsType, dev); err != nil {
		return m.abort(ctx, file, &undo, fmt.Errorf("failed to format %s: %w", dev, err))
	}

	logger.WithField("device", dev).WithField("fstype", fsType).Info("base image created")
	if err := m.rec.Put(registry.Record{
		Path:       file,
		Kind:       registry.KindBase,
		LoopDevice: dev,
		FSType:     fsType,
		SizeBytes:  size.Bytes(),
		CreatedAt:  m.now(),
	}); err != nil {
		logger.WithError(err).Warn("failed to record base image")
	}

	if mountpoint != "" {
		return m.BaseMount(ctx, file, mountpoint)
	}
	return nil
}

// BaseMount mounts the loop device bound to file at mountpoint, creating
// the directory if needed. It fails with a *BindingError, before anything
// is mounted, if file.lo is not a symlink.
func (m *Manager) BaseMount(ctx context.Context, file, mountpoint string) error {
	link := layout.LoopLink(file)
	if !layout.IsSymlink(link) {
		return &BindingError{Path: file, Link: link, Kind: BindingLoop}
	}
	if err := m.checkPreflight(preflight.BaseMount, ""); err != nil {
		return err
	}
	if err := mountutils.Mount(ctx, m.runner, link, mountpoint); err != nil {
		return fmt.Errorf("failed to mount %s at %s: %w", file, mountpoint, err)
	}
	log.G(ctx).WithField("file", file).WithField("mountpoint", mountpoint).Info("base image mounted")
	return nil
}

// BaseDestroy detaches the loop device bound to file and deletes file and
// file.lo. It does not check whether the base is mounted or has layers.
func (m *Manager) BaseDestroy(ctx context.Context, file string) error {
	if err := m.checkPreflight(preflight.BaseDestroy, ""); err != nil {
		return err
	}
	link := layout.LoopLink(file)
	if err := loop.Detach(ctx, m.runner, link); err != nil {
		return fmt.Errorf("failed to detach %s: %w", file, err)
	}
	if err := m.remove(ctx, file, link); err != nil {
		return fmt.Errorf("failed to remove %s: %w", file, err)
	}

	logger := log.G(ctx).WithField("file", file)
	logger.Info("base image destroyed")
	if err := m.rec.Delete(file); err != nil {
		logger.WithError(err).Warn("failed to forget base image")
	}
	return nil
}
