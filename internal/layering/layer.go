package layering

import (
	"context"
	"fmt"
	"os"

	"github.com/containerd/log"

	"github.com/hut8labs/palimpsest/internal/cleanup"
	"github.com/hut8labs/palimpsest/internal/command"
	"github.com/hut8labs/palimpsest/internal/devmapper"
	"github.com/hut8labs/palimpsest/internal/fsutil"
	"github.com/hut8labs/palimpsest/internal/layout"
	"github.com/hut8labs/palimpsest/internal/loop"
	"github.com/hut8labs/palimpsest/internal/mountutils"
	"github.com/hut8labs/palimpsest/internal/preflight"
	"github.com/hut8labs/palimpsest/internal/registry"
)

// LayerCreate creates a copy-on-write layer at file on top of baseFile.
//
// The layer is a sparse file of exactly the base's size, bound to its own
// loop device (file.lo) and registered as a snapshot target named after
// the last component of file, with baseFile.lo as origin. The mapper
// device is linked as file.dm. Writes are persistent unless transient is
// set, in which case they vanish when the target is removed. The mode is
// fixed for the life of the layer.
//
// If mountpoint is not empty the layer is mounted there.
func (m *Manager) LayerCreate(ctx context.Context, baseFile, file, mountpoint string, transient bool) error {
	fi, err := os.Stat(baseFile)
	if err != nil {
		return &StatError{Path: baseFile, Cause: err}
	}
	if err := m.checkPreflight(preflight.LayerCreate, ""); err != nil {
		return err
	}
	size := fsutil.Bytes(fi.Size())
	logger := log.G(ctx).WithField("file", file).WithField("base", baseFile)

	var undo cleanup.Stack
	// An existing layer file is resized, not replaced, and is left alone
	// on rollback.
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

	loopLink := layout.LoopLink(file)
	created, err := symlink(dev, loopLink)
	if err != nil {
		return m.abort(ctx, file, &undo, err)
	}
	if created {
		undo.Push("link "+loopLink, func(context.Context) error {
			return os.Remove(loopLink)
		})
	}

	sectors, err := loop.Sectors(ctx, m.runner, dev)
	if err != nil {
		return m.abort(ctx, file, &undo, fmt.Errorf("failed to size %s: %w", dev, err))
	}

	name := layout.MapperName(file)
	table := devmapper.SnapshotTable{
		Sectors:     sectors,
		Origin:      layout.LoopLink(baseFile),
		COW:         loopLink,
		Persistence: devmapper.PersistenceFor(transient),
	}
	if err := devmapper.Create(ctx, m.runner, name, table); err != nil {
		return m.abort(ctx, file, &undo, fmt.Errorf("failed to create snapshot target %s: %w", name, err))
	}
	undo.Push("create target "+name, func(ctx context.Context) error {
		return devmapper.Remove(ctx, m.runner, name)
	})

	mapperDev := devmapper.DevicePath(name)
	if _, err := symlink(mapperDev, layout.MapperLink(file)); err != nil {
		return m.abort(ctx, file, &undo, err)
	}

	logger.WithField("device", mapperDev).WithField("table", table.String()).Info("layer created")
	if err := m.rec.Put(registry.Record{
		Path:       file,
		Kind:       registry.KindLayer,
		LoopDevice: dev,
		MapperName: name,
		Base:       baseFile,
		Persistent: table.Persistence == devmapper.Persistent,
		SizeBytes:  size.Bytes(),
		CreatedAt:  m.now(),
	}); err != nil {
		logger.WithError(err).Warn("failed to record layer")
	}

	if mountpoint != "" {
		return m.LayerMount(ctx, file, mountpoint)
	}
	return nil
}

// LayerMount mounts the mapper device of the layer at mountpoint,
// creating the directory if needed. It fails with a *BindingError, before
// anything is mounted, if file.dm is not a symlink.
func (m *Manager) LayerMount(ctx context.Context, file, mountpoint string) error {
	link := layout.MapperLink(file)
	if !layout.IsSymlink(link) {
		return &BindingError{Path: file, Link: link, Kind: BindingMapper}
	}
	if err := m.checkPreflight(preflight.LayerMount, ""); err != nil {
		return err
	}
	if err := mountutils.Mount(ctx, m.runner, link, mountpoint); err != nil {
		return fmt.Errorf("failed to mount %s at %s: %w", file, mountpoint, err)
	}
	log.G(ctx).WithField("file", file).WithField("mountpoint", mountpoint).Info("layer mounted")
	return nil
}

// LayerDestroy removes the snapshot target of the layer, detaches its
// loop device and deletes file and file.lo. file.dm is left behind as a
// dangling link. Whether the layer is mounted is not checked.
func (m *Manager) LayerDestroy(ctx context.Context, file string) error {
	if err := m.checkPreflight(preflight.LayerDestroy, ""); err != nil {
		return err
	}
	name := layout.MapperName(file)
	if err := devmapper.Remove(ctx, m.runner, name); err != nil {
		return fmt.Errorf("failed to remove snapshot target %s: %w", name, err)
	}
	link := layout.LoopLink(file)
	if err := loop.Detach(ctx, m.runner, link); err != nil {
		return fmt.Errorf("failed to detach %s: %w", file, err)
	}
	if err := m.remove(ctx, file, link); err != nil {
		return fmt.Errorf("failed to remove %s: %w", file, err)
	}

	logger := log.G(ctx).WithField("file", file)
	logger.Info("layer destroyed")
	if err := m.rec.Delete(file); err != nil {
		logger.WithError(err).Warn("failed to forget layer")
	}
	return nil
}
