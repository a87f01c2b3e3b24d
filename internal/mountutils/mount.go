/*
   Copyright The containerd Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package mountutils mounts image devices and inspects the mount table.
package mountutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/containerd/v2/core/mount"
	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/moby/sys/mountinfo"

	"github.com/hut8labs/palimpsest/internal/command"
)

// Mount creates target (and its parents) if needed and mounts source on
// it, leaving filesystem type detection to the kernel.
func Mount(ctx context.Context, r command.Runner, source, target string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create mountpoint %s: %w", target, err)
	}
	_, err := r.Run(ctx, command.New("mount", source, target))
	return err
}

// Unmount unmounts everything stacked on target.
func Unmount(ctx context.Context, target string) error {
	mounted, err := mountinfo.Mounted(target)
	if err != nil {
		return fmt.Errorf("failed to check mountpoint %s: %w", target, err)
	}
	if !mounted {
		return fmt.Errorf("%s is not a mountpoint: %w", target, errdefs.ErrNotFound)
	}
	log.G(ctx).WithField("target", target).Debug("unmounting")
	if err := mount.UnmountAll(target, 0); err != nil {
		return fmt.Errorf("failed to unmount %s: %w", target, err)
	}
	return nil
}

// MountedAt returns the mountpoints of the block device at source.
// source may be a symlink to the device node; a dangling link yields no
// mountpoints. Every name along the link chain is matched, since the
// mount table records /dev/mapper/<name> rather than /dev/dm-N.
func MountedAt(source string) ([]string, error) {
	names, err := linkChain(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", source, err)
	}
	infos, err := mountinfo.GetMounts(func(i *mountinfo.Info) (skip, stop bool) {
		return !names[i.Source], false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read mount table: %w", err)
	}
	targets := make([]string, 0, len(infos))
	for _, i := range infos {
		targets = append(targets, i.Mountpoint)
	}
	return targets, nil
}

// maxLinks bounds symlink chains, as the kernel does.
const maxLinks = 40

// linkChain returns every path visited while following the symlinks from
// path, excluding path itself, ending with the fully resolved target.
func linkChain(path string) (map[string]bool, error) {
	names := make(map[string]bool)
	cur := path
	for range maxLinks {
		fi, err := os.Lstat(cur)
		if err != nil {
			return nil, err
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			break
		}
		target, err := os.Readlink(cur)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(cur), target)
		}
		cur = filepath.Clean(target)
		names[cur] = true
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, err
	}
	names[resolved] = true
	return names, nil
}
