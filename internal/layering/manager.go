package layering

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/containerd/log"

	"github.com/hut8labs/palimpsest/internal/cleanup"
	"github.com/hut8labs/palimpsest/internal/command"
	"github.com/hut8labs/palimpsest/internal/preflight"
	"github.com/hut8labs/palimpsest/internal/registry"
)

// Recorder receives a record for each created image and a deletion for
// each destroyed one. *registry.Store implements it.
type Recorder interface {
	Put(r registry.Record) error
	Delete(path string) error
}

type nopRecorder struct{}

func (nopRecorder) Put(registry.Record) error { return nil }
func (nopRecorder) Delete(string) error       { return nil }

// Opt is an option to configure a Manager.
type Opt func(m *Manager)

// WithRegistry records created and destroyed images in rec.
func WithRegistry(rec Recorder) Opt {
	return func(m *Manager) {
		m.rec = rec
	}
}

// WithRollback makes create operations undo their completed steps, in
// reverse order, when a later step fails. Without it partial state is
// left behind.
func WithRollback() Opt {
	return func(m *Manager) {
		m.rollback = true
	}
}

// WithPreflight checks for the tools and kernel support an operation
// needs before it runs its first command. The check comes after the
// operation's own preconditions, so an existing image or a missing
// binding is still reported as such.
func WithPreflight() Opt {
	return func(m *Manager) {
		m.check = preflight.Check
	}
}

// Manager runs base and layer operations. It holds no state of its own
// and is not safe for concurrent use against the same images.
type Manager struct {
	runner   command.Runner
	rec      Recorder
	rollback bool
	check    func(op preflight.Operation, fsType string) error
	now      func() time.Time
}

// New returns a Manager that runs tools through r.
func New(r command.Runner, opts ...Opt) *Manager {
	m := &Manager{
		runner: r,
		rec:    nopRecorder{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) checkPreflight(op preflight.Operation, fsType string) error {
	if m.check == nil {
		return nil
	}
	if err := m.check(op, fsType); err != nil {
		return fmt.Errorf("preflight check failed: %w", err)
	}
	return nil
}

// abort finishes a failed create. With rollback enabled the undo stack is
// unwound; otherwise the partial state is reported and left alone. err is
// always returned as is.
func (m *Manager) abort(ctx context.Context, file string, undo *cleanup.Stack, err error) error {
	if undo.Len() == 0 {
		return err
	}
	logger := log.G(ctx).WithField("file", file)
	if !m.rollback {
		logger.WithField("steps", undo.Len()).Warn("operation failed, leaving partial state in place")
		return err
	}
	logger.WithField("steps", undo.Len()).Info("operation failed, rolling back")
	for _, uerr := range undo.Unwind(ctx) {
		logger.WithError(uerr).Warn("rollback step failed")
	}
	return err
}

// symlink creates link pointing at target. An existing symlink that
// already points at target is reused, in which case created is false.
func symlink(target, link string) (created bool, err error) {
	err = os.Symlink(target, link)
	if err == nil {
		return true, nil
	}
	if os.IsExist(err) {
		if cur, rerr := os.Readlink(link); rerr == nil && cur == target {
			return false, nil
		}
	}
	return false, fmt.Errorf("failed to link %s to %s: %w", link, target, err)
}

// exists reports whether anything, even a dangling symlink, is at path.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// remove deletes paths with rm, as the image files may belong to root.
func (m *Manager) remove(ctx context.Context, paths ...string) error {
	_, err := m.runner.Run(ctx, command.New("rm", paths...))
	return err
}
