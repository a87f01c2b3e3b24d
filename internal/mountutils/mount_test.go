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

package mountutils

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/hut8labs/palimpsest/internal/command/commandtest"
)

func TestMountCreatesTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "mnt", "a")
	r := commandtest.NewRecorder()

	if err := Mount(context.Background(), r, "disk.img.lo", target); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	fi, err := os.Stat(target)
	if err != nil || !fi.IsDir() {
		t.Fatalf("mountpoint not created: %v", err)
	}
	want := []string{"mount disk.img.lo " + target}
	if got := r.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	// An existing directory is fine.
	if err := Mount(context.Background(), r, "disk.img.lo", target); err != nil {
		t.Errorf("second Mount failed: %v", err)
	}
}

func TestMountTargetIsFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r := commandtest.NewRecorder()
	if err := Mount(context.Background(), r, "disk.img.lo", target); err == nil {
		t.Error("expected error when mountpoint is a regular file")
	}
	if len(r.Lines()) != 0 {
		t.Errorf("no mount should be attempted, got %v", r.Lines())
	}
}

func TestMountFailure(t *testing.T) {
	r := commandtest.NewRecorder().FailOn("mount")
	if err := Mount(context.Background(), r, "snap.img.dm", t.TempDir()); err == nil {
		t.Error("expected mount failure to propagate")
	}
}

func TestUnmountNotMounted(t *testing.T) {
	if _, err := os.Stat("/proc/self/mountinfo"); err != nil {
		t.Skip("mountinfo not available")
	}
	err := Unmount(context.Background(), t.TempDir())
	if !errdefs.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestMountedAtDanglingLink(t *testing.T) {
	link := filepath.Join(t.TempDir(), "snap.img.dm")
	if err := os.Symlink("/dev/mapper/palimpsest-test-missing", link); err != nil {
		t.Fatal(err)
	}
	targets, err := MountedAt(link)
	if err != nil {
		t.Fatalf("MountedAt failed: %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("expected no mountpoints, got %v", targets)
	}
}

func TestMountedAtUnmountedFile(t *testing.T) {
	if _, err := os.Stat("/proc/self/mountinfo"); err != nil {
		t.Skip("mountinfo not available")
	}
	file := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	targets, err := MountedAt(file)
	if err != nil {
		t.Fatalf("MountedAt failed: %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("expected no mountpoints, got %v", targets)
	}
}

func TestLinkChain(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "dm-0")
	if err := os.WriteFile(dev, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	mapper := filepath.Join(dir, "mapper")
	if err := os.Symlink("dm-0", mapper); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "snap.img.dm")
	if err := os.Symlink(mapper, link); err != nil {
		t.Fatal(err)
	}

	names, err := linkChain(link)
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := filepath.EvalSymlinks(dev)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{mapper, resolved} {
		if !names[want] {
			t.Errorf("chain %v is missing %s", names, want)
		}
	}
	if names[link] {
		t.Errorf("chain should not include the starting link")
	}
}
