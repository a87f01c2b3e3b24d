//go:build !linux

package preflight

import "github.com/containerd/errdefs"

// KernelVersion returns the current kernel version.
func KernelVersion() (string, error) {
	return "", errdefs.ErrNotImplemented
}

// CheckLoopSupport checks that loop devices can be allocated.
// Loop devices are Linux-only.
func CheckLoopSupport() error {
	return errdefs.ErrNotImplemented
}

// CheckDeviceMapper checks that device-mapper is available.
func CheckDeviceMapper() error {
	return errdefs.ErrNotImplemented
}
