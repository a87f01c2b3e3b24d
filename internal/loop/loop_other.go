//go:build !linux

// Package loop manages the loop devices that back palimpsest images.
package loop

import "github.com/containerd/errdefs"

// Open resolves path to the loop device it points at.
func Open(path string) (*Device, error) {
	return nil, errdefs.ErrNotImplemented
}

// GetInfo retrieves the current status of the loop device.
func (d *Device) GetInfo() (*LoopInfo64, error) {
	return nil, errdefs.ErrNotImplemented
}

// SysfsBackingFile returns the backing file path recorded in sysfs.
func (d *Device) SysfsBackingFile() string {
	return ""
}

// FindByBackingFile finds a loop device associated with the given backing file.
func FindByBackingFile(backingFile string) (*Device, error) {
	return nil, errdefs.ErrNotImplemented
}
