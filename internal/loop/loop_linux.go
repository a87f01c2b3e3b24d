// Package loop manages the loop devices that back palimpsest images.
//
// Attach, Detach and Sectors shell out to losetup and blockdev. The
// ioctl-based helpers in this file only inspect kernel state for status
// reporting; no operation decides anything based on them.
package loop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Loop device ioctl constants from <linux/loop.h>
const (
	loopGetStatus64 = 0x4C05
)

// Open resolves path, which may be a binding symlink such as
// "disk.img.lo", to the loop device it points at.
func Open(path string) (*Device, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return ParseDevice(resolved)
}

// GetInfo retrieves the current status of the loop device.
func (d *Device) GetInfo() (*LoopInfo64, error) {
	loopFd, err := unix.Open(d.Path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open loop device %s: %w", d.Path, err)
	}
	defer unix.Close(loopFd)

	var info LoopInfo64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(loopFd), loopGetStatus64, uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return nil, fmt.Errorf("LOOP_GET_STATUS64 failed for %s: %w", d.Path, errno)
	}

	return &info, nil
}

// SysfsBackingFile returns the full backing file path recorded in sysfs,
// which unlike LoopInfo64 is not truncated. Returns empty string if the
// device is not configured.
func (d *Device) SysfsBackingFile() string {
	data, err := os.ReadFile(fmt.Sprintf("/sys/block/loop%d/loop/backing_file", d.Number))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(string(data), "\n")
}

// FindByBackingFile finds a loop device associated with the given backing file.
// Returns nil if no loop device is found.
func FindByBackingFile(backingFile string) (*Device, error) {
	absPath, err := filepath.Abs(backingFile)
	if err != nil {
		absPath = backingFile
	}

	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil, fmt.Errorf("failed to read /sys/block: %w", err)
	}

	for _, entry := range entries {
		dev, err := ParseDevice("/dev/" + entry.Name())
		if err != nil {
			continue
		}
		sysfsBackingFile := dev.SysfsBackingFile()
		if sysfsBackingFile == "" {
			continue // Device may not be configured
		}
		if sysfsBackingFile == absPath || sysfsBackingFile == backingFile {
			return dev, nil
		}
	}

	return nil, nil
}
