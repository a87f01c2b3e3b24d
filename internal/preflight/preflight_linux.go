package preflight

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const loopControl = "/dev/loop-control"

// KernelVersion returns the current kernel version as a string (e.g., "6.16.0").
func KernelVersion() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}

	return unix.ByteSliceToString(uname.Release[:]), nil
}

// CheckLoopSupport checks that loop devices can be allocated.
func CheckLoopSupport() error {
	if _, err := os.Stat(loopControl); err != nil {
		return fmt.Errorf("loop device support not available (%s missing), please run: modprobe loop", loopControl)
	}
	return nil
}

// CheckDeviceMapper checks that the device-mapper control device is
// registered with the kernel.
func CheckDeviceMapper() error {
	data, err := os.ReadFile("/proc/misc")
	if err != nil {
		return fmt.Errorf("failed to read /proc/misc: %w", err)
	}
	if !hasMiscDevice(data, "device-mapper") {
		return fmt.Errorf("device-mapper not available, please run: modprobe dm-snapshot")
	}
	return nil
}

// hasMiscDevice reports whether /proc/misc content lists name. Lines look
// like " 236 device-mapper".
func hasMiscDevice(data []byte, name string) bool {
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) == 2 && fields[1] == name {
			return true
		}
	}
	return false
}
