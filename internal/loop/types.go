package loop

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Loop device flags from <linux/loop.h>
const (
	LoFlagsReadOnly  = 1 << 0
	LoFlagsAutoclear = 1 << 2
	LoFlagsPartscan  = 1 << 3
	LoFlagsDirectIO  = 1 << 4
)

// LoopInfo64 is the loop device info structure for LOOP_GET_STATUS64.
// This matches the kernel's struct loop_info64 from <linux/loop.h>.
type LoopInfo64 struct {
	Device         uint64
	Inode          uint64
	Rdevice        uint64
	Offset         uint64
	SizeLimit      uint64
	Number         uint32
	EncryptType    uint32
	EncryptKeySize uint32
	Flags          uint32
	FileName       [64]byte
	CryptName      [64]byte
	EncryptKey     [32]byte
	Init           [2]uint64
}

// Device represents an attached loop device.
type Device struct {
	// Path is the device path (e.g., "/dev/loop0").
	Path string
	// Number is the loop device number.
	Number int
}

// BackingFile returns the backing file path from the loop device info.
// The kernel keeps only the first 64 bytes of the name.
func (info *LoopInfo64) BackingFile() string {
	for i, b := range info.FileName {
		if b == 0 {
			return string(info.FileName[:i])
		}
	}
	return string(info.FileName[:])
}

var flagNames = []struct {
	flag uint32
	name string
}{
	{LoFlagsReadOnly, "read-only"},
	{LoFlagsAutoclear, "autoclear"},
	{LoFlagsPartscan, "partscan"},
	{LoFlagsDirectIO, "direct-io"},
}

// FlagNames lists the flags set on the device.
func (info *LoopInfo64) FlagNames() []string {
	var names []string
	for _, f := range flagNames {
		if info.Flags&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// ParseDevice converts a device path such as "/dev/loop3" into a Device.
func ParseDevice(path string) (*Device, error) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "loop") {
		return nil, fmt.Errorf("%s is not a loop device", path)
	}
	var n int
	if _, err := fmt.Sscanf(name, "loop%d", &n); err != nil {
		return nil, fmt.Errorf("%s is not a loop device: %w", path, err)
	}
	if fmt.Sprintf("loop%d", n) != name {
		return nil, fmt.Errorf("%s is not a loop device", path)
	}
	return &Device{Path: path, Number: n}, nil
}
