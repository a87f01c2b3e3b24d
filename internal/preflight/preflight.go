// Package preflight provides system requirement checks for palimpsest.
package preflight

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Operation names an orchestrated operation for tool lookup.
type Operation string

const (
	BaseCreate   Operation = "base-create"
	BaseMount    Operation = "base-mount"
	BaseDestroy  Operation = "base-destroy"
	LayerCreate  Operation = "layer-create"
	LayerMount   Operation = "layer-mount"
	LayerDestroy Operation = "layer-destroy"
)

// ToolsFor returns the external tools op invokes. fsType selects the
// mkfs helper and is only used by BaseCreate.
func ToolsFor(op Operation, fsType string) []string {
	switch op {
	case BaseCreate:
		return []string{"truncate", "losetup", "mkfs." + fsType, "mount"}
	case BaseMount, LayerMount:
		return []string{"mount"}
	case BaseDestroy:
		return []string{"losetup"}
	case LayerCreate:
		return []string{"truncate", "losetup", "blockdev", "dmsetup", "mount"}
	case LayerDestroy:
		return []string{"dmsetup", "losetup"}
	default:
		return nil
	}
}

// MissingToolsError lists tools that could not be found in PATH.
type MissingToolsError struct {
	Tools []string
}

func (e *MissingToolsError) Error() string {
	return fmt.Sprintf("required tools not found in PATH: %s", strings.Join(e.Tools, ", "))
}

// CheckTools verifies that every named tool resolves through PATH.
func CheckTools(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingToolsError{Tools: missing}
	}
	return nil
}

// Check runs the checks relevant to op. Kernel support is only required
// by operations that create devices.
func Check(op Operation, fsType string) error {
	var errs []error
	if err := CheckTools(ToolsFor(op, fsType)...); err != nil {
		errs = append(errs, err)
	}
	switch op {
	case BaseCreate:
		errs = append(errs, CheckLoopSupport())
	case LayerCreate:
		errs = append(errs, CheckLoopSupport(), CheckDeviceMapper())
	}
	return errors.Join(errs...)
}
