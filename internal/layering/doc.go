// Package layering orchestrates base images and copy-on-write layers.
//
// A base image is a sparse file holding a filesystem, bound to a loop
// device. A layer is a sparse file of the same size, bound to its own loop
// device and registered as the exception store of a device-mapper
// "snapshot" target whose origin is the base's loop device.
//
// # State
//
// All durable state lives next to the image file (see package layout):
//
//	disk.img        base image
//	disk.img.lo  -> /dev/loop0
//	snap.img        layer image
//	snap.img.lo  -> /dev/loop1
//	snap.img.dm  -> /dev/mapper/snap.img
//
// Each operation re-derives device names from the image path. Whether an
// image is mounted is not recorded; a bound image and a mounted image look
// the same.
//
// # Failure Semantics
//
// Every operation is an ordered sequence of external tool invocations.
// The first failure aborts the sequence and is returned unchanged apart
// from a context prefix. Steps already applied are left in place for
// manual inspection, e.g. a failed mkfs leaves the loop device bound and
// the .lo link present. WithRollback opts into best-effort undo instead.
//
// Destroy operations do not check whether the image is mounted, and
// destroying a layer leaves its .dm link dangling.
package layering
