// Package devmapper creates and removes device-mapper snapshot targets
// through dmsetup.
package devmapper

import (
	"context"
	"fmt"

	"github.com/hut8labs/palimpsest/internal/command"
	"github.com/hut8labs/palimpsest/internal/layout"
)

// Persistence selects whether a snapshot's exception store survives the
// target being torn down.
type Persistence string

const (
	// Persistent snapshots keep their copy-on-write data across remounts.
	Persistent Persistence = "P"
	// Transient snapshots keep copy-on-write data only while the target is
	// active. Removing the target discards every write.
	Transient Persistence = "N"
)

// ChunkSectors is the snapshot chunk size in 512-byte sectors.
const ChunkSectors = 8

// PersistenceFor maps the transient flag of a layer to its persistence
// mode.
func PersistenceFor(transient bool) Persistence {
	if transient {
		return Transient
	}
	return Persistent
}

// SnapshotTable is a single-line "snapshot" target table.
type SnapshotTable struct {
	// Sectors is the length of the target in 512-byte sectors.
	Sectors uint64
	// Origin is the device holding the data being snapshotted.
	Origin string
	// COW is the device that stores changed chunks.
	COW         string
	Persistence Persistence
}

// String formats the table as dmsetup expects it on stdin:
//
//	0 <sectors> snapshot <origin> <cow> <P|N> 8
func (t SnapshotTable) String() string {
	return fmt.Sprintf("0 %d snapshot %s %s %s %d", t.Sectors, t.Origin, t.COW, t.Persistence, ChunkSectors)
}

// Create creates the mapper target name from table. The device node
// appears at /dev/mapper/<name>.
func Create(ctx context.Context, r command.Runner, name string, table SnapshotTable) error {
	_, err := r.Run(ctx, command.New("dmsetup", "create", name).WithStdin(table.String()+"\n"))
	return err
}

// Remove tears down the mapper target name.
func Remove(ctx context.Context, r command.Runner, name string) error {
	_, err := r.Run(ctx, command.New("dmsetup", "remove", name))
	return err
}

// DevicePath returns the device node for the target name.
func DevicePath(name string) string {
	return layout.MapperDevice(name)
}
