// Package layout defines the on-disk naming convention that records an
// image's bindings next to the image file itself:
//
//	<name>        image file (sparse)
//	<name>.lo     symlink -> /dev/loopN
//	<name>.dm     symlink -> /dev/mapper/<basename(name)>   (layers only)
//
// Every operation re-derives device names from the image path through
// these helpers; nothing else records which devices belong to an image.
package layout

import (
	"os"
	"path/filepath"
)

const (
	// LoopSuffix marks the loop binding symlink.
	LoopSuffix = ".lo"
	// MapperSuffix marks the device-mapper binding symlink.
	MapperSuffix = ".dm"
	// MapperDir is where device-mapper exposes named targets.
	MapperDir = "/dev/mapper"
)

// LoopLink returns the path of the loop binding symlink for file.
func LoopLink(file string) string {
	return file + LoopSuffix
}

// MapperLink returns the path of the mapper binding symlink for file.
func MapperLink(file string) string {
	return file + MapperSuffix
}

// MapperName returns the device-mapper target name for a layer file: its
// final path component.
func MapperName(file string) string {
	return filepath.Base(file)
}

// MapperDevice returns the device node for a named mapper target.
func MapperDevice(name string) string {
	return filepath.Join(MapperDir, name)
}

// IsSymlink reports whether path is a symbolic link. The link target is
// not examined, so a dangling link still counts.
func IsSymlink(path string) bool {
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeSymlink != 0
}

// Exists reports whether path exists, following symlinks.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
