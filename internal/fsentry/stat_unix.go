//go:build unix

package fsentry

import (
	"io/fs"
	"syscall"
)

// sysIdentity extracts the device and inode numbers from a stat
// result. Filesystems that do not surface a syscall.Stat_t (afero's
// in-memory backends among them) report no identity, which disables
// alias folding for the entry.
func sysIdentity(info fs.FileInfo) (dev, ino uint64, ok bool) {
	stat, castOK := info.Sys().(*syscall.Stat_t)
	if !castOK {
		return 0, 0, false
	}
	return uint64(stat.Dev), uint64(stat.Ino), true
}
