//go:build !unix

package fsentry

import "io/fs"

func sysIdentity(_ fs.FileInfo) (dev, ino uint64, ok bool) {
	return 0, 0, false
}
