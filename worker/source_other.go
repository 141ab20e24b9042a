//go:build !unix

package worker

import (
	"os"
	"time"
)

// fileSnapshot on non-unix targets falls back to mtime+size, since
// syscall.Stat_t's dev/ino fields are unix-specific.
type fileSnapshot struct {
	mtime time.Time
	size  int64
}

func snapshotOf(info os.FileInfo) fileSnapshot {
	return fileSnapshot{mtime: info.ModTime(), size: info.Size()}
}

func (a fileSnapshot) equal(b fileSnapshot) bool {
	return a.mtime.Equal(b.mtime) && a.size == b.size
}
