//go:build unix

package worker

import (
	"os"
	"syscall"
	"time"
)

// fileSnapshot captures (dev, ino, mtime, size) per spec §4.3.2, using
// the platform stat struct the teacher's build already targets.
type fileSnapshot struct {
	dev, ino uint64
	mtime    time.Time
	size     int64
}

func snapshotOf(info os.FileInfo) fileSnapshot {
	snap := fileSnapshot{mtime: info.ModTime(), size: info.Size()}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		snap.dev = uint64(st.Dev)
		snap.ino = uint64(st.Ino)
	}
	return snap
}

func (a fileSnapshot) equal(b fileSnapshot) bool {
	return a.dev == b.dev && a.ino == b.ino && a.mtime.Equal(b.mtime) && a.size == b.size
}
