package worker

import (
	"fmt"
	"os"
)

// ErrSourceChanged reports that the Source File's identity or size
// changed mid-transfer, per spec §9's second open question. The Sender
// checks this before answering every request rather than trusting a
// one-time snapshot.
var ErrSourceChanged = fmt.Errorf("source file changed since handshake")

// SourceFile is the Sender's read-only open handle to the file being
// sent. It snapshots the file's identity when it is opened so every
// subsequent request can detect a file swapped out from under the
// transfer.
type SourceFile struct {
	f        *os.File
	snapshot fileSnapshot
}

// OpenSource opens path for positional reads and records its identity
// snapshot (spec §4.3.2).
func OpenSource(path string) (*SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &SourceFile{f: f, snapshot: snapshotOf(info)}, nil
}

// Size returns the file's length as recorded at open time.
func (s *SourceFile) Size() int64 { return s.snapshot.size }

// ReadAt performs a positional read, satisfying io.ReaderAt.
func (s *SourceFile) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// Changed re-stats the file and reports whether its identity (device,
// inode, modification time, or size) diverged from the snapshot taken
// at open time.
func (s *SourceFile) Changed() (bool, error) {
	info, err := s.f.Stat()
	if err != nil {
		return false, err
	}
	return !s.snapshot.equal(snapshotOf(info)), nil
}

// Close closes the underlying file.
func (s *SourceFile) Close() error { return s.f.Close() }
