package worker

import (
	"os"

	"github.com/parcelxfer/parcel/xfererr"
)

// PartialSuffix is appended to the final file name while a transfer is
// in progress, per spec §6's persistent-state rule.
const PartialSuffix = ".partial"

// CorruptSuffix is the suffix the Sink File is preserved under when
// final whole-file hash verification fails, per spec §4.5.
const CorruptSuffix = ".corrupt"

// SinkFile is the Receiver's single preallocated output file. Writes
// are positional and non-overlapping; concurrent writes at distinct
// offsets from multiple workers are permitted without locking, per
// spec §3's ownership rules.
type SinkFile struct {
	f    *os.File
	path string // final path, without PartialSuffix
}

// CreateSink creates (or reopens, for resume) the sink at path+PartialSuffix
// and preallocates it to length bytes.
func CreateSink(path string, length uint64) (*SinkFile, error) {
	f, err := os.OpenFile(path+PartialSuffix, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, xfererr.Resource("opening sink file", err)
	}
	if err := preallocate(f, int64(length)); err != nil {
		f.Close()
		return nil, xfererr.Resource("preallocating sink file", err)
	}
	return &SinkFile{f: f, path: path}, nil
}

// WriteAt performs the positional write for one verified block.
func (s *SinkFile) WriteAt(p []byte, off int64) error {
	_, err := s.f.WriteAt(p, off)
	if err != nil {
		return xfererr.Resource("writing block", err)
	}
	return nil
}

// ReadAt performs a positional read, used by the whole-file hash over
// the reassembled file before it is finalized.
func (s *SinkFile) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// Finalize fsyncs and renames the sink to its final name on success.
func (s *SinkFile) Finalize() error {
	if err := s.f.Sync(); err != nil {
		return xfererr.Resource("fsyncing sink file", err)
	}
	if err := s.f.Close(); err != nil {
		return xfererr.Resource("closing sink file", err)
	}
	if err := os.Rename(s.path+PartialSuffix, s.path); err != nil {
		return xfererr.Resource("renaming sink file", err)
	}
	return nil
}

// Abort closes the sink. If keepPartial is false (first handshake
// aborted before any bytes were trusted) the .partial file is removed;
// otherwise it is left in place for resume.
func (s *SinkFile) Abort(keepPartial bool) error {
	s.f.Close()
	if !keepPartial {
		return os.Remove(s.path + PartialSuffix)
	}
	return nil
}

// PreserveCorrupt renames the .partial file to its .corrupt form after
// whole-file hash verification fails, per spec §4.5.
func (s *SinkFile) PreserveCorrupt() error {
	s.f.Close()
	return os.Rename(s.path+PartialSuffix, s.path+CorruptSuffix)
}

// Path returns the file handle's final (non-suffixed) path.
func (s *SinkFile) Path() string { return s.path }
