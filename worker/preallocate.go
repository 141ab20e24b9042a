package worker

import "os"

// preallocate sets f's length to exactly size, per spec §3's "Sink File
// ... preallocated at the start of transfer" rule. Truncate is the
// portable primitive; it guarantees the file reports the final length
// immediately so every worker's positional write lands inside a file
// that already has the right size, even though the underlying blocks
// may be sparse until written.
func preallocate(f *os.File, size int64) error {
	return f.Truncate(size)
}
