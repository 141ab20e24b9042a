package session

import (
	"os"
	"path/filepath"

	"github.com/parcelxfer/parcel/integrity"
	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/worker"
)

// dirResolver implements handshake.Resolver by checking destDir for a
// `.partial` file matching the incoming name and length. If one
// exists, every block is offered as a resume candidate with its
// on-disk CRC32; handshakeServer still requires the Sender to confirm
// each one before trusting it (spec §4.3.1) — this resolver never marks
// anything resumed on its own.
type dirResolver struct {
	destDir string
}

func (r *dirResolver) ResumeCandidates(name string, length uint64, blockSize uint32) ([]uint32, []uint32, error) {
	partialPath := filepath.Join(r.destDir, name) + worker.PartialSuffix

	info, err := os.Stat(partialPath)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if uint64(info.Size()) != length {
		// Stale or foreign partial file: don't offer resume, start fresh.
		return nil, nil, nil
	}

	f, err := os.Open(partialPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	count := plan.BlockCount(length, blockSize)
	seqs := make([]uint32, count)
	crcs := make([]uint32, count)
	buf := make([]byte, blockSize)
	for seq := uint32(0); seq < count; seq++ {
		start := uint64(seq) * uint64(blockSize)
		end := start + uint64(blockSize)
		if end > length {
			end = length
		}
		n, err := f.ReadAt(buf[:end-start], int64(start))
		if err != nil && n == 0 {
			return nil, nil, err
		}
		seqs[seq] = seq
		crcs[seq] = integrity.CRC32(buf[:n])
	}
	return seqs, crcs, nil
}
