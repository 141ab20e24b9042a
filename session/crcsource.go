package session

import (
	"io"

	"github.com/parcelxfer/parcel/integrity"
	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/worker"
)

// sourceCRCSource answers the Receiver's resume-bitmap CRC pre-pass
// (spec §4.3.1) by reading the requested blocks straight off the
// Source File and computing their raw CRC32, independent of whatever
// compression disposition the session later settles on.
type sourceCRCSource struct {
	source *worker.SourceFile
	plan   *plan.Plan
}

func (s *sourceCRCSource) BlockCRC32(seq uint32) (uint32, error) {
	start, end := s.plan.BlockRange(seq)
	buf := make([]byte, end-start)
	if _, err := s.source.ReadAt(buf, int64(start)); err != nil && err != io.EOF {
		return 0, err
	}
	return integrity.CRC32(buf), nil
}
