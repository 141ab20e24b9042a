package handshake

import (
	"bufio"
	"net"
	"time"

	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/wire"
	"github.com/parcelxfer/parcel/xfererr"
)

// Session is the agreed Transfer Plan and, for a resumed transfer, the
// subset of blocks the Receiver has proven it already holds.
type Session struct {
	Plan         *plan.Plan
	ResumeBitmap *plan.Bitmap // nil for a fresh transfer
}

// Resolver lets the Receiver answer "do I already have a `.partial`
// file matching this name and length, and which of its blocks are
// candidates for resume." It never returns CRCs the Receiver trusts on
// its own: handshakeServer always confirms them against the Sender's
// CrcListReplyV1 before setting any resume bit, per spec §4.3.1.
type Resolver interface {
	ResumeCandidates(name string, length uint64, blockSize uint32) (sequences []uint32, localCRCs []uint32, err error)
}

// NoResume is a Resolver that never offers a resume candidate, for a
// Receiver that always starts fresh.
type NoResume struct{}

// ResumeCandidates implements Resolver.
func (NoResume) ResumeCandidates(string, uint64, uint32) ([]uint32, []uint32, error) {
	return nil, nil, nil
}

// CRCSource lets the Sender answer the Receiver's CrcListV1 pre-pass
// with the source file's own CRC32 for specific blocks, without the
// handshake package depending on the worker package's SourceFile type.
type CRCSource interface {
	BlockCRC32(seq uint32) (uint32, error)
}

func readMessage(r *bufio.Reader, conn net.Conn, deadline time.Duration) (wire.Message, error) {
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	frame, err := wire.ReadFrame(r)
	if err != nil {
		return nil, xfererr.Transport("reading handshake frame", err)
	}
	msg, err := wire.Decode(frame.Payload)
	if err != nil {
		return nil, xfererr.Protocol("decoding handshake frame", err)
	}
	return msg, nil
}

func writeMessage(conn net.Conn, msg wire.Message, deadline time.Duration) error {
	payload, err := wire.Encode(msg)
	if err != nil {
		return xfererr.Protocol("encoding handshake message", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(deadline))
	if err := wire.WriteFrame(conn, payload); err != nil {
		return xfererr.Transport("writing handshake frame", err)
	}
	return nil
}
