package handshake

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/wire"
	"github.com/parcelxfer/parcel/xfererr"
)

// Dial performs the Sender side of the Control Protocol exchange: it
// connects to addr, sends HelloV1 built from pl, answers the resume-
// bitmap CRC pre-pass if the Receiver requests one, and returns the
// Receiver's AckV1 translated into a Session. The connection is closed
// before Dial returns; data connections are opened separately by the
// caller.
func Dial(ctx context.Context, addr string, pl *plan.Plan, crcSource CRCSource) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, xfererr.Transport("dialing control port", err)
	}
	defer conn.Close()

	hello := &wire.HelloV1{
		Name:        pl.Name,
		Length:      pl.Length,
		Hash:        pl.Hash,
		BlockSize:   pl.BlockSize,
		Concurrency: pl.Concurrency,
	}
	if err := writeMessage(conn, hello, HandshakeTimeout); err != nil {
		return nil, err
	}

	r := bufio.NewReader(conn)
	for {
		msg, err := readMessage(r, conn, HandshakeTimeout)
		if err != nil {
			return nil, err
		}

		switch m := msg.(type) {
		case *wire.ErrV1:
			if m.Code == wire.ErrCodeBusy {
				return nil, ErrBusy
			}
			return nil, xfererr.Protocol("receiver rejected handshake", fmt.Errorf("%s", m.Msg))

		case *wire.CrcListV1:
			reply, err := answerCrcList(crcSource, m)
			if err != nil {
				return nil, err
			}
			if err := writeMessage(conn, reply, HandshakeTimeout); err != nil {
				return nil, err
			}
			continue

		case *wire.AckV1:
			var bitmap *plan.Bitmap
			if m.HasResumeBitmap {
				bitmap = plan.Unpack(m.ResumeBitmap, pl.BlockCount)
				logrus.WithFields(logrus.Fields{
					"function": "Dial",
					"resumed":  bitmap.CountSet(),
					"total":    pl.BlockCount,
				}).Info("receiver offered resume bitmap")
			}
			pl.Concurrency = m.AcceptedConcurrency
			return &Session{Plan: pl, ResumeBitmap: bitmap}, nil

		default:
			return nil, xfererr.Protocol("unexpected handshake message", fmt.Errorf("got %T", msg))
		}
	}
}

func answerCrcList(crcSource CRCSource, req *wire.CrcListV1) (*wire.CrcListReplyV1, error) {
	crcs := make([]uint32, len(req.Sequences))
	for i, seq := range req.Sequences {
		crc, err := crcSource.BlockCRC32(seq)
		if err != nil {
			return nil, xfererr.Resource("computing resume crc", err)
		}
		crcs[i] = crc
	}
	return &wire.CrcListReplyV1{Crcs: crcs}, nil
}
