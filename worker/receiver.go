package worker

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/integrity"
	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/scheduler"
	"github.com/parcelxfer/parcel/wire"
	"github.com/parcelxfer/parcel/xfererr"
)

// idleRetryDelay is how long a worker waits before re-polling Take
// when the Pending queue is momentarily empty (every block is either
// leased elsewhere or backing off).
const idleRetryDelay = 20 * time.Millisecond

// ReceiverLoop drives one data connection from the Receiver side, per
// spec §4.4: pull a leased sequence, request it, verify and write its
// bytes, and report the outcome back to the Scheduler. It returns when
// the scheduler signals completion or fatal failure, or when the
// connection itself breaks.
func ReceiverLoop(conn net.Conn, sched *scheduler.Scheduler, pl *plan.Plan, bitmap *plan.Bitmap, sink *SinkFile) error {
	r := bufio.NewReader(conn)
	for {
		select {
		case <-sched.Done():
			return nil
		default:
		}

		seq, ok := sched.Take()
		if !ok {
			select {
			case <-sched.Done():
				return nil
			case <-time.After(idleRetryDelay):
			}
			continue
		}

		if err := fetchBlock(conn, r, sched, pl, bitmap, sink, seq); err != nil {
			return err
		}
	}
}

func fetchBlock(conn net.Conn, r *bufio.Reader, sched *scheduler.Scheduler, pl *plan.Plan, bitmap *plan.Bitmap, sink *SinkFile, seq uint32) error {
	reqPayload, err := wire.Encode(&wire.RequestV1{Sequence: seq})
	if err != nil {
		return xfererr.Protocol("encoding request", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(OpTimeout))
	if err := wire.WriteFrame(conn, reqPayload); err != nil {
		sched.ReportFailure(seq, err)
		return xfererr.Transport("writing request frame", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(OpTimeout))
	frame, err := wire.ReadFrame(r)
	if err != nil {
		sched.ReportFailure(seq, err)
		return xfererr.Transport("reading response frame", err)
	}

	msg, err := wire.Decode(frame.Payload)
	if err != nil {
		// Decode failures are treated as retryable transient
		// corruption, per spec §7; the connection itself is still
		// healthy since the frame read completed.
		sched.ReportFailure(seq, err)
		return nil
	}

	switch m := msg.(type) {
	case *wire.DataV1:
		return handleData(sched, pl, bitmap, sink, seq, m)
	case *wire.ErrV1:
		if m.Code == wire.ErrCodeSourceChanged {
			err := xfererr.Protocol("source changed", errors.New(m.Msg))
			sched.Cancel(err)
			return err
		}
		sched.ReportFailure(seq, fmt.Errorf("sender error %d: %s", m.Code, m.Msg))
		return nil
	default:
		sched.ReportFailure(seq, fmt.Errorf("unexpected message type %T", msg))
		return nil
	}
}

func handleData(sched *scheduler.Scheduler, pl *plan.Plan, bitmap *plan.Bitmap, sink *SinkFile, seq uint32, m *wire.DataV1) error {
	if m.Sequence != seq {
		sched.ReportFailure(seq, fmt.Errorf("sequence mismatch: requested %d got %d", seq, m.Sequence))
		return nil
	}
	if integrity.CRC32(m.Bytes) != m.CRC32 {
		sched.ReportFailure(seq, fmt.Errorf("crc32 mismatch for block %d", seq))
		return nil
	}

	raw := m.Bytes
	if m.Compressed {
		decoded, err := integrity.Decompress(m.Bytes, int(pl.BlockLen(seq)))
		if err != nil {
			sched.ReportFailure(seq, err)
			return nil
		}
		raw = decoded
	}
	if uint32(len(raw)) != pl.BlockLen(seq) {
		sched.ReportFailure(seq, fmt.Errorf("length mismatch for block %d: got %d want %d", seq, len(raw), pl.BlockLen(seq)))
		return nil
	}

	start, _ := pl.BlockRange(seq)
	if err := sink.WriteAt(raw, int64(start)); err != nil {
		fatal := xfererr.Resource("writing block to sink", err)
		sched.Cancel(fatal)
		return fatal
	}
	// Write-then-set-bit ordering, per spec §5: the bit must only
	// transition after the bytes are durably written above.
	if !bitmap.SetIfClear(seq) {
		logrus.WithFields(logrus.Fields{
			"function": "handleData",
			"sequence": seq,
		}).Warn("block already marked received; duplicate write discarded")
		return nil
	}
	sched.ReportSuccess(seq, len(raw))
	return nil
}
