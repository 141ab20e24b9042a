package worker

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/integrity"
	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/wire"
	"github.com/parcelxfer/parcel/xfererr"
)

// OpTimeout is the per-read/write deadline from spec §5.
const OpTimeout = 30 * time.Second

// SenderLoop is the Sender-side data-connection loop from spec §4.4: it
// is stateless across blocks, so any connection can serve any block.
// It reads RequestV1 frames and answers with DataV1, honoring the
// session's resolved compression disposition and re-checking the
// Source File's identity before every read.
func SenderLoop(ctx context.Context, conn net.Conn, source *SourceFile, pl *plan.Plan) error {
	r := bufio.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(OpTimeout))
		frame, err := wire.ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return xfererr.Transport("reading request frame", err)
		}

		msg, err := wire.Decode(frame.Payload)
		if err != nil {
			return xfererr.Protocol("decoding request", err)
		}
		req, ok := msg.(*wire.RequestV1)
		if !ok {
			return xfererr.Protocol("unexpected message type in sender loop", nil)
		}

		if err := respondToRequest(conn, source, pl, req.Sequence); err != nil {
			return err
		}
	}
}

func respondToRequest(conn net.Conn, source *SourceFile, pl *plan.Plan, seq uint32) error {
	changed, err := source.Changed()
	if err != nil {
		return xfererr.Resource("restatting source file", err)
	}
	if changed {
		sendErr(conn, wire.ErrCodeSourceChanged, ErrSourceChanged.Error())
		return xfererr.Protocol("source file changed mid-transfer", ErrSourceChanged)
	}

	start, end := pl.BlockRange(seq)
	raw := make([]byte, end-start)
	if _, err := source.ReadAt(raw, int64(start)); err != nil && err != io.EOF {
		return xfererr.Resource("reading source block", err)
	}

	payload := raw
	compressed := false
	if pl.CompressionState() == plan.CompressionOn {
		c, err := integrity.Compress(raw)
		if err != nil {
			return xfererr.Resource("compressing block", err)
		}
		payload = c
		compressed = true
	}

	data := &wire.DataV1{
		Sequence:   seq,
		CRC32:      integrity.CRC32(payload),
		Compressed: compressed,
		Bytes:      payload,
	}
	encoded, err := wire.Encode(data)
	if err != nil {
		return xfererr.Protocol("encoding data response", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(OpTimeout))
	if err := wire.WriteFrame(conn, encoded); err != nil {
		return xfererr.Transport("writing data response", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "respondToRequest",
		"sequence":   seq,
		"compressed": compressed,
		"bytes":      len(payload),
	}).Debug("served block")
	return nil
}

func sendErr(conn net.Conn, code uint16, msg string) {
	payload, err := wire.Encode(&wire.ErrV1{Code: code, Msg: msg})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(OpTimeout))
	_ = wire.WriteFrame(conn, payload)
}
