package handshake

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/wire"
	"github.com/parcelxfer/parcel/xfererr"
)

// Listener is the Receiver side of the Control Protocol, wrapping a
// stdlib net.Listener. It runs a background accept loop so a second
// inbound control connection arriving while a transfer is active can be
// rejected with ErrV1{code=BUSY} without blocking the consumer waiting
// on Accept for the first one, per spec §4.2's single-active-transfer
// rule.
type Listener struct {
	ln             net.Listener
	resolver       Resolver
	maxConcurrency uint8
	busy           atomic.Bool
	results        chan acceptResult
}

type acceptResult struct {
	sess *Session
	err  error
}

// Listen starts accepting control connections on addr. maxConcurrency, if
// non-zero, caps the AcceptedConcurrency this Receiver will ever echo back
// in AckV1, regardless of what the Sender requests in HelloV1 — it is the
// Receiver-side override of --concurrency. Zero means defer entirely to
// the Sender's request.
func Listen(addr string, resolver Resolver, maxConcurrency uint8) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xfererr.Transport("listening on control port", err)
	}
	l := &Listener{ln: ln, resolver: resolver, maxConcurrency: maxConcurrency, results: make(chan acceptResult)}
	go l.acceptLoop()
	return l, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close shuts down the listener. Any Accept call blocked waiting for a
// result returns the resulting error.
func (l *Listener) Close() error { return l.ln.Close() }

// Release clears the busy flag, allowing the next control connection
// to proceed past the handshake; connections that arrived while busy
// were already rejected and are not replayed. The session
// orchestrator calls this once a transfer finishes, successfully or not.
func (l *Listener) Release() { l.busy.Store(false) }

// Accept blocks until a Sender completes the handshake successfully,
// or ctx is cancelled, or the listener is closed.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	select {
	case r := <-l.results:
		if r.err != nil {
			return nil, r.err
		}
		return r.sess, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.results <- acceptResult{err: xfererr.Transport("accepting control connection", err)}
			return
		}

		if !l.busy.CompareAndSwap(false, true) {
			go rejectBusy(conn)
			continue
		}

		go func() {
			sess, err := handshakeServer(conn, l.resolver, l.maxConcurrency)
			conn.Close()
			if err != nil {
				l.busy.Store(false)
				logrus.WithFields(logrus.Fields{
					"function": "acceptLoop",
					"error":    err,
				}).Warn("control handshake failed, still listening")
				return
			}
			l.results <- acceptResult{sess: sess}
		}()
	}
}

func rejectBusy(conn net.Conn) {
	defer conn.Close()
	payload, err := wire.Encode(&wire.ErrV1{Code: wire.ErrCodeBusy, Msg: "transfer already in progress"})
	if err != nil {
		return
	}
	_ = wire.WriteFrame(conn, payload)
}

func handshakeServer(conn net.Conn, resolver Resolver, maxConcurrency uint8) (*Session, error) {
	r := bufio.NewReader(conn)

	msg, err := readMessage(r, conn, HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	hello, ok := msg.(*wire.HelloV1)
	if !ok {
		return nil, xfererr.Protocol("expected HelloV1", fmt.Errorf("got %T", msg))
	}

	if err := plan.Validate(hello.Name, hello.Length, hello.BlockSize, hello.Concurrency); err != nil {
		rejectPolicy(conn, err)
		return nil, xfererr.Policy("rejecting handshake", err)
	}

	pl, err := plan.New(hello.Name, hello.Length,
		plan.WithBlockSize(hello.BlockSize),
		plan.WithConcurrency(hello.Concurrency),
		plan.WithHash(hello.Hash),
	)
	if err != nil {
		rejectPolicy(conn, err)
		return nil, xfererr.Policy("building plan from hello", err)
	}

	resumeBitmap, err := negotiateResume(r, conn, resolver, pl)
	if err != nil {
		return nil, err
	}

	accepted := hello.Concurrency
	if maxConcurrency != 0 && maxConcurrency < accepted {
		accepted = maxConcurrency
	}
	pl.Concurrency = accepted

	ack := &wire.AckV1{AcceptedConcurrency: accepted}
	if resumeBitmap != nil {
		ack.HasResumeBitmap = true
		ack.ResumeBitmap = resumeBitmap.Pack()
	}
	if err := writeMessage(conn, ack, HandshakeTimeout); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "handshakeServer",
		"name":     pl.Name,
		"length":   pl.Length,
		"resumed":  resumeBitmap != nil,
	}).Info("accepted control handshake")
	return &Session{Plan: pl, ResumeBitmap: resumeBitmap}, nil
}

// negotiateResume runs the §4.3.1 CrcListV1/CrcListReplyV1 pre-pass when
// the Resolver offers candidates, confirming each one against the
// Sender's own CRC32 before it is allowed into the resume bitmap.
func negotiateResume(r *bufio.Reader, conn net.Conn, resolver Resolver, pl *plan.Plan) (*plan.Bitmap, error) {
	seqs, localCRCs, err := resolver.ResumeCandidates(pl.Name, pl.Length, pl.BlockSize)
	if err != nil {
		return nil, xfererr.Resource("resolving resume candidates", err)
	}
	if len(seqs) == 0 {
		return nil, nil
	}

	if err := writeMessage(conn, &wire.CrcListV1{Sequences: seqs}, HandshakeTimeout); err != nil {
		return nil, err
	}
	msg, err := readMessage(r, conn, HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	reply, ok := msg.(*wire.CrcListReplyV1)
	if !ok {
		return nil, xfererr.Protocol("expected CrcListReplyV1", fmt.Errorf("got %T", msg))
	}
	if len(reply.Crcs) != len(seqs) {
		return nil, xfererr.Protocol("crc list reply length mismatch", fmt.Errorf("got %d want %d", len(reply.Crcs), len(seqs)))
	}

	bitmap := plan.NewBitmap(pl.BlockCount)
	confirmed := 0
	for i, seq := range seqs {
		if reply.Crcs[i] == localCRCs[i] {
			bitmap.SetIfClear(seq)
			confirmed++
		}
	}
	if confirmed == 0 {
		return nil, nil
	}
	return bitmap, nil
}

func rejectPolicy(conn net.Conn, cause error) {
	payload, err := wire.Encode(&wire.ErrV1{Code: wire.ErrCodeRejected, Msg: cause.Error()})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(HandshakeTimeout))
	_ = wire.WriteFrame(conn, payload)
}
