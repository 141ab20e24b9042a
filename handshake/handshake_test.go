package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parcelxfer/parcel/integrity"
	"github.com/parcelxfer/parcel/plan"
)

type fixedCRCSource struct{ data []byte }

func (f fixedCRCSource) BlockCRC32(seq uint32) (uint32, error) {
	start := int(seq) * (1 << 20)
	end := start + (1 << 20)
	if end > len(f.data) {
		end = len(f.data)
	}
	return integrity.CRC32(f.data[start:end]), nil
}

func dialListener(t *testing.T, ln *Listener, pl *plan.Plan, src CRCSource) (*Session, *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type dialResult struct {
		sess *Session
		err  error
	}
	dialCh := make(chan dialResult, 1)
	go func() {
		sess, err := Dial(ctx, ln.Addr().String(), pl, src)
		dialCh <- dialResult{sess, err}
	}()

	serverSess, err := ln.Accept(ctx)
	require.NoError(t, err)
	res := <-dialCh
	require.NoError(t, res.err)
	return serverSess, res.sess
}

func TestFreshHandshake(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", NoResume{}, 0)
	require.NoError(t, err)
	defer ln.Close()

	pl, err := plan.New("sample.bin", 5*1024*1024, plan.WithBlockSize(1<<20), plan.WithConcurrency(3))
	require.NoError(t, err)

	serverSess, clientSess := dialListener(t, ln, pl, fixedCRCSource{})

	require.Nil(t, serverSess.ResumeBitmap, "expected no resume bitmap on a fresh handshake")
	require.Nil(t, clientSess.ResumeBitmap, "client should see no resume bitmap either")
	require.Equal(t, "sample.bin", serverSess.Plan.Name)
	require.Equal(t, pl.Length, serverSess.Plan.Length)
	require.EqualValues(t, 3, clientSess.Plan.Concurrency)
}

type resolverFixture struct {
	seqs []uint32
	crcs []uint32
}

func (r resolverFixture) ResumeCandidates(string, uint64, uint32) ([]uint32, []uint32, error) {
	return r.seqs, r.crcs, nil
}

func TestResumeHandshakeConfirmsAgainstSenderCRC(t *testing.T) {
	data := make([]byte, 3*1024*1024+100)
	for i := range data {
		data[i] = byte(i)
	}
	src := fixedCRCSource{data: data}

	// Receiver believes it already has blocks 0 and 1; block 0's local
	// CRC matches the source, block 1's does not (simulating a torn
	// write it must not trust blindly).
	trueCRC0, _ := src.BlockCRC32(0)
	resolver := resolverFixture{
		seqs: []uint32{0, 1},
		crcs: []uint32{trueCRC0, 0xdeadbeef},
	}

	ln, err := Listen("127.0.0.1:0", resolver, 0)
	require.NoError(t, err)
	defer ln.Close()

	pl, err := plan.New("resume.bin", uint64(len(data)), plan.WithBlockSize(1<<20))
	require.NoError(t, err)

	serverSess, clientSess := dialListener(t, ln, pl, src)

	require.NotNil(t, serverSess.ResumeBitmap)
	require.True(t, serverSess.ResumeBitmap.Get(0), "block 0 should be confirmed resumable")
	require.False(t, serverSess.ResumeBitmap.Get(1), "block 1 should not be trusted: its local crc didn't match the sender's")
	require.NotNil(t, clientSess.ResumeBitmap)
	require.True(t, clientSess.ResumeBitmap.Get(0), "client should see the same confirmed resume bitmap")
}

func TestBusyRejectsSecondHandshake(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", NoResume{}, 0)
	require.NoError(t, err)
	defer ln.Close()

	pl, err := plan.New("one.bin", 1024)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	firstDone := make(chan error, 1)
	go func() {
		_, err := Dial(ctx, ln.Addr().String(), pl, fixedCRCSource{})
		firstDone <- err
	}()
	_, err = ln.Accept(ctx)
	require.NoError(t, err)
	require.NoError(t, <-firstDone)
	// ln.Release() is not called: the orchestrator hasn't finished the
	// (simulated) transfer yet, so a second handshake attempt must be
	// rejected as busy.

	pl2, err := plan.New("two.bin", 1024)
	require.NoError(t, err)
	_, err = Dial(ctx, ln.Addr().String(), pl2, fixedCRCSource{})
	require.ErrorIs(t, err, ErrBusy)
}

func TestReceiverConcurrencyCapOverridesSenderRequest(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", NoResume{}, 2)
	require.NoError(t, err)
	defer ln.Close()

	pl, err := plan.New("big.bin", 10*1024*1024, plan.WithConcurrency(8))
	require.NoError(t, err)

	serverSess, clientSess := dialListener(t, ln, pl, fixedCRCSource{})

	require.EqualValues(t, 2, serverSess.Plan.Concurrency, "receiver's cap should win over the sender's request")
	require.EqualValues(t, 2, clientSess.Plan.Concurrency, "sender should learn the capped concurrency from the ack")
}
