package worker

import (
	"context"
	"crypto/rand"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/scheduler"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "source-*")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestSenderReceiverRoundTrip(t *testing.T) {
	data := make([]byte, 3*1024*1024+17)
	_, err := rand.Read(data)
	require.NoError(t, err)
	srcPath := writeTempFile(t, data)

	pl, err := plan.New("sample.bin", uint64(len(data)), plan.WithBlockSize(1<<20), plan.WithConcurrency(2))
	require.NoError(t, err)
	pl.ResolveCompression(false)

	source, err := OpenSource(srcPath)
	require.NoError(t, err)
	defer source.Close()

	sinkPath := writeTempFile(t, nil)
	require.NoError(t, os.Remove(sinkPath))
	sink, err := CreateSink(sinkPath, uint64(len(data)))
	require.NoError(t, err)

	bitmap := plan.NewBitmap(pl.BlockCount)
	pending := make([]uint32, pl.BlockCount)
	for i := range pending {
		pending[i] = uint32(i)
	}
	sched := scheduler.New(bitmap, pending)

	serverConn, clientConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	senderDone := make(chan error, 1)
	go func() {
		senderDone <- SenderLoop(ctx, serverConn, source, pl)
	}()

	receiverDone := make(chan error, 1)
	go func() {
		receiverDone <- ReceiverLoop(clientConn, sched, pl, bitmap, sink)
	}()

	select {
	case <-sched.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("transfer did not complete in time")
	}
	require.NoError(t, sched.Err())

	clientConn.Close()
	cancel()
	serverConn.Close()
	<-receiverDone
	<-senderDone

	require.NoError(t, sink.Finalize())

	got, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	require.Equal(t, len(data), len(got))
	require.Equal(t, data, got)
}

func TestResumeSkipsConfirmedBlocks(t *testing.T) {
	data := make([]byte, 2*1024*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)
	srcPath := writeTempFile(t, data)

	pl, err := plan.New("sample.bin", uint64(len(data)), plan.WithBlockSize(1<<20))
	require.NoError(t, err)
	pl.ResolveCompression(false)

	source, err := OpenSource(srcPath)
	require.NoError(t, err)
	defer source.Close()

	// Simulate a prior partial transfer that already wrote block 0.
	sinkPath := writeTempFile(t, nil)
	require.NoError(t, os.Remove(sinkPath))
	sink, err := CreateSink(sinkPath, uint64(len(data)))
	require.NoError(t, err)
	require.NoError(t, sink.WriteAt(data[:1<<20], 0))

	bitmap := plan.NewBitmap(pl.BlockCount)
	bitmap.SetIfClear(0)
	sched := scheduler.New(bitmap, bitmap.Missing())
	require.Equal(t, []uint32{1}, bitmap.Missing())

	serverConn, clientConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go SenderLoop(ctx, serverConn, source, pl)
	go ReceiverLoop(clientConn, sched, pl, bitmap, sink)

	select {
	case <-sched.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("resume transfer did not complete in time")
	}
	require.NoError(t, sched.Err())

	clientConn.Close()
	cancel()
	serverConn.Close()

	require.NoError(t, sink.Finalize())
	got, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	require.Equal(t, data, got)
}
