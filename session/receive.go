package session

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/handshake"
	"github.com/parcelxfer/parcel/integrity"
	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/scheduler"
	"github.com/parcelxfer/parcel/worker"
	"github.com/parcelxfer/parcel/xfererr"
)

// Receive accepts one transfer into destDir, per spec §4.2–§4.5: it
// listens on the control and data ports, negotiates a Transfer Plan
// (offering a resume bitmap if a matching `.partial` file already
// exists), drives the Block Scheduler and Worker Transport loops to
// completion, then verifies the whole-file hash before finalizing the
// Sink File.
func Receive(ctx context.Context, destDir string, opts ReceiveOptions) error {
	controlAddr := fmt.Sprintf(":%d", opts.controlPort())
	dataAddr := fmt.Sprintf(":%d", opts.dataPort())

	// The destination path depends on the name the Sender offers in
	// HelloV1, which the resolver needs before the handshake completes
	// to decide whether a `.partial` file already matches. We resolve
	// against the directory now and let the resolver join the name once
	// the control listener hands back plan.Name via the Resolver
	// callback's own parameter.
	resolver := &dirResolver{destDir: destDir}

	ctrlLn, err := handshake.Listen(controlAddr, resolver, opts.Concurrency)
	if err != nil {
		return err
	}
	defer ctrlLn.Close()

	dataLn, err := net.Listen("tcp", dataAddr)
	if err != nil {
		return xfererr.Transport("listening on data port", err)
	}
	defer dataLn.Close()

	sess, err := ctrlLn.Accept(ctx)
	if err != nil {
		return err
	}
	defer ctrlLn.Release()

	pl := sess.Plan
	destPath := filepath.Join(destDir, pl.Name)

	bitmap := sess.ResumeBitmap
	if bitmap == nil {
		bitmap = plan.NewBitmap(pl.BlockCount)
	}
	pending := bitmap.Missing()

	sink, err := worker.CreateSink(destPath, pl.Length)
	if err != nil {
		return err
	}

	sched := scheduler.New(bitmap, pending)
	if opts.OnProgress != nil {
		opts.OnProgress(pl.Length, sched.Progress())
	}

	logrus.WithFields(logrus.Fields{
		"function": "Receive",
		"name":     pl.Name,
		"length":   pl.Length,
		"blocks":   pl.BlockCount,
		"resumed":  pl.BlockCount - uint32(len(pending)),
	}).Info("accepted handshake, opening data connections")

	if err := runDataConnections(ctx, dataLn, sched, pl, bitmap, sink); err != nil {
		_ = sink.Abort(true)
		return err
	}

	if sched.Err() != nil {
		_ = sink.Abort(true)
		return sched.Err()
	}

	return finalize(ctx, sink, pl)
}

// runDataConnections accepts pl.Concurrency connections on dataLn and
// runs a ReceiverLoop on each, until the scheduler completes or a loop
// reports a fatal error.
func runDataConnections(ctx context.Context, dataLn net.Listener, sched *scheduler.Scheduler, pl *plan.Plan, bitmap *plan.Bitmap, sink *worker.SinkFile) error {
	var wg sync.WaitGroup
	errs := make(chan error, pl.Concurrency)
	conns := make(chan net.Conn, pl.Concurrency)

	go func() {
		for i := uint8(0); i < pl.Concurrency; i++ {
			conn, err := dataLn.Accept()
			if err != nil {
				errs <- xfererr.Transport("accepting data connection", err)
				return
			}
			conns <- conn
		}
	}()

	for i := uint8(0); i < pl.Concurrency; i++ {
		select {
		case conn := <-conns:
			wg.Add(1)
			go func(conn net.Conn) {
				defer wg.Done()
				defer conn.Close()
				if err := worker.ReceiverLoop(conn, sched, pl, bitmap, sink); err != nil {
					errs <- err
				}
			}(conn)
		case err := <-errs:
			return err
		case <-sched.Done():
			// Completed (e.g. fully resumed already) before every
			// worker slot connected; no more are needed.
			wg.Wait()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// finalize verifies the whole-file hash and either renames the Sink
// File into place or preserves it as `.corrupt`, per spec §4.5.
func finalize(ctx context.Context, sink *worker.SinkFile, pl *plan.Plan) error {
	got, err := integrity.HashFile(ctx, sink, pl.Length, hashConcurrency)
	if err != nil {
		_ = sink.Abort(true)
		return xfererr.Integrity("hashing reassembled file", err)
	}
	if got != pl.Hash {
		if err := sink.PreserveCorrupt(); err != nil {
			return xfererr.Resource("preserving corrupt sink file", err)
		}
		return xfererr.Integrity("whole-file hash mismatch", fmt.Errorf("got %x want %x", got, pl.Hash))
	}
	if err := sink.Finalize(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"function": "finalize",
		"name":     pl.Name,
	}).Info("transfer complete, hash verified")
	return nil
}
