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
	"github.com/parcelxfer/parcel/worker"
	"github.com/parcelxfer/parcel/xfererr"
)

// hashConcurrency bounds the I/O fan-out used for the pre-transfer
// whole-file hash; it is independent of the transfer's own concurrency.
const hashConcurrency = 4

// Send transfers path to the Receiver listening at host, per spec §4.2
// and §4.4: it dials the control port, negotiates a Transfer Plan
// (picking up any resume bitmap the Receiver offers), runs the
// compression probe, then dials the data port once per accepted worker
// slot and serves block requests until every data connection closes.
func Send(ctx context.Context, path, host string, opts SendOptions) error {
	source, err := worker.OpenSource(path)
	if err != nil {
		return xfererr.Resource("opening source file", err)
	}
	defer source.Close()

	length := uint64(source.Size())
	hash, err := integrity.HashFile(ctx, source, length, hashConcurrency)
	if err != nil {
		return xfererr.Integrity("hashing source file", err)
	}

	planOpts := []plan.Option{plan.WithHash(hash)}
	if opts.BlockSize != 0 {
		planOpts = append(planOpts, plan.WithBlockSize(opts.BlockSize))
	}
	if opts.Concurrency != 0 {
		planOpts = append(planOpts, plan.WithConcurrency(opts.Concurrency))
	}
	pl, err := plan.New(filepath.Base(path), length, planOpts...)
	if err != nil {
		return xfererr.Policy("building transfer plan", err)
	}

	crcSrc := &sourceCRCSource{source: source, plan: pl}
	controlAddr := net.JoinHostPort(host, fmt.Sprint(opts.controlPort()))
	if _, err := handshake.Dial(ctx, controlAddr, pl, crcSrc); err != nil {
		return err
	}

	if err := resolveCompression(pl, source); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"name":        pl.Name,
		"length":      pl.Length,
		"blocks":      pl.BlockCount,
		"concurrency": pl.Concurrency,
	}).Info("handshake complete, opening data connections")

	dataAddr := net.JoinHostPort(host, fmt.Sprint(opts.dataPort()))
	return serveDataConnections(ctx, dataAddr, source, pl)
}

// resolveCompression runs the one-shot probe over block 0, per spec
// §4.5. An empty file (BlockCount 0) has nothing to probe and simply
// leaves compression off.
func resolveCompression(pl *plan.Plan, source *worker.SourceFile) error {
	if pl.BlockCount == 0 {
		pl.ResolveCompression(false)
		return nil
	}
	start, end := pl.BlockRange(0)
	block := make([]byte, end-start)
	if _, err := source.ReadAt(block, int64(start)); err != nil {
		return xfererr.Resource("reading probe block", err)
	}
	result, err := integrity.Probe(block)
	if err != nil {
		return xfererr.Resource("running compression probe", err)
	}
	pl.ResolveCompression(result.Enable)
	return nil
}

// serveDataConnections dials pl.Concurrency connections to dataAddr and
// runs a SenderLoop on each, returning the first fatal error any of
// them reports (a graceful close from the Receiver reports nil).
func serveDataConnections(ctx context.Context, dataAddr string, source *worker.SourceFile, pl *plan.Plan) error {
	var wg sync.WaitGroup
	errs := make(chan error, pl.Concurrency)

	for i := uint8(0); i < pl.Concurrency; i++ {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", dataAddr)
		if err != nil {
			return xfererr.Transport("dialing data port", err)
		}
		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			if err := worker.SenderLoop(ctx, conn, source, pl); err != nil {
				errs <- err
			}
		}(conn)
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
