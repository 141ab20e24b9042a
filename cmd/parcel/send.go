package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/session"
	"github.com/parcelxfer/parcel/xfererr"
)

func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	blockSize := fs.Uint("block-size", 0, "block size in bytes (default: engine default)")
	concurrency := fs.Uint("concurrency", 0, "number of data connections (default: engine default)")
	controlPort := fs.Int("control-port", session.DefaultControlPort, "receiver's control port")
	dataPort := fs.Int("data-port", session.DefaultDataPort, "receiver's data port")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: parcel send <FILE> <HOST> [flags]")
		return 1
	}
	path, host := fs.Arg(0), fs.Arg(1)

	opts := session.SendOptions{
		BlockSize:   uint32(*blockSize),
		Concurrency: uint8(*concurrency),
		ControlPort: *controlPort,
		DataPort:    *dataPort,
	}

	log.WithFields(logrus.Fields{
		"file": path,
		"host": host,
	}).Info("starting send")

	if err := session.Send(context.Background(), path, host, opts); err != nil {
		return exitCodeFor(err)
	}
	log.Info("send complete")
	return 0
}

func exitCodeFor(err error) int {
	log.WithError(err).Error("transfer failed")
	var xe *xfererr.Error
	if errors.As(err, &xe) {
		return xe.ExitCode()
	}
	return 1
}
