package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/progress"
	"github.com/parcelxfer/parcel/scheduler"
	"github.com/parcelxfer/parcel/session"
)

func runReceive(args []string) int {
	fs := flag.NewFlagSet("receive", flag.ContinueOnError)
	concurrency := fs.Uint("concurrency", 0, "number of data connections to accept (default: sender's request)")
	controlPort := fs.Int("control-port", session.DefaultControlPort, "control port to listen on")
	dataPort := fs.Int("data-port", session.DefaultDataPort, "data port to listen on")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: parcel receive <PATH> [flags]")
		return 1
	}
	destDir := fs.Arg(0)

	opts := session.ReceiveOptions{
		Concurrency: uint8(*concurrency),
		ControlPort: *controlPort,
		DataPort:    *dataPort,
		OnProgress: func(total uint64, prog *scheduler.Progress) {
			renderer = progress.New(total, destDir, prog)
		},
	}

	log.WithFields(logrus.Fields{
		"dest":         destDir,
		"control_port": *controlPort,
		"data_port":    *dataPort,
	}).Info("waiting for sender")

	err := session.Receive(context.Background(), destDir, opts)
	if renderer != nil {
		renderer.Finish()
	}
	if err != nil {
		return exitCodeFor(err)
	}
	log.Info("receive complete")
	return 0
}

// renderer is package-scoped so OnProgress's closure can hand it back
// to runReceive for Finish() once Receive returns.
var renderer *progress.Renderer
