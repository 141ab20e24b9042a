// Command parcel is the CLI surface for the transfer engine: send a
// file to a waiting receiver, or receive one into a directory. Per
// spec §6, argument parsing, progress rendering, and exit-code mapping
// are glue around the session package's Send/Receive operations.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func main() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "send":
		code = runSend(os.Args[2:])
	case "receive":
		code = runReceive(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		fmt.Fprintf(os.Stderr, "parcel: unknown subcommand %q\n", os.Args[1])
		usage()
		code = 1
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  parcel send    <FILE> <HOST> [--block-size N] [--concurrency N] [--control-port N] [--data-port N]
  parcel receive <PATH> [--concurrency N] [--control-port N] [--data-port N]`)
}
