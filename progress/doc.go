// Package progress renders a terminal progress indicator for a Receive
// transfer, driven by a ticking goroutine exactly as the pack's
// keshon-bvc progress tracker does. It is external glue, explicitly out
// of the spec's core scope (spec §1), but is carried here so the CLI
// has something to show a user.
package progress
