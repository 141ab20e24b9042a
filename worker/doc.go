// Package worker implements the per-connection Worker Transport loops
// from spec §4.4: the Sender's stateless request/response responder and
// the Receiver's pull-lease/verify/write loop. Workers hold no state
// across blocks; they communicate with the Block Scheduler only through
// Take/ReportSuccess/ReportFailure, keeping the ownership hierarchy
// strictly hierarchical: the session owns the scheduler, workers are
// detached joinable units that never retain scheduler identity beyond
// a method call, per spec §9.
package worker
