// Package scheduler implements the Receiver-side Block Scheduler: the
// pending-block queue, work-stealing lease dispatch, retry backoff, and
// fatal-exhaustion detection described in spec §4.3. The Scheduler owns
// no network or file I/O itself; Worker Transport goroutines pull
// leases from it and report outcomes back, exactly as the teacher's
// Manager/Transfer split keeps transport and state separate.
package scheduler
