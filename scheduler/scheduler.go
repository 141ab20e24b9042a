package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parcelxfer/parcel/plan"
	"github.com/parcelxfer/parcel/xfererr"
)

// Defaults mirror spec §4.3 and §5: lease/retry timing and the
// exhaustion threshold after which a block is declared unrecoverable.
const (
	DefaultLeaseDeadline = 30 * time.Second
	MaxAttempts          = 5
	baseBackoff          = 500 * time.Millisecond
	maxBackoff           = 8 * time.Second
)

// BlockExhaustedError reports that a block failed MaxAttempts times and
// the session must abort, per spec §4.3.
type BlockExhaustedError struct {
	Sequence uint32
}

func (e *BlockExhaustedError) Error() string {
	return fmt.Sprintf("block %d exhausted after %d attempts", e.Sequence, MaxAttempts)
}

// Progress holds the two monotonically non-decreasing atomic counters
// from spec §3's data model. Workers update them with release-semantic
// atomic adds after a block's bytes are durably written.
type Progress struct {
	bytesReceived  int64Counter
	blocksReceived int64Counter
}

// BytesReceived returns the current byte count.
func (p *Progress) BytesReceived() uint64 { return p.bytesReceived.load() }

// BlocksReceived returns the current block count.
func (p *Progress) BlocksReceived() uint64 { return p.blocksReceived.load() }

func (p *Progress) add(bytes uint64) {
	p.bytesReceived.add(bytes)
	p.blocksReceived.add(1)
}

// blockState tracks one pending-or-leased block's retry bookkeeping.
type blockState struct {
	attempts    int
	leasedUntil time.Time // zero means not currently leased
	retryAfter  time.Time // zero means immediately eligible
}

// Scheduler owns the set of outstanding block sequence numbers on the
// Receiver: the Pending queue, the lease/retry bookkeeping, and the
// single cancellation flag from spec §5. It does not touch the network
// or the file; Worker Transport goroutines call Take/ReportSuccess/
// ReportFailure.
type Scheduler struct {
	bitmap *plan.Bitmap
	prog   Progress

	mu      sync.Mutex
	pending []uint32
	states  map[uint32]*blockState

	leaseDeadline time.Duration
	now           func() time.Time

	cancelled   boolFlag
	fatalOnce   sync.Once
	fatalErr    error
	doneCh      chan struct{}
	completeVal bool
}

// New builds a Scheduler against bitmap, seeding the Pending queue with
// the given sequence numbers (the complement of any resume bitmap).
func New(bitmap *plan.Bitmap, pending []uint32) *Scheduler {
	s := &Scheduler{
		bitmap:        bitmap,
		pending:       append([]uint32(nil), pending...),
		states:        make(map[uint32]*blockState, len(pending)),
		leaseDeadline: DefaultLeaseDeadline,
		now:           time.Now,
		doneCh:        make(chan struct{}),
	}
	for _, seq := range pending {
		s.states[seq] = &blockState{}
	}
	if bitmap.Complete() {
		s.finish(nil)
	}
	return s
}

// Progress exposes the scheduler's atomic counters to the progress
// renderer and to completion logic.
func (s *Scheduler) Progress() *Progress { return &s.prog }

// SetClock overrides the time source used for lease and backoff
// deadlines, mirroring the teacher's TimeProvider injection pattern.
// Intended for deterministic tests; production callers never need it.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Done returns a channel closed when the transfer has completed
// successfully or failed fatally.
func (s *Scheduler) Done() <-chan struct{} { return s.doneCh }

// Err returns the fatal error that ended the session, or nil if the
// session completed successfully. Only meaningful after Done() closes.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// Cancel sets the cancellation flag; workers observe it via Cancelled
// and stop requesting new leases. Best-effort and eventual, per spec §5.
func (s *Scheduler) Cancel(err error) {
	s.cancelled.set()
	s.finish(err)
}

// Cancelled reports whether cancellation has been requested.
func (s *Scheduler) Cancelled() bool { return s.cancelled.get() }

// Take pulls the next eligible pending block and leases it to the
// caller, reclaiming any leases whose deadline has passed first. Any
// worker may take any pending block: this is the work-stealing dispatch
// spec §4.3 requires so one stalled connection never head-of-line
// blocks the rest.
func (s *Scheduler) Take() (seq uint32, ok bool) {
	if s.cancelled.get() {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	s.reclaimExpiredLeases(now)

	for i, candidate := range s.pending {
		st := s.states[candidate]
		if !st.retryAfter.IsZero() && now.Before(st.retryAfter) {
			continue
		}
		s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
		st.leasedUntil = now.Add(s.leaseDeadline)
		return candidate, true
	}
	return 0, false
}

// reclaimExpiredLeases moves blocks whose lease deadline passed with no
// progress back onto Pending, per spec §4.3's revert-after-lease rule.
func (s *Scheduler) reclaimExpiredLeases(now time.Time) {
	for seq, st := range s.states {
		if !st.leasedUntil.IsZero() && now.After(st.leasedUntil) {
			if s.bitmap.Get(seq) {
				continue
			}
			st.leasedUntil = time.Time{}
			s.pending = append(s.pending, seq)
			logrus.WithFields(logrus.Fields{
				"function": "reclaimExpiredLeases",
				"sequence": seq,
			}).Warn("lease expired with no progress, reverting to pending")
		}
	}
}

// ReportSuccess records that seq's bytes were durably written and its
// bitmap bit set (the caller does the write-then-set-bit itself; this
// only updates scheduler bookkeeping and progress counters). It signals
// completion once every block is accounted for.
func (s *Scheduler) ReportSuccess(seq uint32, blockLen int) {
	s.prog.add(uint64(blockLen))

	s.mu.Lock()
	delete(s.states, seq)
	complete := s.bitmap.Complete()
	s.mu.Unlock()

	if complete {
		s.finish(nil)
	}
}

// ReportFailure records a failed attempt at seq (network error, decode
// failure, CRC mismatch, or timeout). It schedules the next attempt
// with exponential backoff, or declares the block exhausted and aborts
// the session after MaxAttempts failures, per spec §4.3.
func (s *Scheduler) ReportFailure(seq uint32, cause error) error {
	s.mu.Lock()
	st, ok := s.states[seq]
	if !ok {
		st = &blockState{}
		s.states[seq] = st
	}
	st.attempts++
	attempt := st.attempts
	st.leasedUntil = time.Time{}

	if attempt >= MaxAttempts {
		s.mu.Unlock()
		err := xfererr.Transport("block exhausted", &BlockExhaustedError{Sequence: seq})
		s.finish(err)
		return err
	}

	delay := backoff(attempt)
	st.retryAfter = s.now().Add(delay)
	s.pending = append(s.pending, seq)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "ReportFailure",
		"sequence": seq,
		"attempt":  attempt,
		"delay":    delay,
		"cause":    cause,
	}).Warn("block attempt failed, scheduling retry")
	return nil
}

// backoff computes min(500ms * 2^(k-1), 8s) for attempt k, per spec §4.3.
func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func (s *Scheduler) finish(err error) {
	s.fatalOnce.Do(func() {
		s.mu.Lock()
		s.fatalErr = err
		s.mu.Unlock()
		close(s.doneCh)
	})
}
