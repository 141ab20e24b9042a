package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/parcelxfer/parcel/plan"
)

func pendingOf(n uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}

func TestTakeAndSuccessCompletes(t *testing.T) {
	bm := plan.NewBitmap(3)
	s := New(bm, pendingOf(3))

	taken := map[uint32]bool{}
	for i := 0; i < 3; i++ {
		seq, ok := s.Take()
		if !ok {
			t.Fatalf("Take %d: expected a block", i)
		}
		taken[seq] = true
	}
	if len(taken) != 3 {
		t.Fatalf("expected 3 distinct blocks, got %v", taken)
	}
	if _, ok := s.Take(); ok {
		t.Fatal("expected no more pending blocks")
	}

	for seq := range taken {
		bm.SetIfClear(seq)
		s.ReportSuccess(seq, 10)
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not signal completion")
	}
	if err := s.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if s.Progress().BlocksReceived() != 3 {
		t.Errorf("expected 3 blocks received, got %d", s.Progress().BlocksReceived())
	}
	if s.Progress().BytesReceived() != 30 {
		t.Errorf("expected 30 bytes received, got %d", s.Progress().BytesReceived())
	}
}

func TestReportFailureRequeues(t *testing.T) {
	bm := plan.NewBitmap(1)
	s := New(bm, pendingOf(1))

	seq, ok := s.Take()
	if !ok {
		t.Fatal("expected a block")
	}
	if err := s.ReportFailure(seq, errors.New("boom")); err != nil {
		t.Fatalf("unexpected fatal: %v", err)
	}

	// Immediately after failure 1, the block is in backoff and should
	// not be eligible yet.
	if _, ok := s.Take(); ok {
		t.Fatal("expected block to be in backoff, not immediately retakeable")
	}
}

func TestExhaustionAbortsSession(t *testing.T) {
	bm := plan.NewBitmap(1)
	s := New(bm, pendingOf(1))

	clock := time.Now()
	s.SetClock(func() time.Time { return clock })

	var lastErr error
	for i := 0; i < MaxAttempts; i++ {
		seq, ok := s.Take()
		if !ok {
			t.Fatalf("attempt %d: expected block eligible under fake clock", i)
		}
		lastErr = s.ReportFailure(seq, errors.New("boom"))
		clock = clock.Add(maxBackoff) // fast-forward past any backoff
	}
	if lastErr == nil {
		t.Fatal("expected exhaustion error on final attempt")
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not signal completion after exhaustion")
	}
	var exhausted *BlockExhaustedError
	if !errors.As(s.Err(), &exhausted) {
		t.Fatalf("expected BlockExhaustedError, got %v", s.Err())
	}
}

func TestAlreadyCompleteBitmapFinishesImmediately(t *testing.T) {
	bm := plan.NewBitmap(0)
	s := New(bm, nil)
	select {
	case <-s.Done():
	default:
		t.Fatal("expected scheduler with empty plan to be immediately done")
	}
	if err := s.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
