package scheduler

import "sync/atomic"

// int64Counter is a monotonically non-decreasing atomic counter with
// release-semantic adds, per spec §5's progress-counter requirement.
type int64Counter struct {
	v atomic.Uint64
}

func (c *int64Counter) add(n uint64) { c.v.Add(n) }
func (c *int64Counter) load() uint64 { return c.v.Load() }

// boolFlag is the single cancellation flag from spec §5.
type boolFlag struct {
	v atomic.Bool
}

func (f *boolFlag) set()      { f.v.Store(true) }
func (f *boolFlag) get() bool { return f.v.Load() }
