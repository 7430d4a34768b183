package executor

import "sync/atomic"

// Counters are the executor's request statistics. The struct is owned by
// whoever constructs the executor and passed in by reference; there is no
// package-level instance. All fields are atomics so the serving path
// never takes a lock to count.
type Counters struct {
	Submitted atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	TimedOut  atomic.Int64
	Cancelled atomic.Int64
}

// Snapshot is a point-in-time copy of the counters for reporting.
type Snapshot struct {
	Submitted int64 `json:"submitted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	TimedOut  int64 `json:"timedOut"`
	Cancelled int64 `json:"cancelled"`
}

// Snapshot reads all counters at once.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Submitted: c.Submitted.Load(),
		Succeeded: c.Succeeded.Load(),
		Failed:    c.Failed.Load(),
		TimedOut:  c.TimedOut.Load(),
		Cancelled: c.Cancelled.Load(),
	}
}
