package runlog

import (
	"sync"
	"time"
)

// counters is the mutex-guarded Stats shared by every Sink.
type counters struct {
	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

func newCounters(runID string, now func() time.Time) *counters {
	if now == nil {
		now = time.Now
	}
	return &counters{
		stats: Stats{RunID: runID, StartedAt: now().UTC().Truncate(time.Second)},
		now:   now,
	}
}

func (c *counters) Add(stat Stat, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.stats.counter(stat); p != nil {
		*p += n
	}
}

func (c *counters) MaxCoverage(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.stats.Coverage {
		c.stats.Coverage = v
	}
}

func (c *counters) SetSelected(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.OppsSelected = n
}

func (c *counters) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *counters) finish() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Second)
	c.stats.FinishedAt = &t
	return c.stats
}

// Discard is a Sink that keeps counters but writes nothing. Dry runs use it.
type Discard struct {
	*counters
}

// NewDiscard returns a Discard sink for runID.
func NewDiscard(runID string) *Discard {
	return &Discard{counters: newCounters(runID, nil)}
}

func (d *Discard) Event(string, Fields) {}

func (d *Discard) Error(ErrorEntry) { d.Add(Failures, 1) }

func (d *Discard) Finalize(string) (Stats, error) { return d.finish(), nil }
