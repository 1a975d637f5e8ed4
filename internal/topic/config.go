package topic

import "time"

// Config holds the tunables spec.md §3 assigns per topic. Every field
// has the spec's default; internal/config wires these from the process
// Config so an operator can override them per deployment.
type Config struct {
	ReplayCapacity   int
	QueueCapacity    int
	BatchSize        int
	BatchTimeout     time.Duration
	SendTimeout      time.Duration
	MetricsSampleCap int
}

// DefaultConfig returns the spec's reference defaults.
func DefaultConfig() Config {
	return Config{
		ReplayCapacity:   100,
		QueueCapacity:    10000,
		BatchSize:        10,
		BatchTimeout:     20 * time.Millisecond,
		SendTimeout:      500 * time.Millisecond,
		MetricsSampleCap: 1000,
	}
}

// sanitize coerces non-positive tunables to the reference defaults so a
// misconfigured deployment degrades to spec behavior instead of
// deadlocking (a zero BatchTimeout, for instance, would busy-loop the
// delivery worker).
func (c Config) sanitize() Config {
	d := DefaultConfig()
	if c.ReplayCapacity <= 0 {
		c.ReplayCapacity = d.ReplayCapacity
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = d.BatchTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.MetricsSampleCap <= 0 {
		c.MetricsSampleCap = d.MetricsSampleCap
	}
	return c
}
