// Package sysmetrics samples process-level resource usage (CPU percent,
// RSS, goroutine count) on a timer, feeding the additive "system" block
// of the GET /health response. Grounded on
// adred-codev-ws_poc/go-server/internal/metrics/system.go's SystemMetrics
// (gopsutil CPU sampling with an EMA smoother), adapted to also report
// RSS via gopsutil/process rather than runtime.MemStats' heap figure.
package sysmetrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"pubsub-broker/internal/snapshot"
)

// Sampler tracks smoothed CPU usage and the latest RSS/goroutine reading
// for this process. The zero value is not usable; construct with New.
type Sampler struct {
	proc *process.Process

	mu         sync.RWMutex
	cpuPercent float64
	memoryMB   float64
}

// New constructs a Sampler bound to the current process.
func New() (*Sampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: p}, nil
}

// Run samples on the given interval until ctx is cancelled. Intended to
// be launched as its own goroutine by cmd/broker.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	s.sample()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	currentCPU, err := s.proc.Percent(0)
	if err != nil {
		currentCPU = 0
	}

	s.mu.Lock()
	if s.cpuPercent == 0 {
		s.cpuPercent = currentCPU
	} else {
		// Exponential moving average to avoid spiky single-sample reads.
		const alpha = 0.3
		s.cpuPercent = alpha*currentCPU + (1-alpha)*s.cpuPercent
	}
	s.mu.Unlock()

	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		s.mu.Lock()
		s.memoryMB = float64(mem.RSS) / 1024 / 1024
		s.mu.Unlock()
	}
}

// Snapshot returns the most recent reading as a snapshot.SystemStats.
func (s *Sampler) Snapshot() *snapshot.SystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &snapshot.SystemStats{
		CPUPercent:   s.cpuPercent,
		MemoryMB:     s.memoryMB,
		NumGoroutine: runtime.NumGoroutine(),
	}
}
