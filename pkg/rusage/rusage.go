// Package rusage reads the resource usage of the current process or of
// the calling OS thread.
package rusage

import "time"

// Usage is a snapshot of process resource consumption.
type Usage struct {
	// CPUTime is user plus system CPU time.
	CPUTime time.Duration
	// MaxRSSKB is the peak resident set size in kilobytes.
	MaxRSSKB int64
}

// Meter reports process resource usage. The generator samples it around
// the send loop.
type Meter interface {
	Sample() (Usage, error)
}

// Process returns the Meter for the running process.
func Process() Meter {
	return processMeter{}
}

type processMeter struct{}

func (processMeter) Sample() (Usage, error) {
	return sample()
}

// Thread returns a Meter for the calling OS thread. The caller must hold
// runtime.LockOSThread between samples. On platforms without per-thread
// accounting (see ThreadScoped) it reports the whole process.
func Thread() Meter {
	return threadMeter{}
}

// ThreadScoped reports whether Thread measures the calling thread only.
const ThreadScoped = threadScoped

type threadMeter struct{}

func (threadMeter) Sample() (Usage, error) {
	return sampleThread()
}
