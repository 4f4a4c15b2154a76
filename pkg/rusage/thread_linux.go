//go:build linux

package rusage

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const threadScoped = true

// sampleThread reads RUSAGE_THREAD. The kernel still reports the
// process-wide peak RSS there.
func sampleThread() (Usage, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		return Usage{}, fmt.Errorf("getrusage (thread) failed: %w", err)
	}
	return Usage{
		CPUTime:  time.Duration(ru.Utime.Nano() + ru.Stime.Nano()),
		MaxRSSKB: int64(ru.Maxrss),
	}, nil
}
