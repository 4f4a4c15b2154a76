//go:build unix

package rusage

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

func sample() (Usage, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return Usage{}, fmt.Errorf("getrusage failed: %w", err)
	}
	maxRSS := ru.Maxrss
	if runtime.GOOS == "darwin" {
		// darwin reports bytes
		maxRSS /= 1024
	}
	return Usage{
		CPUTime:  time.Duration(ru.Utime.Nano() + ru.Stime.Nano()),
		MaxRSSKB: int64(maxRSS),
	}, nil
}
