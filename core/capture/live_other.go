//go:build !linux

package capture

import (
	"errors"
	"fmt"

	"github.com/gocircum/obfsmeter/pkg/logging"
)

// DefaultLiveBuffer is the number of frames queued between the socket
// reader and the engine.
const DefaultLiveBuffer = 4096

// LiveSource is only available on Linux.
type LiveSource struct{ Source }

// OpenLive is only available on Linux.
func OpenLive(iface string, buffer int, logger logging.Logger) (*LiveSource, error) {
	return nil, fmt.Errorf("live capture on %s: %w", iface, errors.ErrUnsupported)
}
