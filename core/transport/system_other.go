//go:build !linux

package transport

import (
	"errors"
	"fmt"
)

// NewSystemSender is only available on Linux.
func NewSystemSender() (Sender, error) {
	return nil, fmt.Errorf("system sender: %w", errors.ErrUnsupported)
}
