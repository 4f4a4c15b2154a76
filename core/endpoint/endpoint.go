//go:generate mockgen -package=mocks -destination=../../mocks/mock_resolver.go github.com/gocircum/obfsmeter/core/endpoint Resolver

// Package endpoint resolves the addresses of the two hosts an experiment
// sends traffic between.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/gocircum/obfsmeter/pkg/clock"
)

// Endpoint is one side of the measured flow.
type Endpoint struct {
	Name string
	IP   netip.Addr
	MAC  net.HardwareAddr
	// MACFallback is set when MAC is the configured fallback rather than
	// a resolved address.
	MACFallback bool
}

// Resolver looks up an endpoint by name. A lookup that is not ready yet
// (for instance a VM still waiting for its DHCP lease) returns
// ErrNotReady so Await keeps polling.
type Resolver interface {
	Lookup(ctx context.Context, name string) (Endpoint, error)
}

// ErrNotReady signals that an endpoint exists but has no address yet.
var ErrNotReady = errors.New("endpoint address not available yet")

// ErrUnavailable matches every UnavailableError via errors.Is.
var ErrUnavailable = errors.New("endpoint unavailable")

// UnavailableError reports that an endpoint could not be resolved within
// the bounded wait. The scenario needing it is aborted.
type UnavailableError struct {
	Name    string
	Timeout time.Duration
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("endpoint '%s' unavailable after %s: %v", e.Name, e.Timeout, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnavailable) true.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// AwaitOptions bounds the resolution wait.
type AwaitOptions struct {
	// Timeout is the maximum time to wait for an address.
	Timeout time.Duration
	// Interval is the polling period.
	Interval time.Duration
	// FallbackMAC is used when an endpoint resolves without a hardware
	// address. Nil leaves the MAC empty.
	FallbackMAC net.HardwareAddr
	// Clock measures the wait and paces polling. Nil means the system
	// clock.
	Clock clock.Clock
}

// Await polls r until name resolves to an IP address or opts.Timeout
// elapses on opts.Clock.
func Await(ctx context.Context, r Resolver, name string, opts AwaitOptions) (Endpoint, error) {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = clk.Now().Add(opts.Timeout)
	}

	for {
		ep, err := r.Lookup(ctx, name)
		if err == nil && ep.IP.IsValid() {
			if len(ep.MAC) == 0 && len(opts.FallbackMAC) > 0 {
				ep.MAC = append(net.HardwareAddr(nil), opts.FallbackMAC...)
				ep.MACFallback = true
			}
			return ep, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Endpoint{}, ctxErr
		}
		if err == nil {
			err = ErrNotReady
		}
		if !errors.Is(err, ErrNotReady) {
			return Endpoint{}, &UnavailableError{Name: name, Timeout: opts.Timeout, Err: err}
		}

		wait := opts.Interval
		if !deadline.IsZero() {
			remaining := deadline.Sub(clk.Now())
			if remaining <= 0 {
				return Endpoint{}, &UnavailableError{Name: name, Timeout: opts.Timeout, Err: err}
			}
			wait = min(wait, remaining)
		}
		if err := clk.Sleep(ctx, wait); err != nil {
			return Endpoint{}, err
		}
	}
}
