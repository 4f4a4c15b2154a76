package transport

import (
	"context"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/pkg/logging"
	"golang.org/x/time/rate"
)

// Chain creates a single Middleware from a series of middlewares.
// The middlewares are applied in the order they are passed.
func Chain(middlewares ...Middleware) Middleware {
	return func(base Sender) Sender {
		for i := len(middlewares) - 1; i >= 0; i-- {
			base = middlewares[i](base)
		}
		return base
	}
}

// loggingSender is a sender wrapper that logs method calls.
type loggingSender struct {
	Sender
	logger logging.Logger
}

// Send logs the frame and then calls the underlying sender's Send.
func (s *loggingSender) Send(ctx context.Context, iface string, frame packet.Frame) error {
	err := s.Sender.Send(ctx, iface, frame)
	if err != nil {
		s.logger.Warn("Send failed", "iface", iface, "bytes", frame.Len(), "error", err)
		return err
	}
	s.logger.Debug("Frame sent", "iface", iface, "bytes", frame.Len(), "link", frame.LinkType.String())
	return nil
}

// Close logs the close call and then calls the underlying sender's Close.
func (s *loggingSender) Close() error {
	s.logger.Debug("Closing sender")
	return s.Sender.Close()
}

// LoggingMiddleware creates a middleware that logs sender operations.
func LoggingMiddleware(logger logging.Logger) Middleware {
	return func(base Sender) Sender {
		return &loggingSender{
			Sender: base,
			logger: logger.With("component", "sender"),
		}
	}
}

// throttlingSender is a sender wrapper that rate limits frames.
type throttlingSender struct {
	Sender
	limiter *rate.Limiter
}

// Send waits for a token from the rate limiter before sending.
func (s *throttlingSender) Send(ctx context.Context, iface string, frame packet.Frame) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.Sender.Send(ctx, iface, frame)
}

// ThrottlingMiddleware creates a middleware capping the frame rate at r
// frames per second with bursts of b. It protects the medium and is not
// part of traffic shaping.
func ThrottlingMiddleware(r rate.Limit, b int) Middleware {
	limiter := rate.NewLimiter(r, b)
	return func(base Sender) Sender {
		return &throttlingSender{
			Sender:  base,
			limiter: limiter,
		}
	}
}
