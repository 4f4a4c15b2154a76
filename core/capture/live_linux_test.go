//go:build linux

package capture

import (
	"context"
	"testing"
	"time"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newDetachedLive returns a LiveSource without a socket or reader, so
// tests can drive its queue and failure path directly.
func newDetachedLive(buffer int) *LiveSource {
	return &LiveSource{
		fd:     -1,
		ch:     make(chan Packet, buffer),
		done:   make(chan struct{}),
		failed: make(chan struct{}),
		logger: testutils.NewTestLogger(),
	}
}

func TestLiveSourceReaderFailureEndsCapture(t *testing.T) {
	s := newDetachedLive(4)
	s.ch <- echoPacket(t, packet.KindEchoRequest, 0, 0)
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.fail(unix.ENETDOWN)
	}()

	began := time.Now()
	_, err := NewEngine("baseline", testutils.TestTimeout, WithLogger(testutils.NewTestLogger())).Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture read failed")
	assert.ErrorIs(t, err, unix.ENETDOWN)
	assert.NotErrorIs(t, err, ErrCaptureAborted)
	assert.Less(t, time.Since(began), testutils.TestTimeout)
	assert.ErrorIs(t, s.Err(), unix.ENETDOWN)
}

func TestLiveSourceDrainsQueueBeforeFailing(t *testing.T) {
	s := newDetachedLive(4)
	queued := echoPacket(t, packet.KindEchoRequest, 3, 0)
	s.ch <- queued
	s.fail(unix.ENETDOWN)

	p, err := s.ReadPacket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queued.Data, p.Data)

	_, err = s.ReadPacket(context.Background())
	assert.ErrorIs(t, err, unix.ENETDOWN)
}
