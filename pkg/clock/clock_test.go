package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemSleep(t *testing.T) {
	c := System()
	start := c.Now()
	require.NoError(t, c.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, c.Now().Sub(start), 5*time.Millisecond)
}

func TestSystemSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := System().Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFake(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), 40*time.Millisecond))
	f.Advance(10 * time.Millisecond)
	assert.Equal(t, start.Add(50*time.Millisecond), f.Now())
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, f.Sleeps())

	f.SetAutoAdvance(time.Millisecond)
	first := f.Now()
	second := f.Now()
	assert.Equal(t, time.Millisecond, second.Sub(first))
}
