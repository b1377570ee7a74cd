package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	tracker, err := Dial(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })
	return tracker, mr
}

func TestFirstSeenOncePerSession(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	first, err := tracker.FirstSeen(ctx, 7, "s1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := tracker.FirstSeen(ctx, 7, "s1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := tracker.FirstSeen(ctx, 7, "s2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestFirstSeenExpires(t *testing.T) {
	tracker, mr := newTracker(t)
	ctx := context.Background()

	_, err := tracker.FirstSeen(ctx, 7, "s1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	first, err := tracker.FirstSeen(ctx, 7, "s1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestForget(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	_, err := tracker.FirstSeen(ctx, 3, "")
	require.NoError(t, err)
	require.NoError(t, tracker.Forget(ctx, 3, ""))

	first, err := tracker.FirstSeen(ctx, 3, "")
	require.NoError(t, err)
	assert.True(t, first)
}
