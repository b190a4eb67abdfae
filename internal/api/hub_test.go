package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roadagent/internal/sim"
)

func TestHubBroadcasts(t *testing.T) {
	t.Parallel()

	h := NewHub(1)
	a, leaveA := h.Subscribe(4)
	b, leaveB := h.Subscribe(4)
	defer leaveB()
	assert.Equal(t, 2, h.Subscribers())

	require.NoError(t, h.ObserveFrame(context.Background(), sim.Frame{Tick: 7, Time: 0.14}))
	for _, ch := range []<-chan []byte{a, b} {
		var f sim.Frame
		require.NoError(t, json.Unmarshal(<-ch, &f))
		assert.Equal(t, uint64(7), f.Tick)
	}

	leaveA()
	leaveA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers())
}

func TestHubDecimates(t *testing.T) {
	t.Parallel()

	h := NewHub(5)
	ch, leave := h.Subscribe(10)
	defer leave()
	for tick := uint64(1); tick <= 12; tick++ {
		require.NoError(t, h.ObserveFrame(context.Background(), sim.Frame{Tick: tick}))
	}
	assert.Len(t, ch, 2)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	t.Parallel()

	h := NewHub(0)
	ch, leave := h.Subscribe(1)
	defer leave()
	for tick := uint64(1); tick <= 3; tick++ {
		require.NoError(t, h.ObserveFrame(context.Background(), sim.Frame{Tick: tick}))
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(2), h.Dropped())
}

func TestHubClose(t *testing.T) {
	t.Parallel()

	h := NewHub(1)
	ch, leave := h.Subscribe(1)
	h.Close()
	h.Close()
	leave()

	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, h.ObserveFrame(context.Background(), sim.Frame{Tick: 1}))

	late, _ := h.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
