package ticklog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roadagent/internal/driver"
	"github.com/banshee-data/roadagent/internal/scenario"
	"github.com/banshee-data/roadagent/internal/sim"
	"github.com/banshee-data/roadagent/internal/timeutil"
)

func frame(tick uint64) sim.Frame {
	return sim.Frame{
		Tick: tick,
		Time: float64(tick) * 0.02,
		Agents: []driver.Snapshot{{
			ID:        uuid.MustParse("8f2c2a7e-2f57-4d6b-9d5e-3c7a9f0b1a11"),
			Name:      "alpha",
			State:     driver.StateCruise,
			NextState: driver.StateCruise,
			Speed:     float64(tick),
		}},
	}
}

func TestWriteRead(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "run.jsonl.zst")
	w, err := Create(p, 1)
	require.NoError(t, err)
	for tick := uint64(1); tick <= 4; tick++ {
		require.NoError(t, w.Write(frame(tick)))
	}
	assert.Equal(t, 4, w.Count())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(frame(5)), os.ErrClosed)

	var got []sim.Frame
	require.NoError(t, ReadFile(p, func(f sim.Frame) error {
		got = append(got, f)
		return nil
	}))
	want := []sim.Frame{frame(1), frame(2), frame(3), frame(4)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReadStopsOnEOF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run.jsonl.zst")
	w, err := Create(p, 1)
	require.NoError(t, err)
	for tick := uint64(1); tick <= 10; tick++ {
		require.NoError(t, w.Write(frame(tick)))
	}
	require.NoError(t, w.Close())

	n := 0
	require.NoError(t, ReadFile(p, func(sim.Frame) error {
		n++
		if n == 3 {
			return io.EOF
		}
		return nil
	}))
	assert.Equal(t, 3, n)
}

func TestObserveFrameSamples(t *testing.T) {
	sc := scenario.Scenario{
		DT:    0.02,
		Ticks: 20,
		Road:  scenario.Road{Points: []scenario.Point{{X: 0, Z: 0}, {X: 0, Z: 500}}},
		Cars:  []scenario.Car{{Name: "a"}},
	}
	s, err := sim.New(sc, sim.DefaultOptions())
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "sampled.jsonl.zst")
	w, err := Create(p, 5)
	require.NoError(t, err)
	s.AddObserver(w)
	require.NoError(t, s.Run(context.Background(), timeutil.RealClock{}, false))
	require.NoError(t, w.Close())

	var ticks []uint64
	require.NoError(t, ReadFile(p, func(f sim.Frame) error {
		ticks = append(ticks, f.Tick)
		require.Len(t, f.Agents, 1)
		return nil
	}))
	assert.Equal(t, []uint64{5, 10, 15, 20}, ticks)
}

func TestReadRejectsGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "junk.jsonl.zst")
	require.NoError(t, os.WriteFile(p, []byte("not zstd at all"), 0o644))
	err := ReadFile(p, func(sim.Frame) error { return nil })
	assert.Error(t, err)
}
