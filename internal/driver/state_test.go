package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatePriorityOrder(t *testing.T) {
	t.Parallel()

	for i := 1; i < len(States); i++ {
		assert.Greater(t, States[i].Priority(), States[i-1].Priority(), "%s should outrank %s", States[i], States[i-1])
	}
	assert.Equal(t, -1, State("reverse").Priority())
	assert.Less(t, StateChangeLanes.Priority(), StateStopAtSign.Priority())
}

func TestStateLabels(t *testing.T) {
	t.Parallel()

	for _, s := range States {
		assert.True(t, s.Valid())
		assert.NotEmpty(t, s.Label())
	}
	assert.Equal(t, "Stopping at sign", StateStopAtSign.Label())
	assert.Equal(t, "bogus", State("bogus").Label())
	assert.False(t, State("bogus").Valid())
}
