package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGeometric_Deterministic(t *testing.T) {
	a := RandomGeometric(20, 0.4, 42)
	b := RandomGeometric(20, 0.4, 42)
	assert.Equal(t, a, b)
	require.Len(t, a.Nodes, 20)
	require.NoError(t, TopologyValidator(a))
	for _, l := range a.Links {
		assert.GreaterOrEqual(t, l.Weight, uint32(1))
		assert.LessOrEqual(t, l.Weight, uint32(20))
	}
}

func TestRandomGeometric_Radius(t *testing.T) {
	// every pair in the unit square is closer than sqrt(2)
	full := RandomGeometric(6, 1.5, 1)
	assert.Len(t, full.Links, 6*5/2)

	none := RandomGeometric(6, 0, 1)
	assert.Empty(t, none.Links)
}
