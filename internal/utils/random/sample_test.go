package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleReturnsDistinctSubset(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	for i := 0; i < 200; i++ {
		got, err := Sample(items, 4)
		require.NoError(t, err)
		require.Len(t, got, 4)

		seen := map[int]bool{}
		for _, v := range got {
			assert.Contains(t, items, v)
			assert.False(t, seen[v], "duplicate %d", v)
			seen[v] = true
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, items, "input must not be mutated")
}

func TestSampleClampsK(t *testing.T) {
	got, err := Sample([]string{"a", "b"}, 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got)

	got, err = Sample([]string{"a"}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Sample[string](nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Every element should be drawn with probability k/n. With 6000 draws of
// 1 out of 6 each bucket expects 1000; the bounds are several sigma wide.
func TestSampleIsRoughlyUniform(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5}
	counts := make([]int, len(items))

	for i := 0; i < 6000; i++ {
		got, err := Sample(items, 1)
		require.NoError(t, err)
		counts[got[0]]++
	}
	for v, c := range counts {
		assert.InDelta(t, 1000, c, 200, "bucket %d", v)
	}
}
