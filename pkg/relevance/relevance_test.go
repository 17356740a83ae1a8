package relevance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ken/image_retrieval/pkg/core/feature"
)

func testMatrix() feature.Matrix {
	return feature.Matrix{
		{0, 0, 0, 0},
		{0, 1, 5, 0},
		{0, 2, 5, 0},
		{0, 4, 1, 3},
		{0, 1, 1, 1},
	}
}

func TestSet(t *testing.T) {
	s := NewSet(3, 1)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(1))
	assert.False(t, s.Contains(2))

	s.Add(2)
	s.Add(2)
	assert.Equal(t, []feature.ImageID{1, 2, 3}, s.IDs())

	s.Remove(1)
	assert.Equal(t, []feature.ImageID{2, 3}, s.IDs())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.IDs())

	var zero Set
	zero.Add(4)
	assert.True(t, zero.Contains(4))
}

func TestComputeWeightsUniform(t *testing.T) {
	m := testMatrix()

	w, err := ComputeWeights(NewSet(), m, 2)
	require.NoError(t, err)
	require.Len(t, w, 4)
	for d := 1; d <= 3; d++ {
		assert.Equal(t, 1.0/89, w[d])
	}

	w, err = ComputeWeights(nil, m, 2)
	require.NoError(t, err)
	assert.Equal(t, feature.Uniform(3), w)
}

func TestComputeWeightsRelevant(t *testing.T) {
	m := testMatrix()
	set := NewSet(2)

	w, err := ComputeWeights(set, m, 1)
	require.NoError(t, err)

	assert.True(t, set.Contains(1), "query must be added to the relevance set")
	assert.Equal(t, 2, set.Len())

	// dim 1: {1,2} SD 1/sqrt2; dim 2: {5,5} corrected to half of that;
	// dim 3: {0,0} keeps SD 0 and weighs nothing
	assert.InDelta(t, 1.0/3, w[1], 1e-12)
	assert.InDelta(t, 2.0/3, w[2], 1e-12)
	assert.Equal(t, 0.0, w[3])
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
}

func TestComputeWeightsSumToOne(t *testing.T) {
	m := testMatrix()

	sets := [][]feature.ImageID{{1, 3}, {2, 3, 4}, {1, 2, 3, 4}, {4}}
	for _, ids := range sets {
		w, err := ComputeWeights(NewSet(ids...), m, 3)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, w.Sum(), 1e-9, "set %v", ids)
		for d := 1; d <= 3; d++ {
			assert.GreaterOrEqual(t, w[d], 0.0)
			assert.False(t, math.IsNaN(w[d]))
		}
	}
}

func TestComputeWeightsDegenerate(t *testing.T) {
	m := feature.Matrix{
		{0, 0, 0},
		{0, 1, 0},
		{0, 1, 0},
	}

	w, err := NewWeighter(nil).Compute(NewSet(2), m, 1)
	require.NoError(t, err)
	assert.Equal(t, feature.Uniform(2), w)

	// only the query is relevant: a single row has no spread
	w, err = ComputeWeights(NewSet(1), m, 1)
	require.NoError(t, err)
	assert.Equal(t, feature.Uniform(2), w)
}

func TestComputeWeightsInvalidQuery(t *testing.T) {
	m := testMatrix()
	set := NewSet(2)

	for _, q := range []feature.ImageID{0, 5, -3} {
		_, err := ComputeWeights(set, m, q)
		assert.ErrorIs(t, err, feature.ErrInvalidQuery)
	}
	assert.Equal(t, []feature.ImageID{2}, set.IDs(), "rejected calls must not mutate the set")

	_, err := ComputeWeights(NewSet(9), m, 1)
	assert.ErrorIs(t, err, feature.ErrInvalidQuery)
}
