package engine

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ken/image_retrieval/pkg/core/feature"
	"github.com/ken/image_retrieval/pkg/metrics"
	"github.com/ken/image_retrieval/pkg/relevance"
)

// testCorpus builds five images. Images 1 and 2 have the same proportions
// at different sizes, image 5 is bright where the others are dark.
func testCorpus() (feature.Histogram, feature.Histogram, feature.ImageSizes) {
	intensity := feature.NewHistogram(feature.Intensity, 5)
	colorCode := feature.NewHistogram(feature.ColorCode, 5)
	sizes := feature.ImageSizes{0, 100, 200, 100, 100, 100}

	fill := func(id int, ib, cb [][2]int) {
		for _, p := range ib {
			intensity[id][p[0]] = p[1]
		}
		for _, p := range cb {
			colorCode[id][p[0]] = p[1]
		}
	}
	fill(1, [][2]int{{1, 60}, {2, 40}}, [][2]int{{1, 70}, {2, 30}})
	fill(2, [][2]int{{1, 120}, {2, 80}}, [][2]int{{1, 140}, {2, 60}})
	fill(3, [][2]int{{1, 50}, {3, 50}}, [][2]int{{1, 50}, {3, 50}})
	fill(4, [][2]int{{2, 70}, {3, 30}}, [][2]int{{2, 80}, {4, 20}})
	fill(5, [][2]int{{25, 90}, {24, 10}}, [][2]int{{64, 100}})
	return intensity, colorCode, sizes
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	intensity, colorCode, sizes := testCorpus()
	e, err := New(intensity, colorCode, sizes, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 5, e.CorpusSize())

	m := e.Features()
	assert.Equal(t, 5, m.Rows())
	assert.Equal(t, feature.FeatureDims, m.Dims())

	// Features returns a copy
	m[1][1] = 1e9
	assert.NotEqual(t, 1e9, e.Features()[1][1])
	assert.Equal(t, feature.FeatureDims, e.Report().Dims)
}

func TestNewRejectsInvalidInput(t *testing.T) {
	intensity, colorCode, sizes := testCorpus()

	sizes[3] = 0
	_, err := New(intensity, colorCode, sizes)
	assert.ErrorIs(t, err, feature.ErrInvalidImageSize)

	_, _, sizes = testCorpus()
	_, err = New(intensity, intensity, sizes)
	assert.ErrorIs(t, err, feature.ErrDimensionMismatch)
}

func TestNewCopiesInputs(t *testing.T) {
	intensity, colorCode, sizes := testCorpus()
	e, err := New(intensity, colorCode, sizes)
	require.NoError(t, err)

	before, err := e.RankByHistogram(feature.Intensity, 1)
	require.NoError(t, err)

	intensity[1][25] = 100000
	sizes[2] = 1

	after, err := e.RankByHistogram(feature.Intensity, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRankByHistogram(t *testing.T) {
	e := newTestEngine(t)

	for _, kind := range []feature.Kind{feature.Intensity, feature.ColorCode} {
		t.Run(kind.String(), func(t *testing.T) {
			order, err := e.RankByHistogram(kind, 1)
			require.NoError(t, err)
			require.Len(t, order, 6)
			assert.Equal(t, feature.ImageID(0), order[0])
			assert.Equal(t, feature.ImageID(1), order[1], "the query has distance 0")
			assert.Equal(t, feature.ImageID(2), order[2], "same proportions at twice the size")
			assert.Equal(t, feature.ImageID(5), order[5])
			assert.ElementsMatch(t, []feature.ImageID{1, 2, 3, 4, 5}, order.IDs())

			again, err := e.RankByHistogram(kind, 1)
			require.NoError(t, err)
			assert.Equal(t, order, again)
		})
	}

	_, err := e.RankByHistogram(feature.Kind(7), 1)
	assert.Error(t, err)
}

func TestRankInvalidQuery(t *testing.T) {
	e := newTestEngine(t)

	for _, q := range []feature.ImageID{0, 6, -2} {
		_, err := e.RankByHistogram(feature.Intensity, q)
		assert.ErrorIs(t, err, feature.ErrInvalidQuery)

		_, err = e.RankByWeightedFeatures(feature.Uniform(feature.FeatureDims), q)
		assert.ErrorIs(t, err, feature.ErrInvalidQuery)

		_, err = e.ComputeWeights(relevance.NewSet(2), q)
		assert.ErrorIs(t, err, feature.ErrInvalidQuery)
	}
}

func TestComputeWeights(t *testing.T) {
	e := newTestEngine(t)

	w, err := e.ComputeWeights(relevance.NewSet(), 3)
	require.NoError(t, err)
	assert.Equal(t, feature.Uniform(feature.FeatureDims), w)

	set := relevance.NewSet(2, 4)
	w, err = e.ComputeWeights(set, 1)
	require.NoError(t, err)
	assert.True(t, set.Contains(1))
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestRankByWeightedFeatures(t *testing.T) {
	e := newTestEngine(t)

	// 1 and 2 have identical features, ties go to the lower id
	order, err := e.RankByWeightedFeatures(feature.Uniform(feature.FeatureDims), 2)
	require.NoError(t, err)
	assert.Equal(t, feature.ImageID(1), order[1])
	assert.Equal(t, feature.ImageID(2), order[2])

	// no variation among the relevant rows falls back to uniform weights
	w, err := e.ComputeWeights(relevance.NewSet(1), 2)
	require.NoError(t, err)
	assert.Equal(t, feature.Uniform(feature.FeatureDims), w)

	w, err = e.ComputeWeights(relevance.NewSet(3, 4), 2)
	require.NoError(t, err)
	order, err = e.RankByWeightedFeatures(w, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []feature.ImageID{1, 2, 3, 4, 5}, order.IDs())

	_, err = e.RankByWeightedFeatures(feature.Weights{0, 1}, 2)
	assert.ErrorIs(t, err, feature.ErrDimensionMismatch)
}

func TestResetOrder(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, feature.RankOrder{0, 1, 2, 3, 4, 5}, e.ResetOrder())
}

func TestEngineMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	e := newTestEngine(t, WithMetrics(collector))

	_, err := e.RankByHistogram(feature.ColorCode, 1)
	require.NoError(t, err)
	_, err = e.RankByHistogram(feature.ColorCode, 42)
	require.Error(t, err)

	_, err = e.ComputeWeights(relevance.NewSet(3), 1)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(collector.Registry(), "cbir_rankings_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one success and one error series")
}

func TestConcurrentRankings(t *testing.T) {
	e := newTestEngine(t)
	want, err := e.RankByHistogram(feature.Intensity, 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.RankByHistogram(feature.Intensity, 3)
			assert.NoError(t, err)
			assert.Equal(t, want, got)

			_, err = e.RankByWeightedFeatures(feature.Uniform(feature.FeatureDims), 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
