package solve_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/labelgraph/core/graph"
	"github.com/adalundhe/labelgraph/core/solve"
)

// fourNodeGraph is the synthetic fixture: 2 labeled + 2 unlabeled,
// fully connected with equal weights.
func fourNodeGraph() *graph.Matrix {
	m := graph.NewMatrix(4)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			m.Set(i, j, 1)
		}
	}
	m.RecomputeDegrees()
	return m
}

func TestPropagationClosedFormMatchesIterative(t *testing.T) {
	m := fourNodeGraph()

	cases := [][]float64{
		{1, -1},
		{1, 1},
		{-1, -1},
		{1, 0.5},
	}
	for _, labeled := range cases {
		iterative, err := solve.Propagate(solve.Config{
			Algorithm:  solve.LabelPropagation,
			Iterations: 10000,
			Tolerance:  1e-14,
		}, m, labeled, nil)
		require.NoError(t, err)

		closed, err := solve.Propagate(solve.Config{
			Algorithm: solve.LabelPropagation,
		}, m, labeled, nil)
		require.NoError(t, err)

		require.Len(t, iterative, 4)
		require.Len(t, closed, 4)
		for i := range iterative {
			assert.InDelta(t, closed[i], iterative[i], 1e-9, "node %d for labels %v", i, labeled)
		}
	}
}

func TestPropagationClampsLabeledPrefix(t *testing.T) {
	m := fourNodeGraph()
	labeled := []float64{1, -1}

	values, err := solve.Propagate(solve.Config{
		Algorithm:  solve.LabelPropagation,
		Iterations: 50,
	}, m, labeled, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, values[0])
	assert.Equal(t, -1.0, values[1])
}

func TestPropagationAgreeingLabelsDominate(t *testing.T) {
	m := fourNodeGraph()

	values, err := solve.Propagate(solve.Config{
		Algorithm: solve.LabelPropagation,
	}, m, []float64{1, 1}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1, values[2], 1e-9)
	assert.InDelta(t, 1, values[3], 1e-9)
}

func TestHarmonicFieldsOnChain(t *testing.T) {
	// l(+1) <-> u <-> l(-1) with a stronger tie to the positive side.
	m := graph.NewMatrix(3)
	m.Set(0, 2, 0.9)
	m.Set(1, 2, 0.1)
	m.RecomputeDegrees()

	values, err := solve.Propagate(solve.Config{Algorithm: solve.HarmonicFields}, m, []float64{1, -1}, nil)
	require.NoError(t, err)

	// Harmonic value is the weight-proportional average: 0.9−0.1.
	assert.InDelta(t, 0.8, values[2], 1e-9)
}

func TestHarmonicFieldsDegradesToClosedWorld(t *testing.T) {
	m := graph.NewMatrix(3)
	m.Set(0, 2, math.NaN())
	m.RecomputeDegrees()

	values, err := solve.Propagate(solve.Config{Algorithm: solve.HarmonicFields}, m, []float64{1, -1}, nil)
	require.NoError(t, err, "a failed factorization is non-fatal")

	assert.Equal(t, -1.0, values[2], "degraded solve labels unlabeled nodes false")
}

func TestLabelSpreadingPullsTowardNeighbors(t *testing.T) {
	m := graph.NewMatrix(3)
	m.Set(0, 2, 1)
	m.Set(1, 2, 0.1)
	m.RecomputeDegrees()

	for _, iterations := range []int{500, 0} {
		values, err := solve.Propagate(solve.Config{
			Algorithm:  solve.LabelSpreading,
			Alpha:      0.9,
			Iterations: iterations,
			Tolerance:  1e-14,
		}, m, []float64{1, -1}, nil)
		require.NoError(t, err)
		assert.Positive(t, values[2], "iterations=%d", iterations)
	}
}

func TestLabelSpreadingClosedFormMatchesIterative(t *testing.T) {
	m := fourNodeGraph()
	labeled := []float64{1, -0.5}

	iterative, err := solve.Propagate(solve.Config{
		Algorithm:  solve.LabelSpreading,
		Alpha:      0.8,
		Iterations: 20000,
		Tolerance:  1e-15,
	}, m, labeled, nil)
	require.NoError(t, err)

	closed, err := solve.Propagate(solve.Config{
		Algorithm: solve.LabelSpreading,
		Alpha:     0.8,
	}, m, labeled, nil)
	require.NoError(t, err)

	for i := range iterative {
		assert.InDelta(t, closed[i], iterative[i], 1e-9, "node %d", i)
	}
}

func TestPotentialsSeedIterativeSolves(t *testing.T) {
	// An isolated unlabeled node keeps its seeded prior: no edges ever
	// update it.
	m := graph.NewMatrix(3)
	m.Set(0, 1, 1)
	m.RecomputeDegrees()

	values, err := solve.Propagate(solve.Config{
		Algorithm:  solve.LabelPropagation,
		Iterations: 10,
	}, m, []float64{1}, []float64{0.25, -0.75})
	require.NoError(t, err)

	assert.Equal(t, -0.75, values[2])
}

func TestPotentialsSeedClosedFormSpreading(t *testing.T) {
	// The closed form folds the prior into y0, so an isolated node lands
	// at (1−α) times its seed, same as the iterative fixed point.
	m := graph.NewMatrix(3)
	m.Set(0, 1, 1)
	m.RecomputeDegrees()

	values, err := solve.Propagate(solve.Config{
		Algorithm: solve.LabelSpreading,
		Alpha:     0.5,
	}, m, []float64{1}, []float64{0.25, 0.8})
	require.NoError(t, err)

	assert.InDelta(t, 0.4, values[2], 1e-9)
}

func TestPropagateRejectsVotingAlgorithms(t *testing.T) {
	m := fourNodeGraph()
	_, err := solve.Propagate(solve.Config{Algorithm: solve.NearestNeighbor}, m, []float64{1, -1}, nil)
	require.Error(t, err)

	_, err = solve.Propagate(solve.Config{Algorithm: solve.ExtendedNearestNeighbor}, m, []float64{1, -1}, nil)
	require.Error(t, err)
}

func TestPropagateRequiresLabeledValues(t *testing.T) {
	m := fourNodeGraph()
	_, err := solve.Propagate(solve.Config{Algorithm: solve.LabelPropagation}, m, nil, nil)
	require.Error(t, err)
}

func TestParseAlgorithmRoundTrip(t *testing.T) {
	for _, name := range []string{"label-propagation", "label-spreading", "harmonic-fields", "nearest-neighbor", "extended-nearest-neighbor"} {
		a, err := solve.ParseAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.String())
	}

	_, err := solve.ParseAlgorithm("pagerank")
	assert.ErrorIs(t, err, solve.ErrUnknownAlgorithm)
}
