package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/labelgraph/core/graph"
	"github.com/adalundhe/labelgraph/core/logic"
	"github.com/adalundhe/labelgraph/core/model"
)

// jaccardMetric is a set-overlap evidence distance: 0 for identical
// sets, 1 for disjoint ones.
type jaccardMetric struct{}

func (jaccardMetric) Distance(a, b []logic.Literal) (float64, error) {
	as := literalSet(a)
	bs := literalSet(b)
	inter := 0
	for k := range as {
		if _, ok := bs[k]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0, nil
	}
	return 1 - float64(inter)/float64(union), nil
}

func literalSet(literals []logic.Literal) map[string]struct{} {
	out := make(map[string]struct{}, len(literals))
	for _, l := range literals {
		out[l.String()] = struct{}{}
	}
	return out
}

type failingMetric struct{}

func (failingMetric) Distance(a, b []logic.Literal) (float64, error) {
	return 0, errors.New("metric exploded")
}

func testNode(label model.Label, id string, order int, evidence ...string) *model.Node {
	literals := make([]logic.Literal, len(evidence))
	for i, name := range evidence {
		literals[i] = logic.Atom(name)
	}
	query := logic.Atom("meeting", logic.Const(id))
	head := logic.Atom("meeting", logic.Var("X"))
	var n *model.Node
	if label == model.Unknown {
		n = model.NewUnlabeledNode(query, literals, head)
	} else {
		n = model.NewLabeledNode(query, label, literals, head)
	}
	n.Order = order
	n.HasOrder = true
	return n
}

// fixture: two labeled nodes then three unlabeled, assorted evidence
// overlaps, adjacent order keys on the unlabeled suffix.
func fixtureNodes() ([]*model.Node, int) {
	nodes := []*model.Node{
		testNode(model.True, "l1", 0, "a", "b"),
		testNode(model.False, "l2", 1, "c", "d"),
		testNode(model.Unknown, "u1", 2, "a", "b"),
		testNode(model.Unknown, "u2", 3, "a", "c"),
		testNode(model.Unknown, "u3", 4, "c", "d"),
	}
	return nodes, 2
}

func newConnector(t *testing.T, cfg graph.Config) *graph.Connector {
	t.Helper()
	c, err := graph.NewConnector(cfg, jaccardMetric{})
	require.NoError(t, err)
	return c
}

func TestFullyConnectSymmetryAndZeroDiagonal(t *testing.T) {
	nodes, numLabeled := fixtureNodes()
	strategies := []graph.Strategy{
		graph.Full, graph.KNN, graph.KNNLabeled, graph.ENN, graph.ENNLabeled,
		graph.ANN, graph.ANNLabeled, graph.TemporalKNN, graph.TemporalENN, graph.TemporalANN,
	}

	for _, strategy := range strategies {
		c := newConnector(t, graph.Config{Strategy: strategy, K: 2, Epsilon: 0.25})
		m, err := c.FullyConnect(nodes, numLabeled)
		require.NoError(t, err, strategy.String())

		for i := 0; i < m.N; i++ {
			assert.Zero(t, m.At(i, i), "diagonal for %s", strategy)
			for j := 0; j < m.N; j++ {
				assert.Equal(t, m.At(i, j), m.At(j, i), "symmetry for %s at (%d,%d)", strategy, i, j)
			}
		}
	}
}

func TestFullConnectorIsExact(t *testing.T) {
	nodes, numLabeled := fixtureNodes()
	c := newConnector(t, graph.Config{Strategy: graph.Full})

	m, err := c.FullyConnect(nodes, numLabeled)
	require.NoError(t, err)

	for i := range nodes {
		for j := range nodes {
			if i == j {
				continue
			}
			want, cerr := c.Connect(nodes[i], nodes[j])
			require.NoError(t, cerr)
			assert.InDelta(t, want, m.At(i, j), 1e-15, "cell (%d,%d)", i, j)
		}
	}
}

func TestNonFullStrategiesZeroLabeledPairs(t *testing.T) {
	x := testNode(model.True, "l1", 0, "a", "b")
	y := testNode(model.False, "l2", 1, "a", "b")

	full := newConnector(t, graph.Config{Strategy: graph.Full})
	w, err := full.Connect(x, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, w, "identical evidence connects at full weight")

	knn := newConnector(t, graph.Config{Strategy: graph.KNN, K: 3})
	w, err = knn.Connect(x, y)
	require.NoError(t, err)
	assert.Zero(t, w, "two ground-truth nodes have nothing to tell each other")
}

func TestTemporalGatingOnUnlabeledPairs(t *testing.T) {
	c := newConnector(t, graph.Config{Strategy: graph.TemporalKNN, K: 3})

	adjacent1 := testNode(model.Unknown, "u1", 4, "a")
	adjacent2 := testNode(model.Unknown, "u2", 5, "a")
	distant := testNode(model.Unknown, "u3", 9, "a")
	labeled := testNode(model.True, "l1", 7, "a")

	w, err := c.Connect(adjacent1, adjacent2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, w)

	w, err = c.Connect(adjacent1, distant)
	require.NoError(t, err)
	assert.Zero(t, w, "non-adjacent order keys disconnect unlabeled pairs")

	// The gate does not apply to labeled-unlabeled pairs.
	w, err = c.Connect(distant, labeled)
	require.NoError(t, err)
	assert.Equal(t, 1.0, w)
}

func TestSparsifyKNNKeepsDistinctTopK(t *testing.T) {
	c := newConnector(t, graph.Config{Strategy: graph.KNN, K: 3})

	row := []float64{0.9, 0.7, 0.5, 0.3, 0.1}
	c.Sparsify(row, 0)
	assert.Equal(t, []float64{0.9, 0.7, 0.5, 0, 0}, row,
		"five distinct positive weights retain exactly k")

	// Duplicates of a kept value all survive.
	c = newConnector(t, graph.Config{Strategy: graph.KNN, K: 2})
	row = []float64{0.9, 0.7, 0.9, 0.3, 0.1}
	c.Sparsify(row, 0)
	assert.Equal(t, []float64{0.9, 0.7, 0.9, 0, 0}, row)

	// Fewer distinct values than k: untouched.
	c = newConnector(t, graph.Config{Strategy: graph.KNN, K: 5})
	row = []float64{0.9, 0.7, 0.5}
	c.Sparsify(row, 0)
	assert.Equal(t, []float64{0.9, 0.7, 0.5}, row)
}

func TestSparsifyKNNLabeledLeavesSuffixUntouched(t *testing.T) {
	c := newConnector(t, graph.Config{Strategy: graph.KNNLabeled, K: 1})

	row := []float64{0.9, 0.7, 0.5, 0.3, 0.1}
	c.Sparsify(row, 3)
	assert.Equal(t, []float64{0.9, 0, 0, 0.3, 0.1}, row,
		"only the labeled prefix is sparsified")
}

func TestSparsifyTemporalRestrictsToLabeledPrefix(t *testing.T) {
	// Temporal strategies keep the order-adjacent unlabeled edges that
	// Connect admitted; only the labeled prefix competes for the budget.
	c := newConnector(t, graph.Config{Strategy: graph.TemporalKNN, K: 1})
	row := []float64{0.9, 0.5, 0.4, 0.3}
	c.Sparsify(row, 2)
	assert.Equal(t, []float64{0.9, 0, 0.4, 0.3}, row)

	c = newConnector(t, graph.Config{Strategy: graph.TemporalENN, Epsilon: 0.5})
	row = []float64{0.9, 0.4, 0.4, 0.3}
	c.Sparsify(row, 2)
	assert.Equal(t, []float64{0.9, 0, 0.4, 0.3}, row)

	c = newConnector(t, graph.Config{Strategy: graph.TemporalANN})
	row = []float64{0.6, 0.3, 0.1, 0.2}
	c.Sparsify(row, 2)
	assert.Equal(t, []float64{0.6, 0, 0.1, 0.2}, row,
		"the adaptive cut applies to the labeled prefix only")
}

func TestSparsifyENNThreshold(t *testing.T) {
	c := newConnector(t, graph.Config{Strategy: graph.ENN, Epsilon: 0.5})

	row := []float64{0.8, 0.5, 0.49, 0.2, 0}
	c.Sparsify(row, 0)
	assert.Equal(t, []float64{0.8, 0.5, 0, 0, 0}, row,
		"entries strictly below epsilon are zeroed, the rest untouched")
}

func TestSparsifyANNAdaptiveMass(t *testing.T) {
	c := newConnector(t, graph.Config{Strategy: graph.ANN})

	// Distinct mass 0.6+0.3+0.1 = 1.0; the first value alone reaches
	// a third of the mass.
	row := []float64{0.3, 0.6, 0.1, 0.6}
	c.Sparsify(row, 0)
	assert.Equal(t, []float64{0, 0.6, 0, 0.6}, row)

	// Flat rows keep everything: every distinct prefix is a third.
	row = []float64{0.2, 0.2, 0.2}
	c.Sparsify(row, 0)
	assert.Equal(t, []float64{0.2, 0.2, 0.2}, row)
}

func TestSmartConnectMatchesFullyConnectOnUnlabeledRows(t *testing.T) {
	nodes, numLabeled := fixtureNodes()
	strategies := []graph.Strategy{
		graph.KNN, graph.KNNLabeled, graph.ENN, graph.ENNLabeled, graph.ANN, graph.ANNLabeled,
	}

	for _, strategy := range strategies {
		c := newConnector(t, graph.Config{Strategy: strategy, K: 2, Epsilon: 0.25})

		full, err := c.FullyConnect(nodes, numLabeled)
		require.NoError(t, err)
		smart, err := c.SmartConnect(nodes, numLabeled)
		require.NoError(t, err)

		for i := numLabeled; i < len(nodes); i++ {
			assert.Equal(t, full.Row(i), smart.Row(i), "unlabeled row %d under %s", i, strategy)
		}
	}
}

func TestBiConnectShapeAndWeights(t *testing.T) {
	nodes, numLabeled := fixtureNodes()
	labeled, unlabeled := nodes[:numLabeled], nodes[numLabeled:]

	c := newConnector(t, graph.Config{Strategy: graph.Full})
	r, err := c.BiConnect(unlabeled, labeled)
	require.NoError(t, err)

	require.Equal(t, len(unlabeled), r.Rows)
	require.Equal(t, len(labeled), r.Cols)

	// u1 has exactly l1's evidence.
	assert.Equal(t, 1.0, r.At(0, 0))
	assert.Zero(t, r.At(0, 1))
}

func TestConnectorPropagatesMetricErrors(t *testing.T) {
	nodes, numLabeled := fixtureNodes()
	c, err := graph.NewConnector(graph.Config{Strategy: graph.Full}, failingMetric{})
	require.NoError(t, err)

	_, err = c.FullyConnect(nodes, numLabeled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metric exploded")
}

func TestDegreesAreRowSums(t *testing.T) {
	nodes, numLabeled := fixtureNodes()
	c := newConnector(t, graph.Config{Strategy: graph.Full})

	m, err := c.FullyConnect(nodes, numLabeled)
	require.NoError(t, err)

	for i := 0; i < m.N; i++ {
		var sum float64
		for j := 0; j < m.N; j++ {
			sum += m.At(i, j)
		}
		assert.InDelta(t, sum, m.Degree(i), 1e-12)
	}
}

func TestParseStrategyRoundTrip(t *testing.T) {
	for _, name := range []string{"full", "knn", "enn-labeled", "temporal-ann"} {
		s, err := graph.ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.String())
	}

	_, err := graph.ParseStrategy("voronoi")
	assert.ErrorIs(t, err, graph.ErrUnknownStrategy)
}
