package graph

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/labelgraph/core/model"
)

var ErrUnknownStrategy = errors.New("unknown connector strategy")

// Strategy selects one concrete connection/sparsification policy. The
// set is closed; dispatch is by switch, one case per variant.
type Strategy int

const (
	Full Strategy = iota
	KNN
	KNNLabeled
	ENN
	ENNLabeled
	ANN
	ANNLabeled
	TemporalKNN
	TemporalENN
	TemporalANN
)

var strategyNames = map[Strategy]string{
	Full:        "full",
	KNN:         "knn",
	KNNLabeled:  "knn-labeled",
	ENN:         "enn",
	ENNLabeled:  "enn-labeled",
	ANN:         "ann",
	ANNLabeled:  "ann-labeled",
	TemporalKNN: "temporal-knn",
	TemporalENN: "temporal-enn",
	TemporalANN: "temporal-ann",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy resolves a configuration name to a strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return Full, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Temporal reports whether the strategy gates unlabeled-unlabeled
// edges on adjacent ordering keys.
func (s Strategy) Temporal() bool {
	switch s {
	case TemporalKNN, TemporalENN, TemporalANN:
		return true
	}
	return false
}

// connectsLabeledPairs reports whether edges between two labeled nodes
// carry weight. Only the full connector keeps them; everywhere else
// two ground-truth nodes have nothing to tell each other.
func (s Strategy) connectsLabeledPairs() bool {
	return s == Full
}

// Config parameterizes a Connector.
type Config struct {
	Strategy Strategy

	// K is the neighbor budget of the kNN policies.
	K int

	// Epsilon is the weight threshold of the eNN policies.
	Epsilon float64

	// Workers bounds the parallel pairwise connection tasks;
	// 0 means NumCPU.
	Workers int

	// MemoSize bounds the pairwise-distance memo; 0 disables it.
	MemoSize int
}

// DefaultConfig returns the connector defaults: kNN with a small
// neighbor budget and a distance memo sized for repeated extensions.
func DefaultConfig() Config {
	return Config{
		Strategy: KNN,
		K:        2,
		Epsilon:  0.75,
		MemoSize: 8192,
	}
}

// Connector computes pairwise edge weights over node sets and applies
// the strategy's sparsification policy. It is safe for use by one
// construction at a time; the distance memo survives across calls so
// repeated extensions do not pay for the same pair twice.
type Connector struct {
	cfg    Config
	metric model.Metric
	memo   *lru.Cache[string, float64]
}

// NewConnector builds a connector over the given metric.
func NewConnector(cfg Config, metric model.Metric) (*Connector, error) {
	if metric == nil {
		return nil, errors.New("connector requires a metric")
	}
	c := &Connector{cfg: cfg, metric: metric}
	if cfg.MemoSize > 0 {
		memo, err := lru.New[string, float64](cfg.MemoSize)
		if err != nil {
			return nil, fmt.Errorf("distance memo: %w", err)
		}
		c.memo = memo
	}
	return c, nil
}

// Strategy exposes the configured strategy.
func (c *Connector) Strategy() Strategy {
	return c.cfg.Strategy
}

// WithMetric returns a connector identical to this one but computing
// distances through a different (typically re-weighted) metric. The
// memo is not carried over: old distances are stale under new weights.
func (c *Connector) WithMetric(metric model.Metric) (*Connector, error) {
	return NewConnector(c.cfg, metric)
}

// Connect computes the edge weight 1 - distance(x, y), with the
// strategy overrides: non-full strategies zero labeled-labeled pairs,
// temporal strategies zero unlabeled-unlabeled pairs whose ordering
// keys are not adjacent.
func (c *Connector) Connect(x, y *model.Node) (float64, error) {
	if x == y {
		return 0, nil
	}
	if !c.cfg.Strategy.connectsLabeledPairs() && x.IsLabeled() && y.IsLabeled() {
		return 0, nil
	}
	if c.cfg.Strategy.Temporal() && !x.IsLabeled() && !y.IsLabeled() {
		if !x.HasOrder || !y.HasOrder || absInt(x.Order-y.Order) != 1 {
			return 0, nil
		}
	}
	d, err := c.distance(x, y)
	if err != nil {
		return 0, err
	}
	return 1 - d, nil
}

func (c *Connector) distance(x, y *model.Node) (float64, error) {
	if c.memo == nil {
		return c.metric.Distance(x.Evidence, y.Evidence)
	}
	key := pairKey(x, y)
	if d, ok := c.memo.Get(key); ok {
		return d, nil
	}
	d, err := c.metric.Distance(x.Evidence, y.Evidence)
	if err != nil {
		return 0, fmt.Errorf("metric distance: %w", err)
	}
	c.memo.Add(key, d)
	return d, nil
}

func pairKey(x, y *model.Node) string {
	a, b := x.CanonicalKey(), y.CanonicalKey()
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Sparsify applies the strategy's per-row sparsification policy in
// place and returns the row. numberOfLabeled is the length of the
// labeled prefix; the labeled-restricted policies leave the unlabeled
// remainder of the row untouched. The temporal variants sparsify like
// their labeled-restricted bases: their unlabeled edges are already
// gated by Connect and must not be pruned a second time.
func (c *Connector) Sparsify(row []float64, numberOfLabeled int) []float64 {
	if numberOfLabeled < 0 {
		numberOfLabeled = 0
	}
	if numberOfLabeled > len(row) {
		numberOfLabeled = len(row)
	}
	switch c.cfg.Strategy {
	case Full:
		// Keep everything.
	case KNN:
		keepTopDistinct(row, c.cfg.K)
	case KNNLabeled, TemporalKNN:
		keepTopDistinct(row[:numberOfLabeled], c.cfg.K)
	case ENN:
		threshold(row, c.cfg.Epsilon)
	case ENNLabeled, TemporalENN:
		threshold(row[:numberOfLabeled], c.cfg.Epsilon)
	case ANN:
		adaptiveThreshold(row)
	case ANNLabeled, TemporalANN:
		adaptiveThreshold(row[:numberOfLabeled])
	}
	return row
}

// keepTopDistinct keeps entries carrying one of the k largest distinct
// positive weight values and zeroes the rest.
func keepTopDistinct(row []float64, k int) {
	if k <= 0 {
		for i := range row {
			row[i] = 0
		}
		return
	}
	distinct := distinctWeights(row)
	if len(distinct) <= k {
		return
	}
	cut := distinct[k-1]
	for i, w := range row {
		if w < cut {
			row[i] = 0
		}
	}
}

// threshold zeroes entries strictly below eps.
func threshold(row []float64, eps float64) {
	for i, w := range row {
		if w < eps {
			row[i] = 0
		}
	}
}

// adaptiveThreshold keeps the smallest descending prefix of distinct
// weights whose normalized cumulative mass reaches 1/3, zeroing the
// rest.
func adaptiveThreshold(row []float64) {
	distinct := distinctWeights(row)
	if len(distinct) == 0 {
		return
	}
	var total float64
	for _, w := range distinct {
		total += w
	}
	var mass float64
	cut := distinct[len(distinct)-1]
	for _, w := range distinct {
		mass += w
		if mass/total >= 1.0/3.0 {
			cut = w
			break
		}
	}
	for i, w := range row {
		if w < cut {
			row[i] = 0
		}
	}
}

// distinctWeights returns the distinct positive weights of the row in
// descending order.
func distinctWeights(row []float64) []float64 {
	seen := make(map[float64]struct{}, len(row))
	out := make([]float64, 0, len(row))
	for _, w := range row {
		if w <= 0 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// FullyConnect computes the full upper triangle of pairwise weights
// (mirrored for the lower), applies the sparsification policy per row
// and returns the symmetric matrix with its degree diagonal. Pairwise
// cells are computed by parallel chunked tasks writing disjoint cells;
// nothing past the join barrier starts until every task is done.
func (c *Connector) FullyConnect(nodes []*model.Node, numberOfLabeled int) (*Matrix, error) {
	return c.connectMatrix(nodes, numberOfLabeled, false)
}

// SmartConnect produces the same matrix as FullyConnect for every
// unlabeled row, without paying for labeled-labeled pairs: for the
// strategies it serves those pairs are always zero, so only rows
// touching the unlabeled suffix are computed. Falls back to a full
// connect when the strategy keeps labeled-labeled edges.
func (c *Connector) SmartConnect(nodes []*model.Node, numberOfLabeled int) (*Matrix, error) {
	skipLabeledPairs := !c.cfg.Strategy.connectsLabeledPairs()
	return c.connectMatrix(nodes, numberOfLabeled, skipLabeledPairs)
}

func (c *Connector) connectMatrix(nodes []*model.Node, numberOfLabeled int, skipLabeledPairs bool) (*Matrix, error) {
	n := len(nodes)
	m := NewMatrix(n)
	if n == 0 {
		return m, nil
	}

	if err := c.connectPairs(m, nodes, numberOfLabeled, skipLabeledPairs); err != nil {
		return nil, err
	}

	c.sparsifyMatrix(m, numberOfLabeled)
	m.RecomputeDegrees()
	return m, nil
}

// connectPairs fills the symmetric weight buffer, chunking rows across
// workers. Each (i, j) pair is an independent task writing two
// disjoint cells; the WaitGroup is the hard phase barrier.
func (c *Connector) connectPairs(m *Matrix, nodes []*model.Node, numberOfLabeled int, skipLabeledPairs bool) error {
	n := len(nodes)
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	chunks := rowChunks(n, workers)
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for ci, chunk := range chunks {
		wg.Add(1)
		go func(ci, lo, hi int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			for i := lo; i < hi; i++ {
				for j := i + 1; j < n; j++ {
					if skipLabeledPairs && j < numberOfLabeled {
						continue
					}
					w, err := c.Connect(nodes[i], nodes[j])
					if err != nil {
						errs[ci] = fmt.Errorf("connect %d-%d: %w", i, j, err)
						return
					}
					m.Set(i, j, w)
				}
			}
		}(ci, chunk[0], chunk[1])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func rowChunks(n, workers int) [][2]int {
	size := (n + workers - 1) / workers
	if size < 1 {
		size = 1
	}
	var chunks [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		chunks = append(chunks, [2]int{lo, hi})
	}
	return chunks
}

// sparsifyMatrix applies the per-row policy to a scratch copy of every
// row and symmetrizes mutually: an edge survives only when both
// endpoint rows keep it. The labeled-restricted policies leave the
// unlabeled remainder of a row untouched, so for a labeled-unlabeled
// pair the unlabeled row owns the decision.
func (c *Connector) sparsifyMatrix(m *Matrix, numberOfLabeled int) {
	if c.cfg.Strategy == Full {
		return
	}
	n := m.N
	sparse := make([]float64, n*n)
	scratch := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(scratch, m.Row(i))
		c.Sparsify(scratch, numberOfLabeled)
		copy(sparse[i*n:(i+1)*n], scratch)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := math.Min(sparse[i*n+j], sparse[j*n+i])
			m.Set(i, j, w)
		}
		m.W[i*n+i] = 0
	}
}

// BiConnect builds the rectangular weight matrix between two disjoint
// node sets, sparsifying each left-row over the whole right side. Used
// by plain nearest-neighbor voting, where rows are the unlabeled nodes
// and columns the labeled candidates.
func (c *Connector) BiConnect(left, right []*model.Node) (*Rect, error) {
	r := NewRect(len(left), len(right))
	for i, x := range left {
		row := r.Row(i)
		for j, y := range right {
			w, err := c.Connect(x, y)
			if err != nil {
				return nil, fmt.Errorf("biconnect %d-%d: %w", i, j, err)
			}
			row[j] = w
		}
		c.Sparsify(row, len(row))
	}
	return r, nil
}
