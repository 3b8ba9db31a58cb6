package solve

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/labelgraph/core/graph"
)

var ErrUnknownAlgorithm = errors.New("unknown solver algorithm")

// Algorithm selects one concrete label-inference procedure. The set is
// closed; dispatch is by switch, one case per variant.
type Algorithm int

const (
	LabelPropagation Algorithm = iota
	LabelSpreading
	HarmonicFields
	NearestNeighbor
	ExtendedNearestNeighbor
)

var algorithmNames = map[Algorithm]string{
	LabelPropagation:        "label-propagation",
	LabelSpreading:          "label-spreading",
	HarmonicFields:          "harmonic-fields",
	NearestNeighbor:         "nearest-neighbor",
	ExtendedNearestNeighbor: "extended-nearest-neighbor",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm resolves a configuration name to an algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, n := range algorithmNames {
		if n == name {
			return a, nil
		}
	}
	return HarmonicFields, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Voting reports whether the algorithm bypasses matrix propagation in
// favor of nearest-neighbor voting.
func (a Algorithm) Voting() bool {
	return a == NearestNeighbor || a == ExtendedNearestNeighbor
}

// Config parameterizes a solve. All solvers are pure functions of
// their numeric inputs; the config carries no state between calls.
type Config struct {
	Algorithm Algorithm

	// Alpha is the label-spreading clamping factor in (0, 1).
	Alpha float64

	// Iterations bounds the fixed-point solvers; a value below 1
	// switches label propagation and spreading to their closed forms.
	Iterations int

	// Tolerance is the fixed-point convergence threshold on the
	// maximum per-node change.
	Tolerance float64
}

// DefaultConfig returns harmonic fields with the standard fixed-point
// parameters for the iterative algorithms.
func DefaultConfig() Config {
	return Config{
		Algorithm:  HarmonicFields,
		Alpha:      0.99,
		Iterations: 1000,
		Tolerance:  1e-12,
	}
}

// Propagate diffuses the labeled prefix values across the graph and
// returns one value per node in [-1, 1]; the sign is the label.
// Propagation and harmonic solves clamp the labeled prefix to the
// input values; spreading lets it drift (soft clamping). init, when
// non-nil, seeds the unlabeled suffix (prior potentials). The
// propagation and harmonic closed forms ignore it; the spreading
// closed form folds it into y0, matching the iterative fixed point.
//
// Voting algorithms are not matrix solvers; passing one here is a
// programming error.
func Propagate(cfg Config, m *graph.Matrix, labeled []float64, init []float64) ([]float64, error) {
	numLabeled := len(labeled)
	if numLabeled == 0 {
		return nil, errors.New("propagation requires at least one labeled value")
	}
	if numLabeled > m.N {
		return nil, fmt.Errorf("labeled vector longer than graph: %d > %d", numLabeled, m.N)
	}
	if tol := cfg.Tolerance; tol <= 0 {
		cfg.Tolerance = 1e-12
	}

	switch cfg.Algorithm {
	case LabelPropagation:
		if cfg.Iterations < 1 {
			return propagateClosedForm(m, labeled)
		}
		return propagateIterative(cfg, m, labeled, init)
	case LabelSpreading:
		if cfg.Iterations < 1 {
			return spreadClosedForm(cfg, m, labeled, init)
		}
		return spreadIterative(cfg, m, labeled, init)
	case HarmonicFields:
		return harmonicFields(m, labeled)
	case NearestNeighbor, ExtendedNearestNeighbor:
		return nil, fmt.Errorf("%s is a voting algorithm, not a propagation solver", cfg.Algorithm)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(cfg.Algorithm))
	}
}

// seedValues builds the initial value vector: labeled prefix clamped,
// unlabeled suffix seeded from init where provided.
func seedValues(n int, labeled, init []float64) []float64 {
	y := make([]float64, n)
	copy(y, labeled)
	if init != nil {
		copy(y[len(labeled):], init)
	}
	return y
}

// propagateIterative runs the fixed point Y ← D⁻¹WY with the labeled
// rows clamped to their true values at every step, stopping when the
// maximum per-node change over the unlabeled suffix drops below the
// tolerance or the iteration budget runs out.
func propagateIterative(cfg Config, m *graph.Matrix, labeled, init []float64) ([]float64, error) {
	n, numLabeled := m.N, len(labeled)
	y := seedValues(n, labeled, init)
	next := make([]float64, n)
	delta := make([]float64, n-numLabeled)

	for iter := 0; iter < cfg.Iterations; iter++ {
		copy(next, y)
		for i := numLabeled; i < n; i++ {
			if m.D[i] == 0 {
				continue
			}
			next[i] = floats.Dot(m.Row(i), y) / m.D[i]
		}

		copy(delta, next[numLabeled:])
		floats.Sub(delta, y[numLabeled:])
		change := floats.Norm(delta, math.Inf(1))
		copy(y, next)
		if change < cfg.Tolerance {
			break
		}
	}
	return y, nil
}

// propagateClosedForm solves the propagation fixed point directly:
// T = D⁻¹W partitioned into labeled/unlabeled blocks, then
// f_u = pinv(I − T_uu) · T_ul · y_l.
func propagateClosedForm(m *graph.Matrix, labeled []float64) ([]float64, error) {
	n, numLabeled := m.N, len(labeled)
	u := n - numLabeled
	if u == 0 {
		return seedValues(n, labeled, nil), nil
	}

	tuu := mat.NewDense(u, u, nil)
	tul := mat.NewDense(u, numLabeled, nil)
	for i := 0; i < u; i++ {
		row := m.Row(numLabeled + i)
		deg := m.D[numLabeled+i]
		if deg == 0 {
			continue
		}
		for j := 0; j < numLabeled; j++ {
			tul.Set(i, j, row[j]/deg)
		}
		for j := 0; j < u; j++ {
			tuu.Set(i, j, row[numLabeled+j]/deg)
		}
	}

	a := identity(u)
	a.Sub(a, tuu)
	pinv, err := pseudoInverse(a)
	if err != nil {
		return nil, fmt.Errorf("closed-form propagation: %w", err)
	}

	fu := solveBlock(pinv, tul, labeled, 1)
	return assemble(labeled, fu), nil
}

// spreadIterative runs the symmetric-normalized fixed point
// Y ← αSY + (1−α)Y₀ with S = D^{-1/2} W D^{-1/2}.
func spreadIterative(cfg Config, m *graph.Matrix, labeled, init []float64) ([]float64, error) {
	n, numLabeled := m.N, len(labeled)
	s := normalizedWeights(m)
	y0 := seedValues(n, labeled, init)
	y := make([]float64, n)
	copy(y, y0)
	next := make([]float64, n)
	delta := make([]float64, n-numLabeled)

	for iter := 0; iter < cfg.Iterations; iter++ {
		for i := 0; i < n; i++ {
			next[i] = cfg.Alpha*floats.Dot(s[i*n:(i+1)*n], y) + (1-cfg.Alpha)*y0[i]
		}

		copy(delta, next[numLabeled:])
		floats.Sub(delta, y[numLabeled:])
		change := floats.Norm(delta, math.Inf(1))
		copy(y, next)
		if change < cfg.Tolerance {
			break
		}
	}
	return y, nil
}

// spreadClosedForm solves the spreading fixed point directly:
// f = (1−α) · pinv(I − αS) · y₀.
func spreadClosedForm(cfg Config, m *graph.Matrix, labeled, init []float64) ([]float64, error) {
	n := m.N
	s := normalizedWeights(m)
	a := identity(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, a.At(i, j)-cfg.Alpha*s[i*n+j])
		}
	}
	pinv, err := pseudoInverse(a)
	if err != nil {
		return nil, fmt.Errorf("closed-form spreading: %w", err)
	}

	y0 := mat.NewVecDense(n, seedValues(n, labeled, init))
	var f mat.VecDense
	f.MulVec(pinv, y0)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (1 - cfg.Alpha) * f.AtVec(i)
	}
	return out, nil
}

// harmonicFields solves the harmonic energy minimization in closed
// form over the graph Laplacian: f_u = −pinv(L_uu) · L_ul · y_l. A
// failed factorization is non-fatal: the result degrades to labeling
// every unlabeled node False, with a warning.
func harmonicFields(m *graph.Matrix, labeled []float64) ([]float64, error) {
	n, numLabeled := m.N, len(labeled)
	u := n - numLabeled
	if u == 0 {
		return seedValues(n, labeled, nil), nil
	}

	luu := mat.NewDense(u, u, nil)
	lul := mat.NewDense(u, numLabeled, nil)
	for i := 0; i < u; i++ {
		row := m.Row(numLabeled + i)
		for j := 0; j < numLabeled; j++ {
			lul.Set(i, j, -row[j])
		}
		for j := 0; j < u; j++ {
			w := -row[numLabeled+j]
			if j == i {
				w = m.D[numLabeled+i]
			}
			luu.Set(i, j, w)
		}
	}

	pinv, err := pseudoInverse(luu)
	if err != nil {
		slog.Warn("harmonic solve degraded to closed-world labeling",
			slog.Int("unlabeled", u),
			slog.String("cause", err.Error()))
		fu := make([]float64, u)
		for i := range fu {
			fu[i] = -1
		}
		return assemble(labeled, fu), nil
	}

	fu := solveBlock(pinv, lul, labeled, -1)
	return assemble(labeled, fu), nil
}

// solveBlock computes scale · P · B · y_l as a flat vector.
func solveBlock(p, b *mat.Dense, labeled []float64, scale float64) []float64 {
	yl := mat.NewVecDense(len(labeled), labeled)
	var tmp, f mat.VecDense
	tmp.MulVec(b, yl)
	f.MulVec(p, &tmp)

	out := make([]float64, f.Len())
	for i := range out {
		out[i] = scale * f.AtVec(i)
	}
	return out
}

// assemble concatenates the clamped labeled values with the solved
// unlabeled values.
func assemble(labeled, unlabeled []float64) []float64 {
	out := make([]float64, 0, len(labeled)+len(unlabeled))
	out = append(out, labeled...)
	out = append(out, unlabeled...)
	return out
}

// normalizedWeights builds S = D^{-1/2} W D^{-1/2} as a flat buffer.
func normalizedWeights(m *graph.Matrix) []float64 {
	n := m.N
	s := make([]float64, n*n)
	for i := 0; i < n; i++ {
		if m.D[i] == 0 {
			continue
		}
		di := 1 / math.Sqrt(m.D[i])
		row := m.Row(i)
		for j := 0; j < n; j++ {
			if row[j] == 0 || m.D[j] == 0 {
				continue
			}
			s[i*n+j] = row[j] * di / math.Sqrt(m.D[j])
		}
	}
	return s
}

// identity returns the n×n identity as a dense matrix.
func identity(n int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, 1)
	}
	return a
}
