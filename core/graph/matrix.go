package graph

import (
	"github.com/viterin/vek"
)

// Matrix is the symmetric weighted adjacency of a supervision graph
// plus its degree diagonal. Weights live in a flat row-major buffer;
// a weight of 0 doubles as the "no edge" sentinel, an ambiguity the
// solvers rely on.
//
// Invariants: W[i][i] == 0, W[i][j] == W[j][i], and the labeled nodes
// of the underlying sequence occupy the index prefix.
type Matrix struct {
	N int
	W []float64 // N×N row-major weights
	D []float64 // N degree diagonal (row sums)
}

// NewMatrix allocates an all-zero n×n matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{
		N: n,
		W: make([]float64, n*n),
		D: make([]float64, n),
	}
}

// At returns W[i][j].
func (m *Matrix) At(i, j int) float64 {
	return m.W[i*m.N+j]
}

// Set writes W[i][j] and its mirror W[j][i].
func (m *Matrix) Set(i, j int, w float64) {
	m.W[i*m.N+j] = w
	m.W[j*m.N+i] = w
}

// Row returns the i-th row as a live slice into the buffer.
func (m *Matrix) Row(i int) []float64 {
	return m.W[i*m.N : (i+1)*m.N]
}

// Degree returns the degree of node i.
func (m *Matrix) Degree(i int) float64 {
	return m.D[i]
}

// RecomputeDegrees refreshes the degree diagonal from the row sums.
func (m *Matrix) RecomputeDegrees() {
	for i := 0; i < m.N; i++ {
		m.D[i] = vek.Sum(m.Row(i))
	}
}

// Clone deep-copies the matrix.
func (m *Matrix) Clone() *Matrix {
	dup := NewMatrix(m.N)
	copy(dup.W, m.W)
	copy(dup.D, m.D)
	return dup
}

// Grow returns a copy zero-padded to n+extra nodes; existing weights
// keep their indices.
func (m *Matrix) Grow(extra int) *Matrix {
	if extra <= 0 {
		return m.Clone()
	}
	n := m.N + extra
	grown := NewMatrix(n)
	for i := 0; i < m.N; i++ {
		copy(grown.W[i*n:i*n+m.N], m.Row(i))
	}
	copy(grown.D, m.D)
	return grown
}

// drop removes row and column idx, returning a fresh matrix. Degrees
// are not recomputed; the caller decides when.
func (m *Matrix) drop(idx int) *Matrix {
	n := m.N - 1
	out := NewMatrix(n)
	for i, oi := 0, 0; i < m.N; i++ {
		if i == idx {
			continue
		}
		for j, oj := 0, 0; j < m.N; j++ {
			if j == idx {
				continue
			}
			out.W[oi*n+oj] = m.W[i*m.N+j]
			oj++
		}
		out.D[oi] = m.D[i]
		oi++
	}
	return out
}

// Rect is the rectangular weight matrix between two disjoint node
// sets, produced by BiConnect for plain nearest-neighbor voting.
type Rect struct {
	Rows, Cols int
	W          []float64 // row-major Rows×Cols
}

// NewRect allocates an all-zero rows×cols matrix.
func NewRect(rows, cols int) *Rect {
	return &Rect{Rows: rows, Cols: cols, W: make([]float64, rows*cols)}
}

// At returns W[i][j].
func (r *Rect) At(i, j int) float64 {
	return r.W[i*r.Cols+j]
}

// Row returns the i-th row as a live slice.
func (r *Rect) Row(i int) []float64 {
	return r.W[i*r.Cols : (i+1)*r.Cols]
}
