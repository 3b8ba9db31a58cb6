package graph

// Synopsis reduces the matrix toward its start+end most relevant nodes
// by repeated elimination: while more than start+end nodes remain, the
// oldest retained node (the one at index start) is removed, its
// connectivity first redistributed onto every remaining pair through
// its degree:
//
//	W[i][j] += W[i][s]·W[s][j] / degree(s)
//
// and symmetrically, before row and column s are deleted. Aggregate
// reachability mass is preserved; the contraction itself is lossy.
//
// The input is not mutated: a fresh matrix is returned with degrees
// recomputed.
func Synopsis(m *Matrix, start, end int) *Matrix {
	keep := start + end
	if keep < 0 {
		keep = 0
	}
	out := m.Clone()
	for out.N > keep {
		out = eliminate(out, start)
	}
	out.RecomputeDegrees()
	return out
}

// eliminate removes node s, spreading its edge mass over the
// surviving pairs.
func eliminate(m *Matrix, s int) *Matrix {
	if s < 0 || s >= m.N {
		return m.drop(0)
	}
	deg := 0.0
	for j := 0; j < m.N; j++ {
		deg += m.At(s, j)
	}
	if deg > 0 {
		for i := 0; i < m.N; i++ {
			if i == s {
				continue
			}
			wi := m.At(i, s)
			if wi == 0 {
				continue
			}
			for j := i + 1; j < m.N; j++ {
				if j == s {
					continue
				}
				wj := m.At(s, j)
				if wj == 0 {
					continue
				}
				m.Set(i, j, m.At(i, j)+wi*wj/deg)
			}
		}
	}
	return m.drop(s)
}
