package solve

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var ErrSingularSystem = errors.New("SVD factorization failed")

// pseudoInverse computes the Moore-Penrose inverse of a via thin SVD,
// zeroing singular values below a relative tolerance. The closed-form
// solvers depend on this being well defined even for rank-deficient
// systems.
func pseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrSingularSystem
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	r, c := a.Dims()
	larger := r
	if c > larger {
		larger = c
	}

	var cutoff float64
	if len(values) > 0 {
		cutoff = values[0] * float64(larger) * epsilonFloat64
	}

	// V @ Σ⁺ @ Uᵀ, with Σ⁺ applied column-wise to V.
	scaled := mat.NewDense(c, len(values), nil)
	for j, s := range values {
		inv := 0.0
		if s > cutoff {
			inv = 1 / s
		}
		for i := 0; i < c; i++ {
			scaled.Set(i, j, v.At(i, j)*inv)
		}
	}

	pinv := mat.NewDense(c, r, nil)
	pinv.Mul(scaled, u.T())
	return pinv, nil
}

// epsilonFloat64 is the float64 machine epsilon used for the singular
// value cutoff.
const epsilonFloat64 = 2.220446049250313e-16
