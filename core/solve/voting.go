package solve

import (
	"fmt"

	"github.com/viterin/vek"

	"github.com/adalundhe/labelgraph/core/graph"
	"github.com/adalundhe/labelgraph/core/model"
)

// Vote labels each unlabeled node (a row of the rectangular matrix) by
// its connected labeled neighbors: cache occurrence counts are summed
// per polarity and the larger side wins. Ties are broken by the
// polarity of the single highest-weight neighbor, deterministically.
//
// Every connected labeled neighbor must be present in the cache; a
// miss is a fatal internal-consistency error, not a recoverable one.
// A node with no connected neighbors defaults to False (closed world).
func Vote(r *graph.Rect, labeled []*model.Node, cache *model.NodeCache) ([]float64, error) {
	out := make([]float64, r.Rows)
	for i := 0; i < r.Rows; i++ {
		row := r.Row(i)
		var posCount, negCount int
		for j, w := range row {
			if w <= 0 {
				continue
			}
			neighbor := labeled[j]
			count := cache.GetOrElse(neighbor, -1)
			if count < 0 {
				return nil, fmt.Errorf("%w: %s", model.ErrCacheMiss, neighbor.Query.String())
			}
			if neighbor.IsPositive() {
				posCount += count
			} else {
				negCount += count
			}
		}

		switch {
		case posCount > negCount:
			out[i] = 1
		case negCount > posCount:
			out[i] = -1
		default:
			out[i] = tieBreak(row, labeled)
		}
	}
	return out, nil
}

// tieBreak resolves an even vote by the polarity of the strongest
// single neighbor. No neighbors at all means closed-world False.
func tieBreak(row []float64, labeled []*model.Node) float64 {
	if len(row) == 0 {
		return -1
	}
	best := vek.ArgMax(row)
	if row[best] <= 0 {
		return -1
	}
	if labeled[best].IsPositive() {
		return 1
	}
	return -1
}

// ExtendedVote labels each row by four class-conditional statistics:
// for each assumed polarity, the cache-weighted neighbor mass of the
// same class under a leave-one-out normalization plus the mass of the
// opposite class under its plain normalization. The polarity whose
// self-class-plus-mixed score dominates wins; ties fall back to the
// highest-weight neighbor as in plain voting.
func ExtendedVote(r *graph.Rect, labeled []*model.Node, cache *model.NodeCache) ([]float64, error) {
	var totalPos, totalNeg int
	for _, n := range labeled {
		count := cache.GetOrElse(n, -1)
		if count < 0 {
			return nil, fmt.Errorf("%w: %s", model.ErrCacheMiss, n.Query.String())
		}
		if n.IsPositive() {
			totalPos += count
		} else {
			totalNeg += count
		}
	}

	out := make([]float64, r.Rows)
	for i := 0; i < r.Rows; i++ {
		row := r.Row(i)
		var posMass, negMass float64
		for j, w := range row {
			if w <= 0 {
				continue
			}
			count := float64(cache.GetOrElse(labeled[j], 0))
			if labeled[j].IsPositive() {
				posMass += w * count
			} else {
				negMass += w * count
			}
		}

		scorePos := classScore(posMass, totalPos+1) + classScore(negMass, totalNeg)
		scoreNeg := classScore(negMass, totalNeg+1) + classScore(posMass, totalPos)

		switch {
		case scorePos > scoreNeg:
			out[i] = 1
		case scoreNeg > scorePos:
			out[i] = -1
		default:
			out[i] = tieBreak(row, labeled)
		}
	}
	return out, nil
}

func classScore(mass float64, size int) float64 {
	if size <= 0 {
		return 0
	}
	return mass / float64(size)
}
