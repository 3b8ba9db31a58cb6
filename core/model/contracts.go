package model

import "github.com/adalundhe/labelgraph/core/logic"

// Collaborator contracts. The engine never implements these itself:
// grounding, the evidence metric, subsumption against background
// knowledge and the LP/MIP feature-selection optimizer all live
// outside the core and are reached through these interfaces.

// Metric computes a distance in [0,1] between two evidence
// collections. Implementations may be arbitrarily expensive; the
// connector memoizes calls per node pair.
type Metric interface {
	Distance(a, b []logic.Literal) (float64, error)
}

// WeightedMetric is a Metric that can be re-parameterized with
// per-feature weights by the feature-selection collaborator.
type WeightedMetric interface {
	Metric
	WithWeights(weights map[string]float64) Metric
}

// NodeSource turns a raw evidence batch plus a partial annotation into
// Node values, labeled entries first.
type NodeSource interface {
	Ground(evidence []logic.Literal, annotation FullAnnotation, modes []ModeDeclaration) ([]*Node, error)
}

// SubsumptionChecker tests a candidate clause against background
// knowledge. Labeled nodes whose clause is already entailed carry no
// new signal and are dropped before caching.
type SubsumptionChecker interface {
	IsSubsumed(candidate *logic.Clause) (bool, error)
}

// FeatureSelector is the margin-based clustering optimizer. Given the
// current labeled representatives and their frequency cache it returns
// re-weighting factors for the metric and a selected (possibly reduced
// or augmented) labeled set.
type FeatureSelector interface {
	Optimize(labeled []*Node, cache *NodeCache) (map[string]float64, []*Node, error)
}

// NodeCluster is exchanged with the feature-selection collaborator: a
// group of nodes sharing majority polarity plus a density measure.
// The core only carries it across the boundary.
type NodeCluster struct {
	Nodes    []*Node
	Positive bool
	Density  float64
}
