package supervision

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adalundhe/labelgraph/core/config"
	"github.com/adalundhe/labelgraph/core/graph"
	"github.com/adalundhe/labelgraph/core/logic"
	"github.com/adalundhe/labelgraph/core/model"
	"github.com/adalundhe/labelgraph/core/solve"
)

// Sink row indices of the retained matrix. All historical labeled
// evidence is compressed into these two super-nodes: individual
// labeled identity is deliberately traded for bounded memory.
const (
	negativeSink = 0
	positiveSink = 1
	sinkCount    = 2
)

// sinkValues is the fixed labeled vector of every streaming solve.
var sinkValues = []float64{-1, 1}

// StreamingGraphManager completes supervision over an unbounded batch
// sequence under a fixed memory budget. It retains an adjacency matrix
// of 2 + memory nodes, two polarity sinks plus a window of the most
// recent unlabeled nodes, growing it per batch and contracting it
// back with the synopsis reduction before handing out the next state.
//
// A manager value is exclusively owned by the single caller driving
// the batch sequence; Extend returns a replacement value and never
// touches the receiver's retained matrix or window. The pattern cache
// is shared across the lineage and advances in place.
type StreamingGraphManager struct {
	retained *graph.Matrix
	window   []*model.Node
	memory   int

	connector *graph.Connector
	solver    solve.Config
	cache     *model.NodeCache
	source    model.NodeSource
	target    string
}

// NewStreaming builds an empty streaming manager from the same params
// as the batch orchestrator. Voting algorithms cannot drive the sink
// construction and are rejected up front.
func NewStreaming(p Params) (*StreamingGraphManager, error) {
	if p.Options == nil {
		p.Options = config.DefaultOptions()
	}
	if p.Metric == nil {
		return nil, errors.New("streaming manager requires a metric")
	}
	if p.Source == nil {
		return nil, errors.New("streaming manager requires a node source")
	}
	if p.Target == "" {
		return nil, fmt.Errorf("%w: no target signature configured", model.ErrMissingTarget)
	}

	connectorCfg, err := p.Options.ConnectorConfig()
	if err != nil {
		return nil, err
	}
	solverCfg, err := p.Options.SolverConfig()
	if err != nil {
		return nil, err
	}
	if solverCfg.Algorithm.Voting() {
		return nil, fmt.Errorf("streaming requires a propagation solver, got %s", solverCfg.Algorithm)
	}
	connector, err := graph.NewConnector(connectorCfg, p.Metric)
	if err != nil {
		return nil, err
	}

	memory := p.Options.Streaming.Memory
	if memory < 1 {
		memory = 1
	}

	return &StreamingGraphManager{
		retained:  graph.NewMatrix(sinkCount),
		memory:    memory,
		connector: connector,
		solver:    solverCfg,
		cache:     model.NewNodeCache(),
		source:    p.Source,
		target:    p.Target,
	}, nil
}

// Window returns the retained recent unlabeled nodes, oldest first.
func (s *StreamingGraphManager) Window() []*model.Node {
	return s.window
}

// RetainedSize is the current node count of the retained matrix,
// sinks included. It never exceeds 2 + memory between extensions.
func (s *StreamingGraphManager) RetainedSize() int {
	return s.retained.N
}

// Extend folds a new batch into the stream: labeled arrivals feed the
// polarity sinks through the cache, unlabeled arrivals are wired to
// the sinks and the retained window, the grown graph is solved with
// the fixed (-1, +1) sink vector, and the matrix is contracted back to
// 2 + memory nodes. Returns the next manager state plus the labels
// inferred for this batch's unlabeled arrivals.
func (s *StreamingGraphManager) Extend(evidence []logic.Literal, annotation model.FullAnnotation, modes []model.ModeDeclaration) (*StreamingGraphManager, []model.LabeledLiteral, error) {
	batch := uuid.NewString()
	grounded, err := s.source.Ground(evidence, annotation, modes)
	if err != nil {
		return nil, nil, fmt.Errorf("ground batch %s: %w", batch, err)
	}

	labeled, unlabeled := model.Partition(grounded)
	arrivals, emptyArrivals := splitEmpty(unlabeled)

	var completed []model.LabeledLiteral
	if len(emptyArrivals) > 0 {
		slog.Warn("unlabeled nodes without evidence labeled false on sight",
			slog.String("batch", batch),
			slog.Int("count", len(emptyArrivals)))
		for _, n := range emptyArrivals {
			completed = append(completed, n.LabelUsingValue(-1)...)
		}
	}

	s.cache.Merge(labeled...)

	if len(arrivals) == 0 {
		slog.Warn("streaming batch carried no unlabeled nodes",
			slog.String("batch", batch),
			slog.String("target", s.target))
		return s.withState(s.retained.Clone(), s.window), completed, nil
	}

	grown, err := s.wireArrivals(arrivals)
	if err != nil {
		return nil, nil, fmt.Errorf("wire batch %s: %w", batch, err)
	}

	values, err := solve.Propagate(s.solver, grown, sinkValues, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("solve batch %s: %w", batch, err)
	}

	base := sinkCount + len(s.window)
	for i, n := range arrivals {
		completed = append(completed, n.LabelUsingValue(values[base+i])...)
	}

	nextWindow := append(append([]*model.Node{}, s.window...), arrivals...)
	if len(nextWindow) > s.memory {
		nextWindow = nextWindow[len(nextWindow)-s.memory:]
	}
	contracted := graph.Synopsis(grown, sinkCount, s.memory)

	slog.Debug("extended streaming graph",
		slog.String("batch", batch),
		slog.Int("arrivals", len(arrivals)),
		slog.Int("retained", contracted.N))

	return s.withState(contracted, nextWindow), completed, nil
}

// wireArrivals grows the retained matrix by the new unlabeled nodes
// and computes their edges: the two sink aggregates plus direct
// pairwise connections to the window and to each other.
func (s *StreamingGraphManager) wireArrivals(arrivals []*model.Node) (*graph.Matrix, error) {
	base := s.retained.N
	grown := s.retained.Grow(len(arrivals))

	for i, n := range arrivals {
		row := base + i

		negWeight, posWeight, err := s.sinkWeights(n)
		if err != nil {
			return nil, err
		}
		grown.Set(negativeSink, row, negWeight)
		grown.Set(positiveSink, row, posWeight)

		for j, prior := range s.window {
			w, err := s.connector.Connect(n, prior)
			if err != nil {
				return nil, err
			}
			grown.Set(sinkCount+j, row, w)
		}

		for k := 0; k < i; k++ {
			w, err := s.connector.Connect(n, arrivals[k])
			if err != nil {
				return nil, err
			}
			grown.Set(base+k, row, w)
		}
	}

	grown.RecomputeDegrees()
	return grown, nil
}

// sinkWeights aggregates the node's similarity to all historical
// labeled evidence of each polarity: cache-count-weighted connection
// strength to the cached representatives, normalized by the polarity's
// total count so the weight stays in [0, 1].
func (s *StreamingGraphManager) sinkWeights(n *model.Node) (neg, pos float64, err error) {
	var negMass, posMass float64
	var negCount, posCount int
	for _, rep := range s.cache.CollectNodes() {
		count := s.cache.GetOrElse(rep, 0)
		w, cerr := s.connector.Connect(n, rep)
		if cerr != nil {
			return 0, 0, cerr
		}
		if rep.IsPositive() {
			posMass += w * float64(count)
			posCount += count
		} else {
			negMass += w * float64(count)
			negCount += count
		}
	}
	if negCount > 0 {
		neg = negMass / float64(negCount)
	}
	if posCount > 0 {
		pos = posMass / float64(posCount)
	}
	return neg, pos, nil
}

// withState produces the successor manager value.
func (s *StreamingGraphManager) withState(retained *graph.Matrix, window []*model.Node) *StreamingGraphManager {
	next := *s
	next.retained = retained
	next.window = window
	return &next
}
