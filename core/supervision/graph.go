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

// Params wires a SupervisionGraph to its collaborators. Options,
// Metric and Source are required; the subsumption checker and the
// feature selector are optional refinements.
type Params struct {
	Options     *config.Options
	Metric      model.Metric
	Source      model.NodeSource
	Subsumption model.SubsumptionChecker
	Selector    model.FeatureSelector

	// Target is the predicate/arity signature whose supervision is
	// being completed, e.g. "meeting/2".
	Target string
}

// SupervisionGraph orchestrates completion over the current node
// partition: labeled nodes occupy the index prefix, unlabeled nodes
// the suffix, and every downstream slice depends on that ordering
// holding after construction and after every Extend.
//
// The node partition is an immutable value: Extend returns a new graph
// and never touches the receiver's nodes. The NodeCache is shared
// across the lineage and advances in place; it is owned by whichever
// graph value was produced last, and extensions against one cache must
// be serialized by the caller.
type SupervisionGraph struct {
	nodes           []*model.Node
	numberOfLabeled int

	connector *graph.Connector
	solver    solve.Config
	metric    model.Metric
	cache     *model.NodeCache

	source      model.NodeSource
	subsumption model.SubsumptionChecker
	selector    model.FeatureSelector

	target    string
	filter    config.FilterOptions
	selection config.SelectionOptions

	// closedWorld holds unlabeled arrivals that carried no evidence
	// and were labeled False on sight; they surface in the next
	// completion result without entering the graph.
	closedWorld []*model.Node
}

// New builds an empty supervision graph; nodes arrive through Extend.
func New(p Params) (*SupervisionGraph, error) {
	if p.Options == nil {
		p.Options = config.DefaultOptions()
	}
	if p.Metric == nil {
		return nil, errors.New("supervision graph requires a metric")
	}
	if p.Source == nil {
		return nil, errors.New("supervision graph requires a node source")
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
	connector, err := graph.NewConnector(connectorCfg, p.Metric)
	if err != nil {
		return nil, err
	}

	return &SupervisionGraph{
		connector:   connector,
		solver:      solverCfg,
		metric:      p.Metric,
		cache:       model.NewNodeCache(),
		source:      p.Source,
		subsumption: p.Subsumption,
		selector:    p.Selector,
		target:      p.Target,
		filter:      p.Options.Filter,
		selection:   p.Options.Selection,
	}, nil
}

// Nodes returns the current node sequence, labeled prefix first.
func (g *SupervisionGraph) Nodes() []*model.Node {
	return g.nodes
}

// NumberOfLabeled is the length of the labeled prefix.
func (g *SupervisionGraph) NumberOfLabeled() int {
	return g.numberOfLabeled
}

// Cache exposes the pattern-frequency cache.
func (g *SupervisionGraph) Cache() *model.NodeCache {
	return g.cache
}

// CompleteSupervision infers truth values for the unlabeled suffix
// from the labeled prefix and returns the inferred literals together
// with the full annotation over every known query atom. potentials,
// keyed by the query atom's string form, seed prior values for the
// iterative solvers.
func (g *SupervisionGraph) CompleteSupervision(potentials map[string]float64) ([]model.LabeledLiteral, model.FullAnnotation, error) {
	labeled := g.nodes[:g.numberOfLabeled]
	unlabeled := g.nodes[g.numberOfLabeled:]

	completed := g.closedWorldLiterals()

	if len(unlabeled) == 0 {
		slog.Warn("no unlabeled nodes, returning identity annotation",
			slog.String("target", g.target),
			slog.Int("labeled", len(labeled)))
		return completed, g.annotationFor(completed), nil
	}

	if len(labeled) == 0 {
		slog.Warn("no labeled nodes, applying closed-world default",
			slog.String("target", g.target),
			slog.Int("unlabeled", len(unlabeled)))
		for _, n := range unlabeled {
			completed = append(completed, n.LabelUsingValue(-1)...)
		}
		return completed, g.annotationFor(completed), nil
	}

	values, err := g.solveValues(labeled, unlabeled, potentials)
	if err != nil {
		return nil, nil, err
	}

	for i, n := range unlabeled {
		completed = append(completed, n.LabelUsingValue(values[i])...)
	}
	return completed, g.annotationFor(completed), nil
}

// solveValues runs the configured connector/solver pair and returns
// one value per unlabeled node.
func (g *SupervisionGraph) solveValues(labeled, unlabeled []*model.Node, potentials map[string]float64) ([]float64, error) {
	if g.solver.Algorithm.Voting() {
		return g.voteValues(labeled, unlabeled)
	}

	m, err := g.connector.SmartConnect(g.nodes, g.numberOfLabeled)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	labeledValues := make([]float64, len(labeled))
	for i, n := range labeled {
		if n.IsPositive() {
			labeledValues[i] = 1
		} else {
			labeledValues[i] = -1
		}
	}

	var init []float64
	if len(potentials) > 0 {
		init = make([]float64, len(unlabeled))
		for i, n := range unlabeled {
			init[i] = potentials[n.Query.String()]
		}
	}

	values, err := solve.Propagate(g.solver, m, labeledValues, init)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	return values[g.numberOfLabeled:], nil
}

// voteValues runs nearest-neighbor voting over the rectangular
// unlabeled-by-labeled weight matrix.
func (g *SupervisionGraph) voteValues(labeled, unlabeled []*model.Node) ([]float64, error) {
	r, err := g.connector.BiConnect(unlabeled, labeled)
	if err != nil {
		return nil, fmt.Errorf("biconnect: %w", err)
	}
	if g.solver.Algorithm == solve.ExtendedNearestNeighbor {
		return solve.ExtendedVote(r, labeled, g.cache)
	}
	return solve.Vote(r, labeled, g.cache)
}

func (g *SupervisionGraph) closedWorldLiterals() []model.LabeledLiteral {
	var out []model.LabeledLiteral
	for _, n := range g.closedWorld {
		out = append(out, n.LabelUsingValue(-1)...)
	}
	return out
}

// annotationFor merges the graph's known labels with freshly inferred
// ones into one annotation.
func (g *SupervisionGraph) annotationFor(completed []model.LabeledLiteral) model.FullAnnotation {
	annotation := make(model.FullAnnotation, len(g.nodes)+len(completed))
	for _, n := range g.nodes[:g.numberOfLabeled] {
		annotation[n.Query.String()] = n.Label
	}
	for _, lit := range completed {
		label := model.False
		if lit.Value {
			label = model.True
		}
		annotation[lit.Atom.String()] = label
	}
	return annotation
}

// Extend grounds a new evidence batch, folds its labeled survivors
// into the cache and returns a new graph over the selected labeled
// representatives followed by the non-empty unlabeled arrivals. The
// receiver's node partition is never mutated; the NodeCache is the
// shared exception and advances in place (see the type comment).
func (g *SupervisionGraph) Extend(evidence []logic.Literal, annotation model.FullAnnotation, modes []model.ModeDeclaration) (*SupervisionGraph, error) {
	targetMode, err := g.targetMode(modes)
	if err != nil {
		return nil, err
	}

	batch := uuid.NewString()
	grounded, err := g.source.Ground(evidence, annotation, modes)
	if err != nil {
		return nil, fmt.Errorf("ground batch %s: %w", batch, err)
	}

	labeled, unlabeled := model.Partition(grounded)
	arrivals, emptyArrivals := splitEmpty(unlabeled)
	if len(emptyArrivals) > 0 {
		slog.Warn("unlabeled nodes without evidence labeled false on sight",
			slog.String("batch", batch),
			slog.Int("count", len(emptyArrivals)))
	}

	survivors, err := g.filterLabeled(labeled)
	if err != nil {
		return nil, err
	}
	g.cache.Merge(survivors...)

	selected := g.selectRepresentatives()
	connector, metric := g.connector, g.metric

	if g.selection.Augment && allPositive(selected) && len(selected) > 0 {
		selected = augmentAll(selected, targetMode)
		g.adoptManufactured(selected)
		slog.Debug("augmented single-polarity labeled set",
			slog.String("batch", batch),
			slog.Int("selected", len(selected)))
	}

	if g.selector != nil && g.selection.Enabled && g.cache.Dirty() && g.cache.HasBothPolarities() {
		weights, optimized, err := g.selector.Optimize(selected, g.cache)
		if err != nil {
			return nil, fmt.Errorf("feature selection: %w", err)
		}
		if optimized != nil {
			selected = optimized
			g.adoptManufactured(selected)
		}
		if weighted, ok := metric.(model.WeightedMetric); ok && len(weights) > 0 {
			metric = weighted.WithWeights(weights)
			connector, err = connector.WithMetric(metric)
			if err != nil {
				return nil, fmt.Errorf("reweight connector: %w", err)
			}
		}
		g.cache.MarkClean()
	}

	if connector.Strategy().Temporal() {
		model.SortByOrder(selected)
		model.SortByOrder(arrivals)
	}

	slog.Debug("extended supervision graph",
		slog.String("batch", batch),
		slog.String("target", g.target),
		slog.Int("labeled", len(selected)),
		slog.Int("unlabeled", len(arrivals)))

	next := *g
	next.connector = connector
	next.metric = metric
	next.nodes = append(append([]*model.Node{}, selected...), arrivals...)
	next.numberOfLabeled = len(selected)
	next.closedWorld = emptyArrivals
	return &next, nil
}

// targetMode finds the mode declaration of the configured target; a
// batch without one is a fatal configuration error.
func (g *SupervisionGraph) targetMode(modes []model.ModeDeclaration) (model.ModeDeclaration, error) {
	for _, m := range modes {
		if m.Signature() == g.target {
			return m, nil
		}
	}
	return model.ModeDeclaration{}, fmt.Errorf("%w: %s", model.ErrMissingTarget, g.target)
}

// adoptManufactured caches labeled nodes the orchestrator produced
// itself (augmented negatives, selector output) at count 1. Every node
// of the labeled prefix must be in the cache: the voting solvers treat
// an absent neighbor as a fatal consistency violation.
func (g *SupervisionGraph) adoptManufactured(nodes []*model.Node) {
	for _, n := range nodes {
		if !g.cache.Contains(n) {
			g.cache.Merge(n)
		}
	}
}

// filterLabeled drops labeled nodes that are empty or whose clause is
// already entailed by background knowledge.
func (g *SupervisionGraph) filterLabeled(labeled []*model.Node) ([]*model.Node, error) {
	survivors := make([]*model.Node, 0, len(labeled))
	for _, n := range labeled {
		if n.IsEmpty() {
			continue
		}
		if g.subsumption != nil && n.Clause != nil {
			subsumed, err := g.subsumption.IsSubsumed(n.Clause)
			if err != nil {
				return nil, fmt.Errorf("subsumption check: %w", err)
			}
			if subsumed {
				continue
			}
		}
		survivors = append(survivors, n)
	}
	return survivors, nil
}

// selectRepresentatives consumes the cache's deduplicated patterns,
// applying the minimum size/occurrence thresholds. Pruning happens
// here, never inside the cache.
func (g *SupervisionGraph) selectRepresentatives() []*model.Node {
	var selected []*model.Node
	for _, n := range g.cache.CollectNodes() {
		if n.Size() < g.filter.MinNodeSize {
			continue
		}
		if g.cache.GetOrElse(n, 0) < g.filter.MinOccurrence {
			continue
		}
		selected = append(selected, n)
	}
	return selected
}

func splitEmpty(nodes []*model.Node) (nonEmpty, empty []*model.Node) {
	for _, n := range nodes {
		if n.IsEmpty() {
			empty = append(empty, n)
		} else {
			nonEmpty = append(nonEmpty, n)
		}
	}
	return nonEmpty, empty
}

func allPositive(nodes []*model.Node) bool {
	for _, n := range nodes {
		if !n.IsPositive() {
			return false
		}
	}
	return true
}

func augmentAll(nodes []*model.Node, mode model.ModeDeclaration) []*model.Node {
	var out []*model.Node
	for _, n := range nodes {
		out = append(out, n.Augment(mode)...)
	}
	return out
}
