package model

import (
	"sort"

	"github.com/adalundhe/labelgraph/core/logic"
)

// Node pairs one target query atom with the evidence literals that
// support it. Nodes are immutable: every operation below returns a
// fresh value and the Similar duplicates are populated once, at
// grounding time, before the node reaches the graph engine.
type Node struct {
	// Query is the target atom this node decides.
	Query logic.Literal

	// Label is the supervision state of the query atom.
	Label Label

	// Evidence is the ordered sequence of supporting literals.
	Evidence []logic.Literal

	// Clause is the canonical clausal form (head + evidence body).
	// Nil for unlabeled nodes.
	Clause *logic.Clause

	// Head is the lifted head-literal template.
	Head logic.Literal

	// Order is the temporal ordering key; only meaningful when
	// HasOrder is set and only consulted by temporal strategies.
	Order    int
	HasOrder bool

	// Partitions are the domain-grouping keys of this node.
	Partitions map[string]struct{}

	// Similar holds query atoms that are unification-equivalent to
	// this node's query and must always receive the same label.
	Similar []logic.Literal
}

// NewLabeledNode builds a labeled node and its clausal form.
func NewLabeledNode(query logic.Literal, label Label, evidence []logic.Literal, head logic.Literal) *Node {
	n := &Node{
		Query:    query,
		Label:    label,
		Evidence: copyLiterals(evidence),
		Head:     head,
	}
	n.Clause = n.buildClause(label)
	return n
}

// NewUnlabeledNode builds an unlabeled node; no clause is attached
// until a label is decided.
func NewUnlabeledNode(query logic.Literal, evidence []logic.Literal, head logic.Literal) *Node {
	return &Node{
		Query:    query,
		Label:    Unknown,
		Evidence: copyLiterals(evidence),
		Head:     head,
	}
}

func copyLiterals(literals []logic.Literal) []logic.Literal {
	out := make([]logic.Literal, len(literals))
	copy(out, literals)
	return out
}

// buildClause assembles head :- evidence with the head sign following
// the label.
func (n *Node) buildClause(label Label) *logic.Clause {
	head := n.Head
	head.Negated = label == False
	return logic.NewClause(head, copyLiterals(n.Evidence)...)
}

// Size is the evidence count.
func (n *Node) Size() int {
	return len(n.Evidence)
}

// IsEmpty reports whether the node carries no evidence. Empty nodes
// have no discriminative signal and are excluded before connection.
func (n *Node) IsEmpty() bool {
	return len(n.Evidence) == 0
}

func (n *Node) IsLabeled() bool {
	return n.Label != Unknown
}

func (n *Node) IsPositive() bool {
	return n.Label == True
}

func (n *Node) IsNegative() bool {
	return n.Label == False
}

// ClusterSize counts this node plus its unification duplicates.
func (n *Node) ClusterSize() int {
	return 1 + len(n.Similar)
}

// CanonicalKey is the dedup key: the clause (or the synthetic clause
// of an unlabeled node) with variables renamed canonically.
func (n *Node) CanonicalKey() string {
	clause := n.Clause
	if clause == nil {
		clause = n.buildClause(True)
	}
	return logic.CanonicalKey(clause)
}

// copyNode duplicates everything except label-dependent state.
func (n *Node) copyNode() *Node {
	dup := &Node{
		Query:    n.Query,
		Label:    n.Label,
		Evidence: copyLiterals(n.Evidence),
		Head:     n.Head,
		Order:    n.Order,
		HasOrder: n.HasOrder,
		Similar:  copyLiterals(n.Similar),
	}
	if len(n.Partitions) > 0 {
		dup.Partitions = make(map[string]struct{}, len(n.Partitions))
		for k := range n.Partitions {
			dup.Partitions[k] = struct{}{}
		}
	}
	return dup
}

// ToPositive returns a copy labeled True with its clause rebuilt.
func (n *Node) ToPositive() *Node {
	dup := n.copyNode()
	dup.Label = True
	dup.Clause = dup.buildClause(True)
	return dup
}

// ToNegative returns a copy labeled False with its clause rebuilt, the
// head literal flipped in the clausal form.
func (n *Node) ToNegative() *Node {
	dup := n.copyNode()
	dup.Label = False
	dup.Clause = dup.buildClause(False)
	return dup
}

// Subsumes reports strict multiset containment: every evidence literal
// of other occurs (syntactically) in this node's evidence.
func (n *Node) Subsumes(other *Node) bool {
	return logic.ContainsAll(n.Evidence, other.Evidence)
}

// SoftSubsumes matches other's evidence against this node's evidence
// greedily, up to a consistent variable renaming and without regard to
// order.
func (n *Node) SoftSubsumes(other *Node) bool {
	return logic.MatchesUpToRenaming(n.Evidence, other.Evidence)
}

// Generalise drops every evidence literal whose signature appears in
// the given feature set, returning the reduced node with its clause
// rebuilt. The orchestrator passes the features the optimizer weighted
// to zero.
func (n *Node) Generalise(features map[string]struct{}) *Node {
	dup := n.copyNode()
	kept := dup.Evidence[:0]
	for _, lit := range dup.Evidence {
		if _, drop := features[lit.Signature()]; !drop {
			kept = append(kept, lit)
		}
	}
	dup.Evidence = kept
	if n.Clause != nil {
		dup.Clause = dup.buildClause(dup.Label)
	}
	return dup
}

// Augment splits the node along the multi-valued argument positions of
// the mode declaration: one sub-node per alternative constant, each
// forced negative, plus the original. The alternative constant is
// substituted throughout the query and the evidence so the sub-node
// stays internally consistent. Used to enrich a thin labeled set.
func (n *Node) Augment(mode ModeDeclaration) []*Node {
	out := []*Node{n}
	for pos, values := range mode.Domains {
		if pos < 0 || pos >= len(n.Query.Args) {
			continue
		}
		current := n.Query.Args[pos]
		if current.IsVar() {
			continue
		}
		for _, value := range values {
			if value == current {
				continue
			}
			out = append(out, n.substituted(current, value).ToNegative())
		}
	}
	return out
}

// substituted replaces every occurrence of constant from with to, in
// the query and all evidence literals.
func (n *Node) substituted(from, to logic.Term) *Node {
	dup := n.copyNode()
	replace := func(l logic.Literal) logic.Literal {
		args := make([]logic.Term, len(l.Args))
		for i, arg := range l.Args {
			if arg == from {
				args[i] = to
			} else {
				args[i] = arg
			}
		}
		return logic.Literal{Predicate: l.Predicate, Args: args, Negated: l.Negated}
	}
	dup.Query = replace(dup.Query)
	for i, lit := range dup.Evidence {
		dup.Evidence[i] = replace(lit)
	}
	return dup
}

// LabelUsingValue converts a solver value into the labeling for this
// node and all of its unification duplicates together; they must never
// receive different labels.
func (n *Node) LabelUsingValue(value float64) []LabeledLiteral {
	truth := value > 0
	out := make([]LabeledLiteral, 0, 1+len(n.Similar))
	out = append(out, LabeledLiteral{Atom: n.Query, Value: truth})
	for _, atom := range n.Similar {
		out = append(out, LabeledLiteral{Atom: atom, Value: truth})
	}
	return out
}

// SortByOrder orders nodes by their ordering key, descending. Nodes
// without an order key sink to the end. Used only by temporal
// strategies.
func SortByOrder(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.HasOrder != b.HasOrder {
			return a.HasOrder
		}
		return a.Order > b.Order
	})
}

// Partition splits nodes into labeled and unlabeled, preserving the
// relative order inside each part.
func Partition(nodes []*Node) (labeled, unlabeled []*Node) {
	for _, n := range nodes {
		if n.IsLabeled() {
			labeled = append(labeled, n)
		} else {
			unlabeled = append(unlabeled, n)
		}
	}
	return labeled, unlabeled
}
