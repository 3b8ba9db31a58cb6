package model

import (
	"errors"

	"github.com/adalundhe/labelgraph/core/logic"
)

var (
	ErrMissingTarget = errors.New("target signature absent from annotation source")
	ErrCacheMiss     = errors.New("labeled node missing from cache")
)

// Label is the truth state of a node's query atom.
type Label int

const (
	Unknown Label = iota
	True
	False
)

func (l Label) String() string {
	switch l {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// LabeledLiteral pairs a ground query atom with its inferred or given
// truth value.
type LabeledLiteral struct {
	Atom  logic.Literal
	Value bool
}

// FullAnnotation maps query-atom keys to labels for a whole batch.
type FullAnnotation map[string]Label

// Merge folds another annotation into this one, returning the result.
// Later entries win on conflict.
func (a FullAnnotation) Merge(other FullAnnotation) FullAnnotation {
	merged := make(FullAnnotation, len(a)+len(other))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// ArgRole describes how a mode declaration treats one argument
// position of the target predicate.
type ArgRole int

const (
	RoleInput ArgRole = iota
	RoleOutput
	RoleConstant
	RoleIgnore
)

// ModeDeclaration tells the grounding collaborator how to interpret
// the target predicate's argument positions: which carry signal, which
// orders the stream, which group nodes into partitions, and which
// multi-valued positions can be split during augmentation.
type ModeDeclaration struct {
	Predicate string
	Arity     int
	Roles     []ArgRole

	// OrderArg is the position of the temporal ordering key, -1 when
	// the predicate has none.
	OrderArg int

	// PartitionArgs are positions whose constants group nodes into
	// domains.
	PartitionArgs []int

	// Domains lists the known constants of multi-valued positions,
	// consumed by Node.Augment.
	Domains map[int][]logic.Term
}

// Signature returns the predicate/arity key of the declaration.
func (m ModeDeclaration) Signature() string {
	return logic.Literal{Predicate: m.Predicate, Args: make([]logic.Term, m.Arity)}.Signature()
}
