package logic

// Matching primitives behind node subsumption. The strict form is
// exact multiset containment; the soft form matches up to a consistent
// variable renaming, greedily, without regard to literal order.

// ContainsAll reports whether every literal in sub occurs in super,
// respecting multiplicity. Literals compare by exact syntactic
// equality.
func ContainsAll(super, sub []Literal) bool {
	used := make([]bool, len(super))
	for _, want := range sub {
		found := false
		for i, have := range super {
			if used[i] || !have.Equal(want) {
				continue
			}
			used[i] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// binding is a one-to-one variable renaming built up during matching.
type binding struct {
	forward map[string]string
	reverse map[string]string
}

func newBinding() *binding {
	return &binding{forward: make(map[string]string), reverse: make(map[string]string)}
}

// bind attempts to record the renaming a -> c, failing if either side
// is already bound elsewhere.
func (b *binding) bind(a, c string) bool {
	if prev, ok := b.forward[a]; ok {
		return prev == c
	}
	if prev, ok := b.reverse[c]; ok {
		return prev == a
	}
	b.forward[a] = c
	b.reverse[c] = a
	return true
}

func (b *binding) snapshot() (map[string]string, map[string]string) {
	fw := make(map[string]string, len(b.forward))
	rv := make(map[string]string, len(b.reverse))
	for k, v := range b.forward {
		fw[k] = v
	}
	for k, v := range b.reverse {
		rv[k] = v
	}
	return fw, rv
}

func (b *binding) restore(fw, rv map[string]string) {
	b.forward = fw
	b.reverse = rv
}

// matchLiteral extends the binding so that a maps onto c, or reports
// failure leaving the binding untouched. Constants must be identical;
// variables must rename consistently.
func matchLiteral(a, c Literal, b *binding) bool {
	if a.Predicate != c.Predicate || a.Negated != c.Negated || len(a.Args) != len(c.Args) {
		return false
	}
	fw, rv := b.snapshot()
	for i := range a.Args {
		x, y := a.Args[i], c.Args[i]
		switch {
		case !x.IsVar() && !y.IsVar():
			if x.Name != y.Name {
				b.restore(fw, rv)
				return false
			}
		case x.IsVar() && y.IsVar():
			if !b.bind(x.Name, y.Name) {
				b.restore(fw, rv)
				return false
			}
		default:
			b.restore(fw, rv)
			return false
		}
	}
	return true
}

// MatchesUpToRenaming reports whether every literal in sub can be
// greedily matched against a distinct literal of super under one
// consistent variable renaming. Greedy: the first compatible candidate
// is taken and never revisited, which mirrors the soft-subsumption
// semantics (cheap, order-insensitive, not a full theta-subsumption
// search).
func MatchesUpToRenaming(super, sub []Literal) bool {
	used := make([]bool, len(super))
	b := newBinding()
	for _, want := range sub {
		found := false
		for i, have := range super {
			if used[i] {
				continue
			}
			if matchLiteral(want, have, b) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
