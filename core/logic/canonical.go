package logic

import (
	"fmt"
	"strings"
)

// Canonical renaming maps variables to V0, V1, ... in order of first
// appearance, so that clauses differing only in variable names share
// one canonical key. The key is what the NodeCache deduplicates on.

// renamer assigns stable fresh names across a sequence of literals.
type renamer struct {
	names map[string]string
}

func newRenamer() *renamer {
	return &renamer{names: make(map[string]string)}
}

func (r *renamer) rename(t Term) Term {
	if !t.IsVar() {
		return t
	}
	fresh, ok := r.names[t.Name]
	if !ok {
		fresh = fmt.Sprintf("V%d", len(r.names))
		r.names[t.Name] = fresh
	}
	return Var(fresh)
}

func (r *renamer) renameLiteral(l Literal) Literal {
	args := make([]Term, len(l.Args))
	for i, arg := range l.Args {
		args[i] = r.rename(arg)
	}
	return Literal{Predicate: l.Predicate, Args: args, Negated: l.Negated}
}

// CanonicalClause returns a copy of the clause with variables renamed
// in order of first appearance, head first, then body left to right.
func CanonicalClause(c *Clause) *Clause {
	r := newRenamer()
	head := r.renameLiteral(c.Head)
	body := make([]Literal, len(c.Body))
	for i, lit := range c.Body {
		body[i] = r.renameLiteral(lit)
	}
	return &Clause{Head: head, Body: body}
}

// CanonicalKey renders the canonical clause as a stable string key.
func CanonicalKey(c *Clause) string {
	canon := CanonicalClause(c)
	var sb strings.Builder
	sb.WriteString(canon.Head.String())
	for _, lit := range canon.Body {
		sb.WriteString("|")
		sb.WriteString(lit.String())
	}
	return sb.String()
}
