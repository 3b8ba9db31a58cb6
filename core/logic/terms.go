package logic

import (
	"fmt"
	"strings"
)

// TermKind distinguishes variables from constants.
type TermKind int

const (
	Constant TermKind = iota
	Variable
)

// Term is a single argument of a literal: either a named variable or a
// ground constant. Terms are value types and compare with ==.
type Term struct {
	Kind TermKind
	Name string
}

// Var builds a variable term.
func Var(name string) Term {
	return Term{Kind: Variable, Name: name}
}

// Const builds a constant term.
func Const(name string) Term {
	return Term{Kind: Constant, Name: name}
}

// IsVar reports whether the term is a variable.
func (t Term) IsVar() bool {
	return t.Kind == Variable
}

func (t Term) String() string {
	return t.Name
}

// Literal is a predicate applied to a list of terms, possibly negated.
type Literal struct {
	Predicate string
	Args      []Term
	Negated   bool
}

// Atom builds a positive literal.
func Atom(predicate string, args ...Term) Literal {
	return Literal{Predicate: predicate, Args: args}
}

// Negate returns a copy with the opposite sign.
func (l Literal) Negate() Literal {
	flipped := l.copyLiteral()
	flipped.Negated = !l.Negated
	return flipped
}

func (l Literal) copyLiteral() Literal {
	args := make([]Term, len(l.Args))
	copy(args, l.Args)
	return Literal{Predicate: l.Predicate, Args: args, Negated: l.Negated}
}

// Signature returns the predicate/arity pair, e.g. "parent/2".
func (l Literal) Signature() string {
	return fmt.Sprintf("%s/%d", l.Predicate, len(l.Args))
}

// Equal reports exact syntactic equality.
func (l Literal) Equal(other Literal) bool {
	if l.Predicate != other.Predicate || l.Negated != other.Negated || len(l.Args) != len(other.Args) {
		return false
	}
	for i, arg := range l.Args {
		if arg != other.Args[i] {
			return false
		}
	}
	return true
}

func (l Literal) String() string {
	var sb strings.Builder
	if l.Negated {
		sb.WriteString("!")
	}
	sb.WriteString(l.Predicate)
	if len(l.Args) > 0 {
		sb.WriteString("(")
		for i, arg := range l.Args {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(arg.String())
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// Clause is a definite clause: head literal plus body literals.
type Clause struct {
	Head Literal
	Body []Literal
}

// NewClause builds a clause from a head and body literals.
func NewClause(head Literal, body ...Literal) *Clause {
	return &Clause{Head: head, Body: body}
}

func (c *Clause) String() string {
	if len(c.Body) == 0 {
		return c.Head.String() + "."
	}
	parts := make([]string, len(c.Body))
	for i, lit := range c.Body {
		parts[i] = lit.String()
	}
	return c.Head.String() + " :- " + strings.Join(parts, ", ")
}
