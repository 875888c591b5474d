package queryir

import "github.com/roach88/ormsql/internal/ir"

// Expr is a node of the expression mini-language tree.
//
// This is a sealed interface. Expression types:
//   - Literal: a quoted string, number, boolean or null
//   - AttributeRef: "attr" or "alias.attr"
//   - FunctionCall: NAME:(arg, ...)
//   - Raw: an already-lowered SQL fragment
//
// Trees are immutable once parsed.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Literal is a constant operand.
// Value is IRString, IRInt, IRFloat, IRBool or IRNull.
type Literal struct {
	Value ir.IRValue
}

func (Literal) exprNode() {}

// AttributeRef references an attribute, optionally qualified by an alias.
type AttributeRef struct {
	Path string
}

func (AttributeRef) exprNode() {}

// FunctionCall applies a named function to ordered arguments.
// Name is stored upper-cased.
type FunctionCall struct {
	Name string
	Args []Expr
}

func (FunctionCall) exprNode() {}

// Raw is a SQL fragment emitted verbatim.
type Raw struct {
	SQL string
}

func (Raw) exprNode() {}

// Walk calls fn for e and every nested expression, depth first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case FunctionCall:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *FunctionCall:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}
