package exprkit

import (
	"strconv"
	"strings"
)

// node is a subexpression in a parsed tree. Trees are immutable once a parse
// finishes; the handler binding in fn and the literal replacement done by
// folding only ever happen on an expression's private clone.
type node struct {
	kind nodeKind

	// num and text are the value and source text of a literal. Folded
	// literals have no source text.
	num  float64
	text string

	sym  Symbol
	args []*node

	// fn is the resolved handler for an operand in a bound tree.
	fn Func
}

type nodeKind int8

const (
	nodeNone nodeKind = iota
	// nodeLiteral is a numeric literal, parsed or folded.
	nodeLiteral
	// nodeOperand applies a symbol's handler to evaluated children.
	nodeOperand
)

func literalNode(v float64, text string) *node {
	return &node{kind: nodeLiteral, num: v, text: text}
}

func operandNode(sym Symbol, args ...*node) *node {
	return &node{kind: nodeOperand, sym: sym, args: args}
}

// clone deep-copies a tree without its handler bindings.
func (n *node) clone() *node {
	if n == nil {
		return nil
	}
	m := &node{kind: n.kind, num: n.num, text: n.text, sym: n.sym}
	if n.args != nil {
		m.args = make([]*node, len(n.args))
		for i, a := range n.args {
			m.args[i] = a.clone()
		}
	}
	return m
}

// walk calls f for n and every node below it.
func (n *node) walk(f func(*node)) {
	if n == nil {
		return
	}
	f(n)
	for _, a := range n.args {
		a.walk(f)
	}
}

// formatNum renders a literal value in the shortest form that parses back to
// the same float64.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

// fmt writes the canonical rendering of the tree, adding parentheses only
// where precedence or associativity would otherwise change the meaning.
func (n *node) fmt(b *strings.Builder) {
	switch n.kind {
	case nodeLiteral:
		if n.text != "" {
			b.WriteString(n.text)
			return
		}
		b.WriteString(formatNum(n.num))
	case nodeOperand:
		n.fmtOperand(b)
	default:
		b.WriteString("<invalid>")
	}
}

func (n *node) fmtOperand(b *strings.Builder) {
	switch n.sym.Kind {
	case SymVariable:
		b.WriteString(n.sym.Name)
	case SymPrefix:
		b.WriteString(n.sym.Name)
		arg := n.args[0]
		// Nested prefixes and negative literals parenthesize so that the
		// rendering does not lex back as one long operator, e.g. -(-x)
		// rather than --x.
		if arg.needsParens(2, false) || arg.kind == nodeOperand && arg.sym.Kind == SymPrefix {
			parens(b, arg)
			return
		}
		arg.fmt(b)
	case SymPostfix:
		arg := n.args[0]
		if arg.needsParens(2, false) || arg.kind == nodeOperand && arg.sym.Kind == SymPostfix {
			parens(b, arg)
		} else {
			arg.fmt(b)
		}
		b.WriteString(n.sym.Name)
	case SymInfix:
		n.fmtInfix(b)
	case SymFunction:
		b.WriteString(n.sym.Name)
		b.WriteByte('(')
		for i, a := range n.args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.fmt(b)
		}
		b.WriteByte(')')
	case SymArray:
		b.WriteString(n.sym.Name)
		b.WriteByte('[')
		n.args[0].fmt(b)
		b.WriteByte(']')
	}
}

func (n *node) fmtInfix(b *strings.Builder) {
	op := n.sym.Name
	if op == "?:" && len(n.args) == 3 {
		// Only the else branch reassociates without parentheses.
		n.fmtSide(b, n.args[0], false)
		b.WriteString(" ? ")
		n.fmtSide(b, n.args[1], false)
		b.WriteString(" : ")
		n.fmtSide(b, n.args[2], true)
		return
	}
	n.fmtSide(b, n.args[0], !isRightAssoc(op))
	if op == "," {
		b.WriteString(", ")
	} else {
		b.WriteByte(' ')
		b.WriteString(op)
		b.WriteByte(' ')
	}
	n.fmtSide(b, n.args[1], isRightAssoc(op))
}

// fmtSide renders one side of an infix operand. tight is whether the side
// binds to this operator, i.e. whether an equal-precedence child on this side
// reassociates without parentheses.
func (n *node) fmtSide(b *strings.Builder, arg *node, tight bool) {
	if arg.needsParens(opPrec(n.sym.Name), tight) {
		parens(b, arg)
		return
	}
	arg.fmt(b)
}

// needsParens reports whether the node must be parenthesized when it appears
// as the child of an operator with the given precedence.
func (n *node) needsParens(parent int, tight bool) bool {
	if n.kind != nodeOperand || n.sym.Kind != SymInfix {
		return false
	}
	p := opPrec(n.sym.Name)
	if p != parent {
		return p < parent
	}
	return !tight
}

func parens(b *strings.Builder, n *node) {
	b.WriteByte('(')
	n.fmt(b)
	b.WriteByte(')')
}

// unresolvedSymbols collects the distinct symbols remaining in a tree, in
// sorted order. Folding removes symbols, so the set shrinks as an expression
// optimizes.
func (n *node) unresolvedSymbols() []Symbol {
	seen := make(map[Symbol]bool)
	var syms []Symbol
	n.walk(func(m *node) {
		if m.kind != nodeOperand || seen[m.sym] {
			return
		}
		seen[m.sym] = true
		syms = append(syms, m.sym)
	})
	sortSymbols(syms)
	return syms
}

// sortSymbols sorts by rendered form, which is unique per symbol.
func sortSymbols(syms []Symbol) {
	for i := 1; i < len(syms); i++ {
		for j := i; j > 0 && syms[j].String() < syms[j-1].String(); j-- {
			syms[j], syms[j-1] = syms[j-1], syms[j]
		}
	}
}
