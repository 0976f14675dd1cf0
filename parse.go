package exprkit

import "strings"

// Expr  = num | string | ident | Prefix | Postfix | Infix | Call | Sub | '(' Expr ')'
// Call  = ident '(' [ Expr { ',' Expr } ] ')'
// Sub   = ident '[' Expr ']'
// Prefix  = op Expr
// Postfix = Expr op | Expr ident
// Infix   = Expr op Expr | Expr '?' Expr ':' Expr

// frag is a fragment on the parser's stack: either a resolved operand or a
// raw token awaiting collapse. Raw operator fragments never survive into a
// finished tree.
type frag struct {
	n   *node
	tok token
}

func (f frag) isOperand() bool { return f.n != nil }
func (f frag) isIdent() bool   { return f.n == nil && f.tok.kind == tokenIdent }
func (f frag) isOp() bool      { return f.n == nil && f.tok.kind == tokenOp }

// leadText is the token text to blame in an error message.
func (f frag) leadText() string {
	if f.n != nil {
		if f.n.kind == nodeLiteral && f.n.text != "" {
			return f.n.text
		}
		if f.n.kind == nodeOperand && f.n.sym.Kind == SymVariable {
			return f.n.sym.Name
		}
		return "("
	}
	return f.tok.text
}

// parseSource parses an expression, ending early at any rune in stop.
func parseSource(src, stop string) (*node, error) {
	toks, err := scanTokens(src, stop)
	if err != nil {
		return nil, err
	}
	return parseTokens(toks)
}

type scope struct {
	stack []frag
	open  token
}

func parseTokens(toks []token) (*node, error) {
	var stack []frag
	var scopes []scope
	for _, tok := range toks {
		switch tok.kind {
		case tokenNum:
			stack = append(stack, frag{n: literalNode(tok.num, tok.text)})
		case tokenString:
			// Quoted literals become variable symbols with the quotes kept in
			// the name; the value layer supplies their constants.
			stack = append(stack, frag{n: operandNode(Variable(tok.text))})
		case tokenIdent, tokenOp, tokenBad:
			stack = append(stack, frag{tok: tok})
		case tokenOpen, tokenOpenSub:
			scopes = append(scopes, scope{stack: stack, open: tok})
			stack = nil
		case tokenClose, tokenCloseSub:
			var err error
			stack, scopes, err = closeScope(stack, scopes, tok)
			if err != nil {
				return nil, err
			}
		default:
			return nil, &UnexpectedTokenError{Token: tok.text}
		}
	}
	if len(scopes) > 0 {
		return nil, &MissingDelimiterError{Delim: matchingClose(scopes[len(scopes)-1].open)}
	}
	n, err := collapse(stack)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, &UnexpectedTokenError{Token: ""}
	}
	return n, nil
}

func matchingClose(open token) string {
	if open.kind == tokenOpenSub {
		return "]"
	}
	return ")"
}

// closeScope collapses the current group and restores the enclosing scope.
// A group preceded by a bare identifier becomes a function call or an array
// subscript; any other group is a parenthesized subexpression.
func closeScope(stack []frag, scopes []scope, tok token) ([]frag, []scope, error) {
	if len(scopes) == 0 {
		return nil, nil, &UnexpectedTokenError{Token: tok.text}
	}
	sc := scopes[len(scopes)-1]
	scopes = scopes[:len(scopes)-1]
	if matchingClose(sc.open) != tok.text {
		return nil, nil, &UnexpectedTokenError{Token: tok.text}
	}
	inner, err := collapse(stack)
	if err != nil {
		return nil, nil, err
	}
	stack = sc.stack
	caller := len(stack) > 0 && stack[len(stack)-1].isIdent()
	switch sc.open.kind {
	case tokenOpenSub:
		if !caller {
			return nil, nil, &UnexpectedTokenError{Token: "["}
		}
		if inner == nil {
			return nil, nil, &UnexpectedTokenError{Token: "]"}
		}
		name := stack[len(stack)-1].tok.text
		stack[len(stack)-1] = frag{n: operandNode(Array(name), inner)}
	default:
		if caller {
			name := stack[len(stack)-1].tok.text
			args := flattenArgs(inner)
			stack[len(stack)-1] = frag{n: operandNode(Function(name, len(args)), args...)}
			break
		}
		if inner == nil {
			return nil, nil, &UnexpectedTokenError{Token: ")"}
		}
		stack = append(stack, frag{n: inner})
	}
	return stack, scopes, nil
}

// flattenArgs unwraps a top-level comma chain into a flat, ordered argument
// list. Commas fold left to right, so the chain is a left spine.
func flattenArgs(n *node) []*node {
	if n == nil {
		return nil
	}
	if n.kind == nodeOperand && n.sym.Kind == SymInfix && n.sym.Name == "," && len(n.args) == 2 {
		return append(flattenArgs(n.args[0]), n.args[1])
	}
	return []*node{n}
}

// collapse reduces a fragment stack to a single operand. An empty stack
// collapses to nil with no error; callers reject that where an expression is
// required.
func collapse(stack []frag) (*node, error) {
	for {
		if len(stack) == 0 {
			return nil, nil
		}
		if len(stack) == 1 && stack[0].isOperand() {
			return stack[0].n, nil
		}
		var err error
		stack, err = collapseStep(stack, 0)
		if err != nil {
			return nil, err
		}
	}
}

// collapseStep performs one fold at or to the right of i and returns the
// modified stack. Each successful fold restarts collapse from the top, so the
// parse is deterministic for a given input.
func collapseStep(stack []frag, i int) ([]frag, error) {
	f := stack[i]
	switch {
	case f.isOp():
		return collapsePrefix(stack, i)
	case f.isIdent():
		stack[i] = frag{n: operandNode(Variable(f.tok.text))}
		return stack, nil
	case f.isOperand():
		return collapseOperand(stack, i)
	default:
		return nil, &UnexpectedTokenError{Token: f.tok.text}
	}
}

// collapsePrefix handles a bare operator in leftmost position, which must be
// reinterpretable as a prefix operator.
func collapsePrefix(stack []frag, i int) ([]frag, error) {
	op := stack[i].tok.text
	if !canBePrefix(op) || i+1 == len(stack) {
		return nil, &UnexpectedTokenError{Token: op}
	}
	g := stack[i+1]
	switch {
	case g.isIdent():
		stack[i+1] = frag{n: operandNode(Variable(g.tok.text))}
		return stack, nil
	case g.isOperand():
		return splice(stack, i, 2, operandNode(Prefix(op), g.n)), nil
	case g.isOp():
		return collapseStep(stack, i+1)
	default:
		return nil, &UnexpectedTokenError{Token: g.tok.text}
	}
}

func collapseOperand(stack []frag, i int) ([]frag, error) {
	lhs := stack[i]
	if i+1 == len(stack) {
		// A lone operand reached by recursion; nothing folds here.
		return nil, &UnexpectedTokenError{Token: lhs.leadText()}
	}
	g := stack[i+1]
	switch {
	case g.isIdent():
		// Operand followed by a bare identifier: the identifier is a
		// postfix operator, e.g. a unit suffix like "5km".
		return splice(stack, i, 2, operandNode(Postfix(g.tok.text), lhs.n)), nil
	case g.isOperand():
		return nil, &UnexpectedTokenError{Token: g.leadText()}
	case !g.isOp():
		return nil, &UnexpectedTokenError{Token: g.tok.text}
	}
	op1 := g.tok
	if i+2 == len(stack) {
		// operand, operator, end of stack: postfix.
		return splice(stack, i, 2, operandNode(Postfix(op1.text), lhs.n)), nil
	}
	h := stack[i+2]
	switch {
	case h.isOp():
		// Two adjacent operators. The whitespace hint decides: an operator
		// attached to its operand and detached from what follows reads as
		// postfix ("5! + 3"); otherwise the right operator opens a prefix
		// chain ("5 + -3").
		if !op1.spaceBefore && op1.spaceAfter {
			return splice(stack, i, 2, operandNode(Postfix(op1.text), lhs.n)), nil
		}
		return collapseStep(stack, i+2)
	case h.isIdent():
		stack[i+2] = frag{n: operandNode(Variable(h.tok.text))}
		return stack, nil
	case !h.isOperand():
		return nil, &UnexpectedTokenError{Token: h.tok.text}
	}
	if i+3 == len(stack) {
		return splice(stack, i, 3, foldInfix(op1.text, lhs.n, h.n)), nil
	}
	j := stack[i+3]
	if j.isOp() {
		if postfixAt(stack, i+3) {
			// The right operator reads as postfix on h, which binds tighter
			// than any infix fold.
			return collapseStep(stack, i+2)
		}
		if moreBinding(op1.text, j.tok.text) {
			return splice(stack, i, 3, foldInfix(op1.text, lhs.n, h.n)), nil
		}
		// The right operator binds tighter, or ties with a right-associative
		// operator: collapse rightward first.
		return collapseStep(stack, i+2)
	}
	// A postfix identifier or an illegal operand pair; resolve to the right.
	return collapseStep(stack, i+2)
}

// foldInfix builds an infix operand, re-folding "a ? b : c" into the single
// three-argument ?: symbol.
func foldInfix(op string, lhs, rhs *node) *node {
	if op == ":" && lhs.kind == nodeOperand && lhs.sym == Infix("?") && len(lhs.args) == 2 {
		return operandNode(Infix("?:"), lhs.args[0], lhs.args[1], rhs)
	}
	return operandNode(Infix(op), lhs, rhs)
}

// splice replaces count fragments at i with a single operand.
func splice(stack []frag, i, count int, n *node) []frag {
	stack[i] = frag{n: n}
	return append(stack[:i+1], stack[i+count:]...)
}

// postfixAt reports whether the operator at k can only read as postfix: it
// ends the stack, or it sits attached to its left operand and detached from a
// following operator.
func postfixAt(stack []frag, k int) bool {
	if k+1 == len(stack) {
		return true
	}
	op := stack[k].tok
	return stack[k+1].isOp() && !op.spaceBefore && op.spaceAfter
}

// canBePrefix reports whether op is in the allow-listed set of operators that
// may be reinterpreted as prefix.
func canBePrefix(op string) bool {
	if op == "" {
		return false
	}
	for _, r := range op {
		if !strings.ContainsRune("-+!~", r) {
			return false
		}
	}
	return true
}

// opPrec returns the precedence band of an infix operator. Multiplicative
// operators bind tighter than the default band; the comma binds loosest.
func opPrec(op string) int {
	switch {
	case op == ",":
		return -100
	case op[0] == '*' || op[0] == '/' || op[0] == '%':
		return 1
	default:
		return 0
	}
}

// isRightAssoc reports whether an operator folds from the right first. This
// covers assignment and the comparison-chaining operators, plus the ternary
// pair.
func isRightAssoc(op string) bool {
	return strings.ContainsAny(op, ":=")
}

// moreBinding reports whether the left of two adjacent infix operators folds
// before the right one. Ties fold left to right unless the operator is
// right-associative.
func moreBinding(left, right string) bool {
	lp, rp := opPrec(left), opPrec(right)
	if lp != rp {
		return lp > rp
	}
	return !isRightAssoc(left)
}
