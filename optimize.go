package exprkit

import "sync/atomic"

// Optimization proceeds through one-directional states. An expression built
// with NoOptimize stays unoptimized; otherwise construction-time folding
// moves it to partially or fully optimized, and the deferred pass on first
// evaluation finishes the job for late-classified handlers.
const (
	optNone int32 = iota
	optPartial
	optFull
)

type optState struct {
	v atomic.Int32
}

// advance moves the state forward. Moving to an earlier or equal state is a
// no-op, so transitions are idempotent and never regress.
func (s *optState) advance(to int32) {
	for {
		cur := s.v.Load()
		if cur >= to {
			return
		}
		if s.v.CompareAndSwap(cur, to) {
			return
		}
	}
}

func (s *optState) state() int32 { return s.v.Load() }

// foldConstants replaces every operand whose children are all literals and
// whose handler chain is classified pure with the literal it computes. A
// handler error leaves the operand in place; the error resurfaces on
// evaluation.
func (e *Expr) foldConstants(n *node) *node {
	return e.fold(n, false)
}

func (e *Expr) fold(n *node, deferred bool) *node {
	if n.kind != nodeOperand {
		return n
	}
	literals := true
	for i, a := range n.args {
		n.args[i] = e.fold(a, deferred)
		if n.args[i].kind != nodeLiteral {
			literals = false
		}
	}
	if !literals {
		return n
	}
	switch e.classify(n.sym) {
	case pureFn:
	case deferredFn:
		if !deferred {
			return n
		}
	default:
		return n
	}
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		args[i] = a.num
	}
	v, err := n.fn(args)
	if err != nil {
		return n
	}
	return literalNode(v, "")
}

// deferredFold re-attempts folding on first evaluation for handlers whose
// purity was declared but not knowable at construction. The fold uses the
// values the handlers actually produce, which is an optimistic heuristic: a
// handler that lied about purity gets its first result baked in.
func (e *Expr) deferredFold() {
	e.root = e.fold(e.root, true)
	e.opt.advance(optFull)
}
