package exprkit

import (
	"errors"
	"sync"
)

// Expr is a parsed, bound expression over float64 values. An Expr is
// immutable once built, except for the one-time deferred optimization
// transition, and is safe to evaluate concurrently.
//
// Construction never fails: a parse error is reported by the first call to
// Evaluate, so expressions can be constructed declaratively and validated
// later.
type Expr struct {
	src  string
	root *node
	err  error

	cfg config

	// arities lists the declared arities per function name across all
	// handler sources, for wrong-argument-count diagnostics.
	arities map[string][]int

	// opt is the optimization state machine.
	opt optState
	// deferOnce runs the deferred folding pass at most once.
	deferOnce sync.Once
	// deferred marks expressions whose handler purity was not knowable at
	// construction and which re-attempt folding on first evaluation.
	deferred bool
}

type config struct {
	constants map[string]float64
	symbols   map[Symbol]Func
	evaluator Evaluator
	boolSyms  bool
	noOpt     bool
	pureSyms  bool
	noCache   bool
	stop      string
}

// New parses and binds an expression. Parse and binding problems are
// deferred: New never fails, and the error surfaces on the first Evaluate.
func New(source string, opts ...Option) *Expr {
	e := &Expr{src: source}
	for _, o := range opts {
		o.apply(&e.cfg)
	}
	root, err := parseCached(source, e.cfg.stop, e.cfg.noCache)
	if err != nil {
		e.err = err
		return e
	}
	// The cached tree is shared; binding and folding happen on a private
	// clone.
	e.root = root.clone()
	e.collectArities()
	e.bind(e.root)
	if e.cfg.noOpt {
		return e
	}
	e.root = e.foldConstants(e.root)
	e.deferred = e.cfg.pureSyms && e.cfg.evaluator != nil && e.root.kind != nodeLiteral
	if e.root.kind == nodeLiteral {
		e.opt.advance(optFull)
	} else {
		e.opt.advance(optPartial)
	}
	return e
}

// Evaluate computes the expression's value. Children evaluate strictly left
// to right before their parent's handler runs, and the first failure
// short-circuits upward unmodified.
func (e *Expr) Evaluate() (float64, error) {
	if e.err != nil {
		return 0, e.err
	}
	return e.tree().eval()
}

// tree returns the expression's root, completing the deferred folding pass
// first so no reader observes the swap mid-flight.
func (e *Expr) tree() *node {
	if e.deferred {
		e.deferOnce.Do(e.deferredFold)
	}
	return e.root
}

// Symbols returns the distinct symbols still unresolved in the expression,
// in deterministic order. Constant folding removes symbols, so the set
// shrinks as the expression optimizes.
func (e *Expr) Symbols() []Symbol {
	if e.err != nil {
		return nil
	}
	return e.tree().unresolvedSymbols()
}

// String returns the canonical rendering of the expression in its current,
// possibly folded, state. If the source never parsed, it returns the raw
// source text.
func (e *Expr) String() string {
	if e.err != nil {
		return e.src
	}
	return e.tree().String()
}

func (n *node) eval() (float64, error) {
	if n.kind == nodeLiteral {
		return n.num, nil
	}
	var args []float64
	if len(n.args) > 0 {
		args = make([]float64, len(n.args))
		for i, a := range n.args {
			v, err := a.eval()
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
	}
	return n.fn(args)
}

// purity classifies a bound handler for the optimizer.
type purity int8

const (
	// impureFn handlers are never folded.
	impureFn purity = iota
	// pureFn handlers fold at construction.
	pureFn
	// deferredFn handlers have unknown purity at construction and fold
	// optimistically on first evaluation when PureSymbols is set.
	deferredFn
)

// bind resolves every operand's symbol to a handler chain. Resolution order:
// constant table, exact symbol table, general evaluator, built-ins, then the
// arity diagnostic and undefined-symbol fallbacks.
func (e *Expr) bind(n *node) {
	if n.kind != nodeOperand {
		return
	}
	for _, a := range n.args {
		e.bind(a)
	}
	if n.sym.Kind == SymVariable {
		if v, ok := e.cfg.constants[n.sym.Name]; ok {
			// Constants substitute directly; the symbol is resolved away.
			// The name stays as the literal's text so an unfolded tree still
			// renders its source form.
			*n = node{kind: nodeLiteral, num: v, text: n.sym.Name}
			return
		}
	}
	n.fn = e.chain(n.sym)
}

// builtin looks up sym in the standard library tables.
func (e *Expr) builtin(sym Symbol) (Func, bool) {
	if e.cfg.boolSyms {
		if fn, ok := boolSymbols[sym]; ok {
			return fn, true
		}
	}
	fn, ok := mathSymbols[sym]
	return fn, ok
}

// classify returns the purity of the handler chain for sym.
func (e *Expr) classify(sym Symbol) purity {
	if _, ok := e.cfg.symbols[sym]; ok {
		// Handlers in the exact symbol table are pure by contract.
		return pureFn
	}
	if e.cfg.evaluator != nil {
		if e.cfg.pureSyms {
			return deferredFn
		}
		return impureFn
	}
	if _, ok := e.builtin(sym); ok {
		return pureFn
	}
	return impureFn
}

// chain builds the composed handler for sym, consulting each source in
// priority order until one returns something other than ErrUnhandled.
func (e *Expr) chain(sym Symbol) Func {
	var handlers []Func
	if fn, ok := e.cfg.symbols[sym]; ok {
		handlers = append(handlers, fn)
	}
	if ev := e.cfg.evaluator; ev != nil {
		handlers = append(handlers, func(args []float64) (float64, error) {
			return ev(sym, args)
		})
	}
	if fn, ok := e.builtin(sym); ok {
		handlers = append(handlers, fn)
	}
	fallback := e.unresolved(sym)
	return func(args []float64) (float64, error) {
		for _, h := range handlers {
			v, err := h(args)
			if !errors.Is(err, ErrUnhandled) {
				return v, err
			}
		}
		return 0, fallback
	}
}

// unresolved returns the error for a symbol no source handled. A function
// whose name is declared under other arities reports those arities instead
// of an undefined symbol.
func (e *Expr) unresolved(sym Symbol) error {
	if sym.Kind == SymFunction {
		if want := e.arities[sym.Name]; len(want) > 0 {
			return &ArityMismatchError{Sym: sym, Want: want}
		}
	}
	return &UndefinedSymbolError{Sym: sym}
}

// collectArities scans every handler source for function symbols, recording
// the declared arities per name.
func (e *Expr) collectArities() {
	add := func(m map[Symbol]Func) {
		for sym := range m {
			if sym.Kind != SymFunction {
				continue
			}
			if e.arities == nil {
				e.arities = make(map[string][]int)
			}
			e.arities[sym.Name] = insertArity(e.arities[sym.Name], sym.Arity)
		}
	}
	add(e.cfg.symbols)
	add(mathSymbols)
	if e.cfg.boolSyms {
		add(boolSymbols)
	}
}

func insertArity(v []int, n int) []int {
	for i, m := range v {
		if m == n {
			return v
		}
		if m > n {
			v = append(v, 0)
			copy(v[i+1:], v[i:])
			v[i] = n
			return v
		}
	}
	return append(v, n)
}
