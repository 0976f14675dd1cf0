package exprkit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// AnyFunc is a handler at the value layer. It receives plain Go values and
// returns a plain Go value; boxing and unboxing happen automatically.
type AnyFunc func(args []any) (any, error)

// AnyEvaluator is the value-layer analogue of Evaluator.
type AnyEvaluator func(sym Symbol, args []any) (any, error)

// AnyExpr evaluates an expression whose values may be of any type: numbers,
// strings, booleans, collections, opaque objects, or nil. It wraps the
// numeric core, carrying non-numeric values behind tagged handles.
//
// Unlike Expr, an AnyExpr must not be evaluated concurrently from multiple
// goroutines: the handle table is shared mutable state scoped to each call.
// Evaluate serializes callers with a per-instance lock.
type AnyExpr struct {
	ex  *Expr
	box valueBox
	mu  sync.Mutex

	builtins map[Symbol]Func
}

type anyConfig struct {
	constants map[string]any
	symbols   map[Symbol]AnyFunc
	evaluator AnyEvaluator
	noOpt     bool
	noCache   bool
}

// AnyOption configures value-layer expression construction.
type AnyOption interface {
	applyAny(*anyConfig)
}

type (
	anyConstsopt map[string]any
	anySymsopt   map[Symbol]AnyFunc
	anyEvalopt   struct{ ev AnyEvaluator }
	anyFlagopt   int8
)

const (
	anyFlagNoOpt anyFlagopt = iota
	anyFlagNoCache
)

// AnyConstants supplies named constant values of any type.
func AnyConstants(consts map[string]any) AnyOption { return anyConstsopt(consts) }

func (o anyConstsopt) applyAny(c *anyConfig) {
	if c.constants == nil {
		c.constants = make(map[string]any, len(o))
	}
	for k, v := range o {
		c.constants[k] = v
	}
}

// AnySymbols supplies exact value-layer handlers per symbol. Handlers are
// treated as pure. A handler may return ErrUnhandled to fall through to the
// built-in behavior for its symbol.
func AnySymbols(syms map[Symbol]AnyFunc) AnyOption { return anySymsopt(syms) }

func (o anySymsopt) applyAny(c *anyConfig) {
	if c.symbols == nil {
		c.symbols = make(map[Symbol]AnyFunc, len(o))
	}
	for k, v := range o {
		c.symbols[k] = v
	}
}

// WithAnyEvaluator supplies a general value-layer handler, consulted after
// the exact tables and before the built-ins. Supplying an evaluator disables
// construction-time folding of operator subtrees, since the evaluator could
// claim any symbol.
func WithAnyEvaluator(ev AnyEvaluator) AnyOption { return &anyEvalopt{ev} }

func (o *anyEvalopt) applyAny(c *anyConfig) { c.evaluator = o.ev }

// AnyNoOptimize disables constant folding for the wrapped expression.
func AnyNoOptimize() AnyOption { return anyFlagNoOpt }

// AnyNoCache bypasses the process-wide parse cache.
func AnyNoCache() AnyOption { return anyFlagNoCache }

func (o anyFlagopt) applyAny(c *anyConfig) {
	switch o {
	case anyFlagNoOpt:
		c.noOpt = true
	case anyFlagNoCache:
		c.noCache = true
	}
}

// NewAny parses and binds a value-layer expression. Like New, it never
// fails; errors surface on the first Evaluate.
func NewAny(source string, opts ...AnyOption) *AnyExpr {
	a := &AnyExpr{}
	var cfg anyConfig
	for _, o := range opts {
		o.applyAny(&cfg)
	}
	a.builtins = a.anyBuiltins()

	// Constants fold at construction, so their table entries persist across
	// evaluations. The three universal values use reserved sentinels.
	consts := map[string]float64{
		"true":  trueHandle,
		"false": falseHandle,
		"null":  nilHandle,
		"nil":   nilHandle,
	}
	for name, v := range cfg.constants {
		consts[name] = a.box.store(v)
	}

	// Quoted literals in the source are static string constants.
	root, perr := parseCached(source, "", cfg.noCache)
	if perr == nil {
		root.walk(func(n *node) {
			if n.kind != nodeOperand || n.sym.Kind != SymVariable {
				return
			}
			if name := n.sym.Name; isQuoted(name) {
				if _, ok := consts[name]; !ok {
					consts[name] = a.box.store(unescapeQuoted(name))
				}
			}
		})
	}

	syms := make(map[Symbol]Func)
	if cfg.evaluator == nil {
		for sym, fn := range a.builtins {
			syms[sym] = fn
		}
	}
	// Subscripts of constant containers resolve to checked lookups.
	if perr == nil {
		root.walk(func(n *node) {
			if n.kind != nodeOperand || n.sym.Kind != SymArray {
				return
			}
			if c, ok := cfg.constants[n.sym.Name]; ok {
				syms[n.sym] = a.subscriptFunc(n.sym, c)
			}
		})
	}
	for sym, fn := range cfg.symbols {
		if builtin, ok := a.builtins[sym]; ok {
			syms[sym] = chainFuncs(a.wrap(sym, fn), builtin)
		} else {
			syms[sym] = a.wrap(sym, fn)
		}
	}

	eopts := []Option{Constants(consts), Symbols(syms)}
	if ev := cfg.evaluator; ev != nil {
		eopts = append(eopts, WithEvaluator(a.wrapEvaluator(ev)))
	}
	if cfg.noOpt {
		eopts = append(eopts, NoOptimize())
	}
	if cfg.noCache {
		eopts = append(eopts, NoCache())
	}
	a.ex = New(source, eopts...)
	a.box.freeze()
	return a
}

func isQuoted(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case '\'', '"', '`':
		return true
	}
	return false
}

// Evaluate computes the expression's value. Concurrent calls on one AnyExpr
// are mutually excluded; the handle table is cleared back to its
// construction entries after each call.
func (a *AnyExpr) Evaluate() (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.box.reset()
	f, err := a.ex.Evaluate()
	if err != nil {
		return nil, err
	}
	return a.box.load(f), nil
}

// EvaluateFloat64 evaluates and converts the result to a float64.
func (a *AnyExpr) EvaluateFloat64() (float64, error) {
	v, err := a.Evaluate()
	if err != nil {
		return 0, err
	}
	if x, ok := asNumber(v); ok {
		return x, nil
	}
	return 0, &ResultTypeMismatchError{Want: "float64", Value: v}
}

// EvaluateString evaluates and requires a string result.
func (a *AnyExpr) EvaluateString() (string, error) {
	v, err := a.Evaluate()
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", &ResultTypeMismatchError{Want: "string", Value: v}
}

// EvaluateBool evaluates and requires a boolean result.
func (a *AnyExpr) EvaluateBool() (bool, error) {
	v, err := a.Evaluate()
	if err != nil {
		return false, err
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, &ResultTypeMismatchError{Want: "bool", Value: v}
}

// Symbols returns the distinct symbols still unresolved in the wrapped
// expression.
func (a *AnyExpr) Symbols() []Symbol { return a.ex.Symbols() }

// String returns the canonical rendering, or the raw source if the text
// never parsed. Folded boxed values render as literals: quoted strings,
// true, false, and null.
func (a *AnyExpr) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ex.err != nil {
		return a.ex.String()
	}
	n := a.ex.tree().clone()
	n.walk(func(m *node) {
		if m.kind != nodeLiteral || m.text != "" {
			return
		}
		m.text = renderValue(a.box.load(m.num))
	})
	return n.String()
}

func renderValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return quoteString(v)
	case float64:
		return formatNum(v)
	}
	return fmt.Sprint(v)
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// wrap converts a value-layer handler to a numeric-core handler, unboxing
// inputs and reboxing the output.
func (a *AnyExpr) wrap(sym Symbol, fn AnyFunc) Func {
	return func(fargs []float64) (float64, error) {
		args := make([]any, len(fargs))
		for i, f := range fargs {
			args[i] = a.box.load(f)
		}
		v, err := fn(args)
		if err != nil {
			return 0, err
		}
		return a.box.store(v), nil
	}
}

func (a *AnyExpr) wrapEvaluator(ev AnyEvaluator) Evaluator {
	return func(sym Symbol, fargs []float64) (float64, error) {
		args := make([]any, len(fargs))
		for i, f := range fargs {
			args[i] = a.box.load(f)
		}
		v, err := ev(sym, args)
		if err == nil {
			return a.box.store(v), nil
		}
		if !errors.Is(err, ErrUnhandled) {
			return 0, err
		}
		if fn, ok := a.builtins[sym]; ok {
			return fn(fargs)
		}
		return 0, ErrUnhandled
	}
}

func chainFuncs(fns ...Func) Func {
	return func(args []float64) (float64, error) {
		v, err := 0.0, error(ErrUnhandled)
		for _, fn := range fns {
			v, err = fn(args)
			if !errors.Is(err, ErrUnhandled) {
				return v, err
			}
		}
		return v, err
	}
}

// anyBuiltins reimplements the standard library over boxed values. Numeric
// operators bridge to the float64 core; the operators with heterogeneous
// semantics are special-cased.
func (a *AnyExpr) anyBuiltins() map[Symbol]Func {
	m := make(map[Symbol]Func, len(mathSymbols)+16)
	for sym, fn := range mathSymbols {
		m[sym] = a.numericBridge(sym, fn)
	}
	m[Infix("+")] = a.opAdd(Infix("+"))
	m[Infix("==")] = a.opEqual(Infix("=="), false)
	m[Infix("!=")] = a.opEqual(Infix("!="), true)
	m[Infix("<")] = a.opCompare(Infix("<"))
	m[Infix("<=")] = a.opCompare(Infix("<="))
	m[Infix(">")] = a.opCompare(Infix(">"))
	m[Infix(">=")] = a.opCompare(Infix(">="))
	m[Infix("&&")] = a.opLogic(Infix("&&"))
	m[Infix("||")] = a.opLogic(Infix("||"))
	m[Prefix("!")] = a.opNot(Prefix("!"))
	m[Infix("?:")] = a.opTernary(Infix("?:"))
	m[Infix("??")] = a.opCoalesce()
	return m
}

func (a *AnyExpr) typeMismatch(sym Symbol, fargs []float64) error {
	args := make([]any, len(fargs))
	for i, f := range fargs {
		args[i] = a.box.load(f)
	}
	return &TypeMismatchError{Sym: sym, Args: args}
}

// numericBridge adapts a float64 builtin to boxed arguments: every argument
// must decode to a number.
func (a *AnyExpr) numericBridge(sym Symbol, fn Func) Func {
	return func(fargs []float64) (float64, error) {
		vals := make([]float64, len(fargs))
		for i, f := range fargs {
			x, ok := asNumber(a.box.load(f))
			if !ok {
				return 0, a.typeMismatch(sym, fargs)
			}
			vals[i] = x
		}
		v, err := fn(vals)
		if err != nil {
			return 0, err
		}
		return a.box.store(v), nil
	}
}

// opAdd adds numbers, and concatenates when either operand is a string,
// auto-stringifying a number or boolean on the other side.
func (a *AnyExpr) opAdd(sym Symbol) Func {
	return func(fargs []float64) (float64, error) {
		va, vb := a.box.load(fargs[0]), a.box.load(fargs[1])
		if x, ok := asNumber(va); ok {
			if y, ok := asNumber(vb); ok {
				return a.box.store(x + y), nil
			}
		}
		if s, ok := va.(string); ok {
			if t, ok := stringifyOperand(vb); ok {
				return a.box.store(s + t), nil
			}
		}
		if t, ok := vb.(string); ok {
			if s, ok := stringifyOperand(va); ok {
				return a.box.store(s + t), nil
			}
		}
		return 0, a.typeMismatch(sym, fargs)
	}
}

func (a *AnyExpr) opEqual(sym Symbol, negate bool) Func {
	return func(fargs []float64) (float64, error) {
		eq, err := equalValues(a.box.load(fargs[0]), a.box.load(fargs[1]))
		if err != nil {
			return 0, &TypeMismatchError{Sym: sym, Args: []any{a.box.load(fargs[0]), a.box.load(fargs[1])}}
		}
		return a.box.store(eq != negate), nil
	}
}

func (a *AnyExpr) opCompare(sym Symbol) Func {
	op := sym.Name
	return func(fargs []float64) (float64, error) {
		va, vb := a.box.load(fargs[0]), a.box.load(fargs[1])
		var c int
		if x, ok := asNumber(va); ok {
			y, ok := asNumber(vb)
			if !ok {
				return 0, a.typeMismatch(sym, fargs)
			}
			switch {
			case x < y:
				c = -1
			case x > y:
				c = 1
			}
		} else if s, ok := va.(string); ok {
			t, ok := vb.(string)
			if !ok {
				return 0, a.typeMismatch(sym, fargs)
			}
			switch {
			case s < t:
				c = -1
			case s > t:
				c = 1
			}
		} else {
			return 0, a.typeMismatch(sym, fargs)
		}
		var r bool
		switch op {
		case "<":
			r = c < 0
		case "<=":
			r = c <= 0
		case ">":
			r = c > 0
		case ">=":
			r = c >= 0
		}
		return a.box.store(r), nil
	}
}

func (a *AnyExpr) opLogic(sym Symbol) Func {
	and := sym.Name == "&&"
	return func(fargs []float64) (float64, error) {
		x, ok := truthyValue(a.box.load(fargs[0]))
		if !ok {
			return 0, a.typeMismatch(sym, fargs)
		}
		y, ok := truthyValue(a.box.load(fargs[1]))
		if !ok {
			return 0, a.typeMismatch(sym, fargs)
		}
		if and {
			return a.box.store(x && y), nil
		}
		return a.box.store(x || y), nil
	}
}

func (a *AnyExpr) opNot(sym Symbol) Func {
	return func(fargs []float64) (float64, error) {
		x, ok := truthyValue(a.box.load(fargs[0]))
		if !ok {
			return 0, a.typeMismatch(sym, fargs)
		}
		return a.box.store(!x), nil
	}
}

// opTernary handles both the three-argument conditional and the
// two-argument elvis form.
func (a *AnyExpr) opTernary(sym Symbol) Func {
	return func(fargs []float64) (float64, error) {
		cond, ok := truthyValue(a.box.load(fargs[0]))
		if !ok {
			return 0, a.typeMismatch(sym, fargs)
		}
		switch len(fargs) {
		case 2:
			if cond {
				return fargs[0], nil
			}
			return fargs[1], nil
		case 3:
			if cond {
				return fargs[1], nil
			}
			return fargs[2], nil
		}
		return 0, ErrUnhandled
	}
}

// opCoalesce returns the left operand unless it is nil.
func (a *AnyExpr) opCoalesce() Func {
	return func(fargs []float64) (float64, error) {
		if a.box.load(fargs[0]) == nil {
			return fargs[1], nil
		}
		return fargs[0], nil
	}
}

// subscriptFunc builds the bounds- and type-checked lookup for a subscript
// of a constant container.
func (a *AnyExpr) subscriptFunc(sym Symbol, container any) Func {
	return func(fargs []float64) (float64, error) {
		v, err := subscriptValue(sym, container, a.box.load(fargs[0]))
		if err != nil {
			return 0, err
		}
		return a.box.store(v), nil
	}
}

// subscriptValue indexes a slice, array, string, or map.
func subscriptValue(sym Symbol, c, idx any) (any, error) {
	rv := reflect.ValueOf(c)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := asIndex(idx)
		if !ok {
			return nil, &IllegalSubscriptError{Sym: sym, Subscript: idx}
		}
		if i < 0 || i >= rv.Len() {
			return nil, &ArrayBoundsError{Sym: sym, Index: i, Len: rv.Len()}
		}
		return rv.Index(i).Interface(), nil
	case reflect.String:
		i, ok := asIndex(idx)
		if !ok {
			return nil, &IllegalSubscriptError{Sym: sym, Subscript: idx}
		}
		runes := []rune(rv.String())
		if i < 0 || i >= len(runes) {
			return nil, &ArrayBoundsError{Sym: sym, Index: i, Len: len(runes)}
		}
		return string(runes[i]), nil
	case reflect.Map:
		kt := rv.Type().Key()
		kv, ok := mapKey(idx, kt)
		if !ok {
			return nil, &IllegalSubscriptError{Sym: sym, Subscript: idx}
		}
		v := rv.MapIndex(kv)
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	default:
		return nil, &IllegalSubscriptError{Sym: sym, Subscript: idx}
	}
}

// mapKey converts a subscript to the map's key type. Numeric conversions
// are allowed between numeric kinds; anything else must match exactly.
func mapKey(idx any, kt reflect.Type) (reflect.Value, bool) {
	if idx == nil {
		return reflect.Value{}, false
	}
	kv := reflect.ValueOf(idx)
	if kv.Type() == kt {
		return kv, true
	}
	if isNumericKind(kv.Kind()) && isNumericKind(kt.Kind()) {
		return kv.Convert(kt), true
	}
	return reflect.Value{}, false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// asNumber extracts a float64 from any numeric value. Booleans are not
// numbers.
func asNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

// asIndex extracts an integral subscript.
func asIndex(v any) (int, bool) {
	x, ok := asNumber(v)
	if !ok || x != float64(int(x)) {
		return 0, false
	}
	return int(x), true
}

func stringifyOperand(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	}
	if x, ok := asNumber(v); ok {
		return formatNum(x), true
	}
	return "", false
}

func truthyValue(v any) (bool, bool) {
	switch v := v.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	}
	if x, ok := asNumber(v); ok {
		return x != 0, true
	}
	return false, false
}

// equalValues compares two values structurally. Values of incomparable
// dynamic shape compare unequal; two values of the same uncomparable type
// report an error for the caller to surface as a type mismatch.
func equalValues(a, b any) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	if x, ok := asNumber(a); ok {
		y, ok := asNumber(b)
		return ok && x == y, nil
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y, nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y, nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if isSequence(ra.Kind()) && isSequence(rb.Kind()) {
		if ra.Len() != rb.Len() {
			return false, nil
		}
		for i := 0; i < ra.Len(); i++ {
			eq, err := equalValues(ra.Index(i).Interface(), rb.Index(i).Interface())
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	if ra.Kind() == reflect.Map && rb.Kind() == reflect.Map {
		// MapIndex panics on a key of the wrong type, so maps with different
		// key types compare unequal up front.
		if ra.Type().Key() != rb.Type().Key() {
			return false, nil
		}
		if ra.Len() != rb.Len() {
			return false, nil
		}
		iter := ra.MapRange()
		for iter.Next() {
			bv := rb.MapIndex(iter.Key())
			if !bv.IsValid() {
				return false, nil
			}
			eq, err := equalValues(iter.Value().Interface(), bv.Interface())
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	if ra.Type() != rb.Type() {
		return false, nil
	}
	if !ra.Type().Comparable() {
		return false, errors.New("uncomparable values")
	}
	return a == b, nil
}

func isSequence(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array
}
