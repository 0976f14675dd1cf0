package exprkit

// Option configures expression construction. Options apply in order, so a
// later option overrides an earlier one for the same concern.
type Option interface {
	apply(*config)
}

type (
	constsopt map[string]float64
	symsopt   map[Symbol]Func
	evalopt   struct{ ev Evaluator }
	stopopt   struct{ ws string }
	flagopt   int8
)

const (
	flagBoolSyms flagopt = iota
	flagNoOpt
	flagPureSyms
	flagNoCache
)

// Constants supplies named constant values. A constant substitutes directly
// into the tree at construction, so its symbol never appears unresolved.
func Constants(consts map[string]float64) Option {
	return constsopt(consts)
}

func (o constsopt) apply(c *config) {
	if c.constants == nil {
		c.constants = make(map[string]float64, len(o))
	}
	for k, v := range o {
		c.constants[k] = v
	}
}

// Symbols supplies exact handlers per symbol. These handlers are treated as
// pure: same arguments, same result, no observable side effects. A handler
// may return ErrUnhandled to suppress a built-in and fall through the chain.
func Symbols(syms map[Symbol]Func) Option {
	return symsopt(syms)
}

func (o symsopt) apply(c *config) {
	if c.symbols == nil {
		c.symbols = make(map[Symbol]Func, len(o))
	}
	for k, v := range o {
		c.symbols[k] = v
	}
}

// WithEvaluator supplies a general handler consulted for any symbol the
// constant and symbol tables miss, ahead of the built-ins.
func WithEvaluator(ev Evaluator) Option {
	return &evalopt{ev}
}

func (o *evalopt) apply(c *config) { c.evaluator = o.ev }

// BoolSymbols enables the boolean standard library: comparisons, logical
// operators, the ternary ?: pair, and the true and false constants.
func BoolSymbols() Option { return flagBoolSyms }

// NoOptimize disables constant folding entirely. The expression evaluates
// its full tree on every call.
func NoOptimize() Option { return flagNoOpt }

// PureSymbols declares every evaluator-resolved symbol pure, enabling the
// deferred folding pass on first evaluation. This is optimistic: a handler
// that is not actually pure gets its first result folded in.
func PureSymbols() Option { return flagPureSyms }

// NoCache bypasses the process-wide parse cache for this expression, for
// one-shot text that should not occupy cache space.
func NoCache() Option { return flagNoCache }

func (o flagopt) apply(c *config) {
	switch o {
	case flagBoolSyms:
		c.boolSyms = true
	case flagNoOpt:
		c.noOpt = true
	case flagPureSyms:
		c.pureSyms = true
	case flagNoCache:
		c.noCache = true
	}
}

// StopOn treats the given runes as ending the expression. Each rune must be
// whitespace or punctuation that cannot begin a token. The terminator set is
// part of the parse cache key.
func StopOn(chars ...rune) Option {
	v := make([]rune, 0, len(chars))
	have := func(r rune) bool {
		for _, c := range v {
			if r == c {
				return true
			}
		}
		return false
	}
	for _, r := range chars {
		if have(r) {
			continue
		}
		v = append(v, r)
	}
	sortRunes(v)
	return &stopopt{ws: string(v)}
}

func (o *stopopt) apply(c *config) { c.stop = o.ws }

func sortRunes(v []rune) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}
