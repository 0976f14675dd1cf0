package exprkit

import "math"

// Func is a handler for one symbol. It receives the symbol's evaluated
// children in order and returns the operand's value. Returning ErrUnhandled
// passes resolution to the next handler source in the chain.
type Func func(args []float64) (float64, error)

// Evaluator is a general handler consulted for any symbol that the constant
// table and the exact symbol table did not resolve. Returning ErrUnhandled
// falls through to the built-in standard library.
type Evaluator func(sym Symbol, args []float64) (float64, error)

func niladic(v float64) Func {
	return func([]float64) (float64, error) { return v, nil }
}

func monadic(f func(float64) float64) Func {
	return func(args []float64) (float64, error) { return f(args[0]), nil }
}

func dyadic(f func(float64, float64) float64) Func {
	return func(args []float64) (float64, error) { return f(args[0], args[1]), nil }
}

// mathSymbols is the built-in standard library: arithmetic, rounding, and
// trig. Every handler here is pure.
var mathSymbols = map[Symbol]Func{
	Infix("+"): dyadic(func(a, b float64) float64 { return a + b }),
	Infix("-"): dyadic(func(a, b float64) float64 { return a - b }),
	Infix("*"): dyadic(func(a, b float64) float64 { return a * b }),
	Infix("/"): dyadic(func(a, b float64) float64 { return a / b }),
	Infix("%"): dyadic(math.Mod),

	Prefix("-"): monadic(func(a float64) float64 { return -a }),
	Prefix("+"): monadic(func(a float64) float64 { return a }),

	Function("sqrt", 1):  monadic(math.Sqrt),
	Function("floor", 1): monadic(math.Floor),
	Function("ceil", 1):  monadic(math.Ceil),
	Function("round", 1): monadic(math.Round),
	Function("abs", 1):   monadic(math.Abs),
	Function("cos", 1):   monadic(math.Cos),
	Function("sin", 1):   monadic(math.Sin),
	Function("tan", 1):   monadic(math.Tan),
	Function("acos", 1):  monadic(math.Acos),
	Function("asin", 1):  monadic(math.Asin),
	Function("atan", 1):  monadic(math.Atan),
	Function("log", 1):   monadic(math.Log10),
	Function("ln", 1):    monadic(math.Log),
	Function("exp", 1):   monadic(math.Exp),

	Function("pow", 2):   dyadic(math.Pow),
	Function("atan2", 2): dyadic(math.Atan2),
	Function("mod", 2):   dyadic(math.Mod),
	Function("min", 2):   dyadic(math.Min),
	Function("max", 2):   dyadic(math.Max),

	Variable("pi"): niladic(math.Pi),
}

func bool2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func truthy(v float64) bool { return v != 0 }

// boolSymbols is the optional boolean standard library, enabled with
// BoolSymbols. Evaluation is strict, so && and || do not short-circuit.
var boolSymbols = map[Symbol]Func{
	Variable("true"):  niladic(1),
	Variable("false"): niladic(0),

	Infix("=="): dyadic(func(a, b float64) float64 { return bool2f(a == b) }),
	Infix("!="): dyadic(func(a, b float64) float64 { return bool2f(a != b) }),
	Infix(">"):  dyadic(func(a, b float64) float64 { return bool2f(a > b) }),
	Infix(">="): dyadic(func(a, b float64) float64 { return bool2f(a >= b) }),
	Infix("<"):  dyadic(func(a, b float64) float64 { return bool2f(a < b) }),
	Infix("<="): dyadic(func(a, b float64) float64 { return bool2f(a <= b) }),
	Infix("&&"): dyadic(func(a, b float64) float64 { return bool2f(truthy(a) && truthy(b)) }),
	Infix("||"): dyadic(func(a, b float64) float64 { return bool2f(truthy(a) || truthy(b)) }),

	Prefix("!"): monadic(func(a float64) float64 { return bool2f(!truthy(a)) }),

	// ?: takes three arguments for the ternary form and two for the
	// null-coalescing form a ?: b.
	Infix("?:"): func(args []float64) (float64, error) {
		switch len(args) {
		case 2:
			if truthy(args[0]) {
				return args[0], nil
			}
			return args[1], nil
		case 3:
			if truthy(args[0]) {
				return args[1], nil
			}
			return args[2], nil
		}
		return 0, ErrUnhandled
	},
}
