package exprkit_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/exprkit/exprkit"
)

func TestAnyEvaluate(t *testing.T) {
	consts := exprkit.AnyConstants(map[string]any{
		"name":  "World",
		"x":     3,
		"big":   int64(1) << 60,
		"flag":  true,
		"items": []any{1, 2},
		"same":  []any{1, 2},
		"other": []float64{1, 2},
		"ages":  map[string]int{"k": 1},
		"mass":  map[string]float64{"k": 1},
		"prior": map[string]int{"k": 2},
		"names": map[int]string{1: "k"},
	})
	cases := []struct {
		name string
		src  string
		want any
	}{
		{"num", "1 + 2", 3.0},
		{"string", "'hello'", "hello"},
		{"concat", "'Hello, ' + name", "Hello, World"},
		{"stringify", "'n = ' + 5", "n = 5"},
		{"stringifyleft", "5 + 'x'", "5x"},
		{"stringifybool", "'is ' + flag", "is true"},
		{"bigint", "big", int64(1) << 60},
		{"nil", "null", nil},
		{"nilalias", "null == nil", true},
		{"eqnum", "x == 3", true},
		{"eqmixed", "1 == 'x'", false},
		{"eqslices", "items == same", true},
		{"eqshapes", "items == other", true},
		{"eqmaps", "ages == mass", true},
		{"neqmaps", "ages == prior", false},
		{"mapkeykinds", "ages == names", false},
		{"mapkeykindsneq", "ages != names", true},
		{"neq", "x != 3", false},
		{"cmpstr", "'abc' < 'abd'", true},
		{"cmpnum", "x >= 3", true},
		{"logic", "true && !false", true},
		{"truthynum", "x && 1", true},
		{"ternary", "x > 1 ? 'big' : 'small'", "big"},
		{"ternaryelse", "x > 9 ? 'big' : 'small'", "small"},
		{"coalesce", "null ?? 'fallback'", "fallback"},
		{"coalesceleft", "'a' ?? 'b'", "a"},
		{"mathpass", "sqrt(x * x)", 3.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := exprkit.NewAny(c.src, consts, exprkit.AnyNoCache())
			v, err := e.Evaluate()
			if err != nil {
				t.Fatalf("failed to evaluate %q: %v", c.src, err)
			}
			if v != c.want {
				t.Errorf("%q = %#v, want %#v", c.src, v, c.want)
			}
		})
	}
}

func TestAnyTypedResults(t *testing.T) {
	e := exprkit.NewAny("'a' + 'b'", exprkit.AnyNoCache())
	s, err := e.EvaluateString()
	if err != nil || s != "ab" {
		t.Errorf("EvaluateString = %q, %v", s, err)
	}
	if _, err := e.EvaluateFloat64(); err == nil {
		t.Error("EvaluateFloat64 of a string did not fail")
	} else {
		var rtm *exprkit.ResultTypeMismatchError
		if !errors.As(err, &rtm) {
			t.Errorf("wrong error type: %v", err)
		}
	}
	e = exprkit.NewAny("2 + 3", exprkit.AnyNoCache())
	f, err := e.EvaluateFloat64()
	if err != nil || f != 5 {
		t.Errorf("EvaluateFloat64 = %v, %v", f, err)
	}
	if _, err := e.EvaluateBool(); err == nil {
		t.Error("EvaluateBool of a number did not fail")
	}
	e = exprkit.NewAny("1 < 2", exprkit.AnyNoCache())
	b, err := e.EvaluateBool()
	if err != nil || !b {
		t.Errorf("EvaluateBool = %v, %v", b, err)
	}
}

func TestAnySubscript(t *testing.T) {
	consts := exprkit.AnyConstants(map[string]any{
		"list": []string{"a", "b", "c"},
		"m":    map[string]int{"k": 7},
		"s":    "héllo",
	})
	eval := func(src string) (any, error) {
		return exprkit.NewAny(src, consts, exprkit.AnyNoCache()).Evaluate()
	}
	if v, err := eval("list[1]"); err != nil || v != "b" {
		t.Errorf("list[1] = %#v, %v", v, err)
	}
	if v, err := eval("m['k']"); err != nil || v != 7.0 {
		t.Errorf("m['k'] = %#v, %v", v, err)
	}
	if v, err := eval("m['missing']"); err != nil || v != nil {
		t.Errorf("m['missing'] = %#v, %v", v, err)
	}
	if v, err := eval("s[1]"); err != nil || v != "é" {
		t.Errorf("s[1] = %#v, %v", v, err)
	}
	_, err := eval("list[5]")
	var abe *exprkit.ArrayBoundsError
	if !errors.As(err, &abe) {
		t.Errorf("list[5]: want bounds error, got %v", err)
	}
	_, err = eval("list['x']")
	var ise *exprkit.IllegalSubscriptError
	if !errors.As(err, &ise) {
		t.Errorf("list['x']: want illegal subscript, got %v", err)
	}
	_, err = eval("list[1.5]")
	if !errors.As(err, &ise) {
		t.Errorf("list[1.5]: want illegal subscript, got %v", err)
	}
}

func TestAnyTypeMismatch(t *testing.T) {
	cases := []string{
		"'str' && 1",
		"1 < 'str'",
		"'a' - 'b'",
		"!'str'",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := exprkit.NewAny(src, exprkit.AnyNoCache()).Evaluate()
			var tme *exprkit.TypeMismatchError
			if !errors.As(err, &tme) {
				t.Errorf("want type mismatch, got %v", err)
			}
		})
	}
}

func TestAnyUncomparable(t *testing.T) {
	consts := exprkit.AnyConstants(map[string]any{
		"f": func() {},
		"g": func() {},
	})
	_, err := exprkit.NewAny("f == g", consts, exprkit.AnyNoCache()).Evaluate()
	var tme *exprkit.TypeMismatchError
	if !errors.As(err, &tme) {
		t.Errorf("comparing functions: want type mismatch, got %v", err)
	}
}

// TestAnyMapKeyKinds checks that maps with different key types compare
// unequal instead of crashing, even when constant folding runs the
// comparison during construction.
func TestAnyMapKeyKinds(t *testing.T) {
	consts := exprkit.AnyConstants(map[string]any{
		"a": map[string]int{"k": 1},
		"b": map[int]string{1: "k"},
	})
	e := exprkit.NewAny("a == b", consts)
	v, err := e.Evaluate()
	if err != nil || v != false {
		t.Errorf("a == b = %#v, %v, want false", v, err)
	}
}

func TestAnySymbolsHandler(t *testing.T) {
	syms := exprkit.AnySymbols(map[exprkit.Symbol]exprkit.AnyFunc{
		exprkit.Function("upper", 1): func(args []any) (any, error) {
			s, ok := args[0].(string)
			if !ok {
				return nil, &exprkit.MessageError{Text: "upper wants a string"}
			}
			return strings.ToUpper(s), nil
		},
	})
	e := exprkit.NewAny("upper('abc') + '!'", syms, exprkit.AnyNoCache())
	v, err := e.EvaluateString()
	if err != nil || v != "ABC!" {
		t.Errorf("upper = %q, %v", v, err)
	}
}

// TestAnySymbolsFallthrough checks that a handler declining its symbol falls
// back to the built-in for that symbol.
func TestAnySymbolsFallthrough(t *testing.T) {
	syms := exprkit.AnySymbols(map[exprkit.Symbol]exprkit.AnyFunc{
		exprkit.Infix("+"): func(args []any) (any, error) {
			a, aok := args[0].(string)
			b, bok := args[1].(string)
			if aok && bok {
				return a + " " + b, nil
			}
			return nil, exprkit.ErrUnhandled
		},
	})
	e := exprkit.NewAny("'a' + 'b'", syms, exprkit.AnyNoCache())
	if v, err := e.EvaluateString(); err != nil || v != "a b" {
		t.Errorf("custom concat = %q, %v", v, err)
	}
	e = exprkit.NewAny("1 + 2", syms, exprkit.AnyNoCache())
	if v, err := e.EvaluateFloat64(); err != nil || v != 3 {
		t.Errorf("builtin add through fallthrough = %v, %v", v, err)
	}
}

func TestAnyEvaluator(t *testing.T) {
	vars := map[string]any{"who": "World"}
	ev := func(sym exprkit.Symbol, args []any) (any, error) {
		if sym.Kind == exprkit.SymVariable {
			if v, ok := vars[sym.Name]; ok {
				return v, nil
			}
		}
		return nil, exprkit.ErrUnhandled
	}
	e := exprkit.NewAny("'Hello, ' + who + '!'", exprkit.WithAnyEvaluator(ev), exprkit.AnyNoCache())
	for i := 0; i < 50; i++ {
		v, err := e.EvaluateString()
		if err != nil {
			t.Fatal(err)
		}
		want := "Hello, World!"
		if i >= 25 {
			want = "Hello, Go!"
		}
		if v != want {
			t.Fatalf("iteration %d = %q, want %q", i, v, want)
		}
		if i == 24 {
			vars["who"] = "Go"
		}
	}
}

func TestAnySymbolsListing(t *testing.T) {
	e := exprkit.NewAny("'lit' + x + y[0]", exprkit.AnyNoCache())
	syms := e.Symbols()
	for _, s := range syms {
		if s.Kind == exprkit.SymVariable && s.Name == "'lit'" {
			t.Errorf("string literal leaked into symbols: %v", syms)
		}
	}
	var haveX, haveY bool
	for _, s := range syms {
		if s == exprkit.Variable("x") {
			haveX = true
		}
		if s == exprkit.Array("y") {
			haveY = true
		}
	}
	if !haveX || !haveY {
		t.Errorf("missing unresolved symbols in %v", syms)
	}
}

func TestAnyString(t *testing.T) {
	e := exprkit.NewAny("'a' + x", exprkit.AnyNoCache())
	if got := e.String(); got != "'a' + x" {
		t.Errorf("unfolded rendering = %q", got)
	}
	e = exprkit.NewAny("'a' + 'b'", exprkit.AnyNoCache())
	if got := e.String(); got != "'ab'" {
		t.Errorf("folded rendering = %q, want \"'ab'\"", got)
	}
	e = exprkit.NewAny("1 == 2", exprkit.AnyNoCache())
	if got := e.String(); got != "false" {
		t.Errorf("folded boolean rendering = %q, want \"false\"", got)
	}
	e = exprkit.NewAny("(1 + ", exprkit.AnyNoCache())
	if got := e.String(); got != "(1 + " {
		t.Errorf("unparsable rendering = %q, want raw source", got)
	}
}

func TestAnyUndefined(t *testing.T) {
	_, err := exprkit.NewAny("mystery + 1", exprkit.AnyNoCache()).Evaluate()
	var use *exprkit.UndefinedSymbolError
	if !errors.As(err, &use) {
		t.Fatalf("want undefined symbol, got %v", err)
	}
	if use.Sym != exprkit.Variable("mystery") {
		t.Errorf("wrong symbol: %v", use.Sym)
	}
}
