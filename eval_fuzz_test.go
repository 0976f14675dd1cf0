package exprkit_test

import (
	"reflect"
	"testing"

	"github.com/exprkit/exprkit"
)

func FuzzEvaluateAny(f *testing.F) {
	f.Add("1 + 2 * 3")
	f.Add("'a' + 'b' == 'ab'")
	f.Add("null ?? 'x'")
	f.Add("true ? 1 : 'two'")
	f.Add("sqrt(2)km")
	f.Add("'\\''")
	f.Fuzz(func(t *testing.T, s string) {
		e := exprkit.NewAny(s, exprkit.AnyNoCache())
		v1, err1 := e.Evaluate()
		v2, err2 := e.Evaluate()
		// With only built-in handlers every evaluation is pure, so repeated
		// evaluation must agree and must not corrupt the value table.
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("evaluations of %q disagree on failure: %v vs %v", s, err1, err2)
		}
		if err1 == nil && !reflect.DeepEqual(v1, v2) {
			t.Errorf("evaluations of %q disagree: %#v vs %#v", s, v1, v2)
		}
	})
}
