package exprkit

import (
	"math"
	"reflect"
	"testing"
)

func TestBoxRoundTrip(t *testing.T) {
	type pair struct{ a, b int }
	cases := []struct {
		name string
		v    any
	}{
		{"nil", nil},
		{"true", true},
		{"false", false},
		{"small", 42},
		{"negative", -7},
		{"zero", 0},
		{"float", 2.5},
		{"maxsafe", int64(maxSafeInt)},
		{"beyondsafe", int64(maxSafeInt) + 1},
		{"biguint", uint64(math.MaxUint64)},
		{"string", "hello"},
		{"slice", []any{1.0, "two"}},
		{"struct", pair{1, 2}},
	}
	var b valueBox
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := b.store(c.v)
			got := b.load(h)
			switch want := c.v.(type) {
			case nil:
				if got != nil {
					t.Errorf("load = %v, want nil", got)
				}
			case int:
				// Small integers travel as plain numbers.
				if f, ok := got.(float64); !ok || f != float64(want) {
					t.Errorf("load = %#v, want %v", got, want)
				}
			case int64:
				if want >= -maxSafeInt && want <= maxSafeInt {
					if f, ok := got.(float64); !ok || f != float64(want) {
						t.Errorf("load = %#v, want %v", got, want)
					}
					return
				}
				if !reflect.DeepEqual(got, c.v) {
					t.Errorf("load = %#v, want %#v", got, c.v)
				}
			default:
				if !reflect.DeepEqual(got, c.v) {
					t.Errorf("load = %#v, want %#v", got, c.v)
				}
			}
		})
	}
}

// TestBoxLiveNaN checks that caller-supplied NaN data is never misread as a
// handle.
func TestBoxLiveNaN(t *testing.T) {
	var b valueBox
	for _, bits := range []uint64{
		math.Float64bits(math.NaN()),
		boxBase,
		nilBits,
		trueBits,
		falseBits,
		boxBase + boxOffset,
		boxBase + boxOffset + 99,
	} {
		f := math.Float64frombits(bits)
		h := b.store(f)
		got := b.load(h)
		gf, ok := got.(float64)
		if !ok {
			t.Fatalf("NaN bits %#x loaded as %T", bits, got)
		}
		if math.Float64bits(gf) != bits {
			t.Errorf("NaN bits %#x round-tripped as %#x", bits, math.Float64bits(gf))
		}
	}
}

func TestBoxReset(t *testing.T) {
	var b valueBox
	keep := b.store("constant")
	b.freeze()
	b.store("transient")
	b.store([]int{1, 2})
	b.reset()
	if len(b.values) != 1 {
		t.Fatalf("reset left %d entries, want 1", len(b.values))
	}
	if got := b.load(keep); got != "constant" {
		t.Errorf("construction entry lost after reset: %v", got)
	}
}

func TestBoxHandleSpace(t *testing.T) {
	// Every handle must be a quiet NaN, so arithmetic on a leaked handle
	// cannot silently produce a plausible number.
	var b valueBox
	for _, v := range []any{nil, true, false, "s", []int{1}} {
		h := b.store(v)
		if !math.IsNaN(h) {
			t.Errorf("handle for %#v is not NaN: %v", v, h)
		}
	}
}
