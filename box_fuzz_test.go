package exprkit

import (
	"math"
	"testing"
)

func FuzzBoxNumbers(f *testing.F) {
	f.Add(uint64(0))
	f.Add(math.Float64bits(1.5))
	f.Add(math.Float64bits(math.NaN()))
	f.Add(boxBase)
	f.Add(nilBits)
	f.Add(trueBits)
	f.Add(falseBits)
	f.Add(boxBase + boxOffset)
	f.Add(^uint64(0))
	f.Fuzz(func(t *testing.T, bits uint64) {
		var b valueBox
		v := math.Float64frombits(bits)
		got := b.load(b.store(v))
		gf, ok := got.(float64)
		if !ok {
			t.Fatalf("float64 with bits %#x loaded as %T", bits, got)
		}
		if math.Float64bits(gf) != bits {
			t.Errorf("bits %#x round-tripped as %#x", bits, math.Float64bits(gf))
		}
	})
}
