package exprkit

import "math"

// The value box carries arbitrary values through the float64 pipeline by
// reusing quiet-NaN bit patterns as tagged handles. Ordinary numbers pass
// through unboxed; nil, true, and false use reserved sentinel encodings;
// everything else lands in an append-only table, indexed by the handle's
// payload.

const (
	// boxBase is a negative quiet NaN with an empty payload. Every handle
	// sits above it, so any float64 whose bits are below boxBase is a plain
	// number. A caller-supplied float64 at or above boxBase (a NaN sharing
	// the handle space) is stored in the table instead of passed raw, so
	// loading never misreads live data as a tag.
	boxBase uint64 = 0xFFF8_0000_0000_0000

	nilBits   = boxBase + 1
	trueBits  = boxBase + 2
	falseBits = boxBase + 3

	// boxOffset is the payload value of table index 0.
	boxOffset uint64 = 4

	// maxSafeInt is the largest integer magnitude a float64 represents
	// exactly. Integers beyond it are boxed rather than rounded.
	maxSafeInt = 1<<53 - 1
)

var (
	nilHandle   = math.Float64frombits(nilBits)
	trueHandle  = math.Float64frombits(trueBits)
	falseHandle = math.Float64frombits(falseBits)
)

// valueBox is the per-expression handle table. Entries appended during an
// evaluation are discarded afterward; entries created at construction from
// statically-known constants persist for the expression's lifetime.
type valueBox struct {
	values []any
	// literals is the number of persistent construction-time entries.
	literals int
}

// store returns a handle carrying v through the numeric pipeline.
func (b *valueBox) store(v any) float64 {
	switch v := v.(type) {
	case nil:
		return nilHandle
	case bool:
		if v {
			return trueHandle
		}
		return falseHandle
	case float64:
		if math.Float64bits(v) < boxBase {
			return v
		}
	case float32:
		f := float64(v)
		if math.Float64bits(f) < boxBase {
			return f
		}
	case int:
		if v >= -maxSafeInt && v <= maxSafeInt {
			return float64(v)
		}
	case int64:
		if v >= -maxSafeInt && v <= maxSafeInt {
			return float64(v)
		}
	case int32:
		return float64(v)
	case int16:
		return float64(v)
	case int8:
		return float64(v)
	case uint:
		if uint64(v) <= maxSafeInt {
			return float64(v)
		}
	case uint64:
		if v <= maxSafeInt {
			return float64(v)
		}
	case uint32:
		return float64(v)
	case uint16:
		return float64(v)
	case uint8:
		return float64(v)
	}
	b.values = append(b.values, v)
	return math.Float64frombits(boxBase + boxOffset + uint64(len(b.values)-1))
}

// load decodes a handle back to its value. A handle decodes to exactly one
// of a sentinel, a table entry, or a raw number.
func (b *valueBox) load(f float64) any {
	bits := math.Float64bits(f)
	if bits < boxBase {
		return f
	}
	switch bits {
	case nilBits:
		return nil
	case trueBits:
		return true
	case falseBits:
		return false
	}
	if i := int(bits - boxBase - boxOffset); i >= 0 && i < len(b.values) {
		return b.values[i]
	}
	// Not a handle this box issued; treat it as the number it is.
	return f
}

// freeze marks the current table contents as the persistent construction
// entries.
func (b *valueBox) freeze() {
	b.literals = len(b.values)
}

// reset truncates the table back to its construction entries after an
// evaluation.
func (b *valueBox) reset() {
	for i := b.literals; i < len(b.values); i++ {
		b.values[i] = nil
	}
	b.values = b.values[:b.literals]
}
