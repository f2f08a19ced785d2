package vm

import (
	"fmt"

	"github.com/govm-project/govm/pkg/classfile"
)

// Kind tags a runtime Value (§3's "tagged union"). Int/Long are both the
// Integral variant in spec terms, Float/Double both Floating; Ref is the
// Object variant.
type Kind uint8

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	default:
		return "?"
	}
}

// Value is one JVM-level value: an int/long stored widened to int64, a
// float/double stored as float64, or an object reference (nil means null).
// Category-1 values (int, float, reference) occupy one operand/local slot;
// category-2 (long, double) occupy two (§3).
type Value struct {
	Kind Kind
	I    int64
	F    float64
	Ref  *Object
}

func IntVal(v int32) Value    { return Value{Kind: KindInt, I: int64(v)} }
func LongVal(v int64) Value   { return Value{Kind: KindLong, I: v} }
func FloatVal(v float32) Value { return Value{Kind: KindFloat, F: float64(v)} }
func DoubleVal(v float64) Value { return Value{Kind: KindDouble, F: v} }
func RefVal(o *Object) Value  { return Value{Kind: KindRef, Ref: o} }
func NullVal() Value          { return Value{Kind: KindRef, Ref: nil} }

// Int32 truncates a KindInt value to its int32 width.
func (v Value) Int32() int32 { return int32(v.I) }

// Int64 returns the full-width integral value, valid for both KindInt
// and KindLong since both are stored widened to int64 (§3) — Unsafe's
// long-typed offsets and addresses read through this rather than Int32
// so a JVM `long` argument isn't silently truncated.
func (v Value) Int64() int64 { return v.I }

// Float32 narrows a KindFloat value to float32.
func (v Value) Float32() float32 { return float32(v.F) }

// IsCategory2 reports whether this value occupies two stack/local slots.
func (v Value) IsCategory2() bool { return v.Kind == KindLong || v.Kind == KindDouble }

// Slots returns 1 or 2 per §3's category rule.
func (v Value) Slots() int {
	if v.IsCategory2() {
		return 2
	}
	return 1
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("int(%d)", v.Int32())
	case KindLong:
		return fmt.Sprintf("long(%d)", v.I)
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.Float32())
	case KindDouble:
		return fmt.Sprintf("double(%g)", v.F)
	case KindRef:
		if v.Ref == nil {
			return "null"
		}
		return fmt.Sprintf("ref(%s)", v.Ref.DebugClassName())
	default:
		return "?"
	}
}

// category2Tail occupies the slot after a category-2 value in a locals
// array (§3: "storing a long at index N also reserves N+1"). Reading it
// directly is always an interpreter bug.
var category2Tail = Value{Kind: 0xFF}

func isCategory2Tail(v Value) bool { return v.Kind == 0xFF }

// zeroValueFor returns the default-initialized Value for a field
// descriptor (§4.4: "the descriptor's zero value").
func zeroValueFor(t *classfile.FieldType) Value {
	switch t.Base {
	case classfile.TLong:
		return LongVal(0)
	case classfile.TFloat:
		return FloatVal(0)
	case classfile.TDouble:
		return DoubleVal(0)
	case classfile.TRef, classfile.TArray:
		return NullVal()
	default:
		return IntVal(0)
	}
}
