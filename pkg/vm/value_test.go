package vm

import "testing"

func TestValueSlots(t *testing.T) {
	cases := []struct {
		v     Value
		slots int
	}{
		{IntVal(1), 1},
		{FloatVal(1), 1},
		{RefVal(nil), 1},
		{LongVal(1), 2},
		{DoubleVal(1), 2},
	}
	for _, c := range cases {
		if got := c.v.Slots(); got != c.slots {
			t.Errorf("%s.Slots() = %d, want %d", c.v, got, c.slots)
		}
		if got := c.v.IsCategory2(); got != (c.slots == 2) {
			t.Errorf("%s.IsCategory2() = %v, want %v", c.v, got, c.slots == 2)
		}
	}
}

func TestIntValTruncates(t *testing.T) {
	v := IntVal(-1)
	if v.Int32() != -1 {
		t.Errorf("Int32() = %d, want -1", v.Int32())
	}
}

func TestNullValIsRefKind(t *testing.T) {
	v := NullVal()
	if v.Kind != KindRef || v.Ref != nil {
		t.Errorf("NullVal() = %+v, want a nil-ref KindRef value", v)
	}
}

func TestCategory2TailNotReadableAsOrdinaryValue(t *testing.T) {
	if !isCategory2Tail(category2Tail) {
		t.Error("isCategory2Tail(category2Tail) = false, want true")
	}
	if isCategory2Tail(IntVal(0)) {
		t.Error("isCategory2Tail(IntVal(0)) = true, want false")
	}
}

func TestValueStringRef(t *testing.T) {
	if got := NullVal().String(); got != "null" {
		t.Errorf("NullVal().String() = %q, want %q", got, "null")
	}
}
