package vm

import (
	"testing"

	"github.com/govm-project/govm/pkg/classfile"
)

func newTestFrame(maxStack, maxLocals int) *Frame {
	m := &Method{
		Name:       "test",
		Descriptor: "()V",
		Info: &classfile.MethodInfo{
			Code: &classfile.CodeAttribute{
				MaxStack:  uint16(maxStack),
				MaxLocals: uint16(maxLocals),
				Code:      []byte{},
			},
		},
	}
	return NewFrame(m)
}

func TestFramePushPopCategory1(t *testing.T) {
	f := newTestFrame(4, 0)
	f.Push(IntVal(7))
	if f.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", f.Depth())
	}
	got := f.Pop()
	if got.Int32() != 7 {
		t.Errorf("Pop() = %v, want int(7)", got)
	}
	if f.Depth() != 0 {
		t.Errorf("Depth() after Pop = %d, want 0", f.Depth())
	}
}

func TestFramePushPopCategory2ConsumesTwoSlots(t *testing.T) {
	f := newTestFrame(4, 0)
	f.Push(LongVal(42))
	if f.Depth() != 2 {
		t.Fatalf("Depth() after pushing a long = %d, want 2", f.Depth())
	}
	got := f.Pop()
	if got.Kind != KindLong || got.I != 42 {
		t.Errorf("Pop() = %v, want long(42)", got)
	}
	if f.Depth() != 0 {
		t.Errorf("Depth() after Pop = %d, want 0", f.Depth())
	}
}

func TestSetLocalCategory2ReservesTailSlot(t *testing.T) {
	f := newTestFrame(0, 4)
	f.SetLocal(0, LongVal(99))
	if got := f.GetLocal(0); got.Kind != KindLong || got.I != 99 {
		t.Errorf("GetLocal(0) = %v, want long(99)", got)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("GetLocal(1) on a category-2 tail slot did not panic")
		}
	}()
	f.GetLocal(1)
}

func TestSetLocalOverwritingTailSlotIsReadable(t *testing.T) {
	f := newTestFrame(0, 4)
	f.SetLocal(0, LongVal(99))
	f.SetLocal(1, IntVal(5))
	if got := f.GetLocal(1); got.Int32() != 5 {
		t.Errorf("GetLocal(1) = %v, want int(5)", got)
	}
}
