package vm

import "fmt"

// Frame is one activation record (§4.11): a fixed-size local variable
// array and operand stack, sized from the method's Code attribute.
// Category-2 values (long, double) occupy two consecutive slots; storing
// one writes category2Tail into the following slot so a stray read of
// that slot is caught rather than silently returning stale data.
type Frame struct {
	Method *Method
	Class  *Class

	Locals []Value
	Stack  []Value
	sp     int

	PC int
}

// NewFrame allocates a frame sized per the method's Code attribute
// (§4.11). Arguments are not placed here; the interpreter's invoke path
// does that once the frame exists, placing each category-2 argument
// across two local slots.
func NewFrame(m *Method) *Frame {
	maxLocals := int(m.Info.Code.MaxLocals)
	maxStack := int(m.Info.Code.MaxStack)
	return &Frame{
		Method: m,
		Class:  m.Owner,
		Locals: make([]Value, maxLocals),
		Stack:  make([]Value, maxStack),
		PC:     0,
	}
}

// Push pushes a value, additionally reserving the following slot for a
// category-2 value (§3). A debug build would assert stack headroom; the
// classfile's MaxStack is taken on faith here per the JVM's own contract.
func (f *Frame) Push(v Value) {
	f.Stack[f.sp] = v
	f.sp++
	if v.IsCategory2() {
		f.Stack[f.sp] = category2Tail
		f.sp++
	}
}

// Pop pops one value, consuming its category-2 tail slot if present.
func (f *Frame) Pop() Value {
	f.sp--
	v := f.Stack[f.sp]
	if isCategory2Tail(v) {
		f.sp--
		v = f.Stack[f.sp]
	}
	return v
}

// peekRaw reads the raw slot depthFromTop below the top of the operand
// stack without popping it and without the category-2 tail check, used by
// dup/swap family instructions that operate on raw slots rather than
// logical values.
func (f *Frame) peekRaw(depthFromTop int) Value {
	return f.Stack[f.sp-1-depthFromTop]
}

func (f *Frame) Depth() int { return f.sp }

// GetLocal reads a local slot. Reading the tail slot reserved by a
// category-2 SetLocal is a bytecode/verifier-level bug in the caller,
// not a Java-level condition, so it panics rather than returning a
// sentinel the interpreter's arithmetic could silently misuse.
func (f *Frame) GetLocal(i int) Value {
	v := f.Locals[i]
	if isCategory2Tail(v) {
		panic(fmt.Sprintf("read of category-2 tail slot at local %d", i))
	}
	return v
}

// SetLocal writes a local slot and, for a category-2 value, marks the
// following slot unreadable (§3).
func (f *Frame) SetLocal(i int, v Value) {
	f.Locals[i] = v
	if v.IsCategory2() && i+1 < len(f.Locals) {
		f.Locals[i+1] = category2Tail
	}
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s.%s:%s pc=%d", f.Class.Name, f.Method.Name, f.Method.Descriptor, f.PC)
}
