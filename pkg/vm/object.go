package vm

import (
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/govm-project/govm/pkg/classfile"
)

// Class is the runtime mirror of a loaded classfile (§4.4, §4.7): the
// resolved layout, static storage, and method table, plus enough of the
// classfile itself (constant pool, super/interface names) to drive
// resolution. One Class exists per loaded binary name for the life of
// the process; the loader never reloads or redefines it (Non-goal).
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	File       *classfile.ClassFile

	Layout  *InstanceLayout
	Statics []StaticField
	statMu  sync.RWMutex

	Methods []*Method

	// Mirror is the java/lang/Class instance representing this Class at
	// the bytecode level (§4.7's bootstrap two-pass patch: nil until the
	// heap allocates it, since java/lang/Class's own Class must exist
	// first).
	Mirror *Object

	initialized  bool
	initializing bool
}

// IsInterface reports whether this class was loaded from an interface
// classfile.
func (c *Class) IsInterface() bool {
	return c.File != nil && c.File.IsInterface()
}

// IsArrayClass reports whether this Class is a synthetic array type
// created by ClassLoader.ArrayClassFor (§4.5).
func (c *Class) IsArrayClass() bool {
	return len(c.Name) > 0 && c.Name[0] == '['
}

// StaticIndex finds a static field's slot by name, searching superclasses
// per normal JVM field shadowing rules (fields are not polymorphic).
func (c *Class) StaticIndex(name string) (int, *Class, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		for i := range cur.Statics {
			if cur.Statics[i].Name == name {
				return i, cur, true
			}
		}
	}
	return 0, nil, false
}

// GetStatic reads a static field's current value (§4.4).
func (c *Class) GetStatic(idx int) Value {
	c.statMu.RLock()
	defer c.statMu.RUnlock()
	return c.Statics[idx].Value
}

// SetStatic writes a static field's value.
func (c *Class) SetStatic(idx int, v Value) {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	c.Statics[idx].Value = v
}

// IsAssignableFrom reports whether a value of class actual can be used
// where a value of class c (the receiver, the expected type) is
// required: actual itself, one of its subclasses relative to c (walked
// from actual upward), or (if c is an interface) actual transitively
// implementing it. Mirrors java.lang.Class.isAssignableFrom's direction:
// `c.IsAssignableFrom(actual)` (§4.8's override/dispatch groundwork).
func (c *Class) IsAssignableFrom(actual *Class) bool {
	if actual == nil {
		return true
	}
	for cur := actual; cur != nil; cur = cur.Super {
		if cur == c {
			return true
		}
		if c.IsInterface() && cur.implementsInterface(c) {
			return true
		}
	}
	return false
}

func (c *Class) implementsInterface(target *Class) bool {
	for _, i := range c.Interfaces {
		if i == target || i.implementsInterface(target) {
			return true
		}
	}
	return false
}

// Object is the common header every heap value shares (§3, §5): a class
// pointer, a cached superclass pointer, a reference count reserved for a
// future non-cooperative collector, and a lock field padded onto its own
// cache line so contention on one object's lock word cannot false-share
// with a neighboring object's header fields.
//
// Instance field storage does not literally address raw header-relative
// bytes the way native JVMs do: Go's collector cannot safely alias object
// pointers through a []byte, so fields are kept in a typed Value slice
// indexed by InstanceLayout's slot assignment. The byte offsets the
// layout engine computes are still real, stable, and non-overlapping
// (FieldAtOffset answers Unsafe's offset-based accessors); they simply
// index into this slice rather than into raw memory.
type Object struct {
	Class      *Class
	SuperClass *Class
	RefCount   uint64

	_    cpu.CacheLinePad
	Lock sync.Mutex

	fields []Value

	// Array-only fields. ElemType is nil for a plain instance.
	ElemType *classfile.FieldType
	elems    []Value

	// trace is the formatted call stack captured by fillInStackTrace
	// (§4.13), populated for Throwable instances only.
	trace []string
}

// StackTrace returns the formatted call stack captured at throw time, or
// nil if this object is not a Throwable that has had fillInStackTrace run.
func (o *Object) StackTrace() []string { return o.trace }

// DebugClassName returns the object's class name, or "null" for a nil
// receiver — used by diagnostics and Value.String.
func (o *Object) DebugClassName() string {
	if o == nil {
		return "null"
	}
	if o.IsArray() {
		return o.ElemType.String() + "[]"
	}
	if o.Class == nil {
		return "?"
	}
	return o.Class.Name
}

// IsArray reports whether this object is an array instance (§4.5).
func (o *Object) IsArray() bool { return o.ElemType != nil }

// Length returns an array's element count. Calling it on a non-array is
// an interpreter bug.
func (o *Object) Length() int { return len(o.elems) }

// GetElem reads array slot i (§4.5); bounds are the interpreter's
// responsibility (arraylength/bounds-check instructions), not this
// accessor's.
func (o *Object) GetElem(i int) Value { return o.elems[i] }

// SetElem writes array slot i.
func (o *Object) SetElem(i int, v Value) { o.elems[i] = v }

// ReadField is the sole field-read protocol (§4.5): ordinary getfield
// opcodes and Unsafe's offset-based accessors both resolve a FieldLayout
// (by name or by FieldAtOffset) and come through here.
func (o *Object) ReadField(f *FieldLayout) Value { return o.fields[f.Slot] }

// WriteField is the sole field-write protocol (§4.5), the write-side
// counterpart to ReadField.
func (o *Object) WriteField(f *FieldLayout, v Value) { o.fields[f.Slot] = v }

// GetField reads an instance field by its resolved slot.
func (o *Object) GetField(f *FieldLayout) Value { return o.ReadField(f) }

// SetField writes an instance field by its resolved slot.
func (o *Object) SetField(f *FieldLayout, v Value) { o.WriteField(f, v) }

// ReadFieldOffset resolves a header-relative byte offset against this
// object's class layout and reads it, the protocol jdk/internal/misc/
// Unsafe's offset-based getters use instead of addressing raw bytes
// (§4.5, §9's "Unsafe" note) — a miss (an offset outside any declared
// field, e.g. from a stale or forged offset value) reports ok=false
// rather than reading garbage.
func (o *Object) ReadFieldOffset(offset int) (Value, bool) {
	if o.Class == nil || o.Class.Layout == nil {
		return Value{}, false
	}
	f, ok := o.Class.Layout.FieldAtOffset(offset)
	if !ok {
		return Value{}, false
	}
	return o.ReadField(f), true
}

// WriteFieldOffset is ReadFieldOffset's write-side counterpart.
func (o *Object) WriteFieldOffset(offset int, v Value) bool {
	if o.Class == nil || o.Class.Layout == nil {
		return false
	}
	f, ok := o.Class.Layout.FieldAtOffset(offset)
	if !ok {
		return false
	}
	o.WriteField(f, v)
	return true
}
