package vm

import "github.com/govm-project/govm/pkg/classfile"

// Heap is the single-threaded cooperative object space (§5, §9): objects
// live until process exit, there is no collector, and allocation simply
// fills in a header and zero-initialized storage per §4.4/§4.5's layout.
type Heap struct {
	// mirrorObserver, if set, is notified the first time a Class gets a
	// Mirror allocated for it (never on a cached-return call). pkg/govm
	// uses this to keep a mirror-object -> Class index for Class-level
	// natives (getName, isInstance, ...) without growing Object itself
	// just to carry a back-pointer only mirrors need.
	mirrorObserver func(c *Class, mirror *Object)

	// offHeap backs jdk/internal/misc/Unsafe's address-only overloads
	// (allocateMemory, getInt(long)/putInt(long,int)): a region is just a
	// Go byte slice keyed by a synthetic, monotonically increasing
	// address, never actually mapped or freed (§9: Unsafe.freeMemory is
	// not part of the scenarios this core exercises).
	offHeap  map[int64][]byte
	nextAddr int64
}

// NewHeap constructs an empty heap.
func NewHeap() *Heap {
	return &Heap{offHeap: map[int64][]byte{}, nextAddr: 1}
}

// AllocateMemory reserves an off-heap byte region and returns its
// synthetic address (§4's Unsafe supplement). A real allocator would
// mmap; since nothing in this core ever reads host-process memory
// through the address, a boxed byte slice keyed by a fake pointer
// value is observationally identical for every native that uses it.
func (h *Heap) AllocateMemory(size int64) int64 {
	addr := h.nextAddr
	h.nextAddr += size + 1
	h.offHeap[addr] = make([]byte, size)
	return addr
}

// regionFor finds the allocation covering [addr, addr+width) backing an
// Unsafe address-only accessor, or nil if the address doesn't fall
// inside any live allocation (a use-after-free or forged address).
func (h *Heap) regionFor(addr int64, width int) ([]byte, int64) {
	for base, buf := range h.offHeap {
		if addr >= base && int(addr-base)+width <= len(buf) {
			return buf, addr - base
		}
	}
	return nil, 0
}

// ReadMemoryInt reads a big-endian int32 from off-heap memory at addr.
func (h *Heap) ReadMemoryInt(addr int64) (int32, bool) {
	buf, off := h.regionFor(addr, 4)
	if buf == nil {
		return 0, false
	}
	return int32(uint32(buf[off])<<24 | uint32(buf[off+1])<<16 | uint32(buf[off+2])<<8 | uint32(buf[off+3])), true
}

// WriteMemoryInt writes a big-endian int32 to off-heap memory at addr.
func (h *Heap) WriteMemoryInt(addr int64, v int32) bool {
	buf, off := h.regionFor(addr, 4)
	if buf == nil {
		return false
	}
	u := uint32(v)
	buf[off], buf[off+1], buf[off+2], buf[off+3] = byte(u>>24), byte(u>>16), byte(u>>8), byte(u)
	return true
}

// SetMirrorObserver wires in the callback described on Heap.mirrorObserver.
func (h *Heap) SetMirrorObserver(f func(c *Class, mirror *Object)) { h.mirrorObserver = f }

// AllocInstance allocates a plain object of class c, zero-initializing
// every instance field per its descriptor's default value (§4.4).
func (h *Heap) AllocInstance(c *Class) *Object {
	obj := &Object{
		Class:      c,
		SuperClass: c.Super,
	}
	if c.Layout != nil {
		obj.fields = make([]Value, len(c.Layout.Fields))
		for i, f := range c.Layout.Fields {
			obj.fields[i] = zeroValueFor(f.Type)
		}
	}
	return obj
}

// AllocArray allocates an array of the given element type and length,
// zero-initialized (§4.5). A negative length is the interpreter's error
// to report (NegativeArraySizeException), not this allocator's.
func (h *Heap) AllocArray(arrayClass *Class, elemType *classfile.FieldType, length int) *Object {
	obj := &Object{
		Class:      arrayClass,
		SuperClass: arrayClass.Super,
		ElemType:   elemType,
	}
	obj.elems = make([]Value, length)
	zero := zeroValueFor(elemType)
	for i := range obj.elems {
		obj.elems[i] = zero
	}
	return obj
}

// AllocClassMirror allocates (or returns the cached) java/lang/Class
// instance mirroring c. Bootstrapping java/lang/Class itself is a two-pass
// affair (§4.7): java/lang/Class (and java/lang/Object, loaded before it
// as its superclass) is loaded with Mirror left nil, since no instance of
// java/lang/Class can be allocated before its Layout exists; the loader's
// BootstrapClassOfClass then calls AllocClassMirror(classOfClass,
// classOfClass), which sets classOfClass.Mirror. Every class loaded after
// that gets its mirror at load time; a class loaded earlier gets one only
// when AllocClassMirror is later called for it.
func (h *Heap) AllocClassMirror(classOfClass *Class, target *Class) *Object {
	if target.Mirror != nil {
		return target.Mirror
	}
	mirror := h.AllocInstance(classOfClass)
	target.Mirror = mirror
	if h.mirrorObserver != nil {
		h.mirrorObserver(target, mirror)
	}
	return mirror
}
