package vm

import (
	"sync"
	"unicode/utf16"
)

// encodeUTF16BE renders s as big-endian UTF-16 code units (§4.6's
// interner storage format; modern compact-string JVMs use coder=1 for
// the Latin-1-incompatible case, which this core always takes for
// simplicity rather than also modeling the coder=0 Latin-1 fast path).
func encodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[i*2] = byte(u >> 8)
		out[i*2+1] = byte(u)
	}
	return out
}

// Interner is the VM-wide string pool (§4.6): ldc of a CONSTANT_String and
// String.intern() both resolve through here, so two equal strings always
// share one heap object, letting == (if_acmpeq) decide reference equality
// for interned strings without a char-by-char compare.
type Interner struct {
	mu      sync.Mutex
	table   map[string]*Object
	heap    *Heap
	strings *Class // java/lang/String's Class, for allocating interned instances
}

// NewInterner builds an interner backed by heap, allocating instances of
// stringClass for each newly interned value.
func NewInterner(heap *Heap, stringClass *Class) *Interner {
	return &Interner{
		table:   make(map[string]*Object),
		heap:    heap,
		strings: stringClass,
	}
}

// Intern returns the canonical *Object for s, allocating and storing one
// the first time s is seen (§4.6). The returned object's identity is
// stable for the life of the process.
func (in *Interner) Intern(s string, populate func(*Object, string)) *Object {
	in.mu.Lock()
	defer in.mu.Unlock()

	if obj, ok := in.table[s]; ok {
		return obj
	}
	obj := in.heap.AllocInstance(in.strings)
	if populate != nil {
		populate(obj, s)
	}
	in.table[s] = obj
	return obj
}

// Lookup returns the interned object for s without allocating, reporting
// whether it had already been interned.
func (in *Interner) Lookup(s string) (*Object, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	obj, ok := in.table[s]
	return obj, ok
}
