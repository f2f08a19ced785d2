package vm

import (
	"fmt"

	"github.com/govm-project/govm/pkg/classfile"
)

// BytesFor fetches the raw classfile bytes for a binary class name. It is
// the core's only hook into the outside world for class lookup (§6):
// the core never touches a filesystem, archive, or network itself — that
// lives in pkg/provider, wired in by the embedding application.
type BytesFor func(className string) ([]byte, bool, error)

// NativeLookup resolves a (class, method, descriptor) triple to a native
// implementation, or reports it has none (§4.9). Registration itself is
// NativeRegistry's job; this is the narrow callback the loader threads
// through to Method so the interpreter never needs the registry directly.
type NativeLookup func(className, methodName, descriptor string) (NativeFunc, bool)

// ClassLoader resolves binary names to linked, initialized Class records
// (§4.7): parse -> format-check -> link (layout + method table) ->
// initialize (<clinit>, superclass-first, exactly once).
type ClassLoader struct {
	bytesFor BytesFor
	natives  NativeLookup
	heap     *Heap
	interner *Interner

	classes map[string]*Class

	// classOfClass is java/lang/Class's own Class record, needed to
	// allocate any Class's Mirror (§4.7's two-pass bootstrap).
	classOfClass *Class

	arrayClasses map[string]*Class

	// stringOf builds an interned java/lang/String instance from a Go
	// string; wired in by SetStringFactory once the interpreter exists,
	// so a ConstantValue String attribute picked up while loading a class
	// resolves to the same canonical object ldc would produce (§4.4, §4.6).
	stringOf func(string) *Object
}

// NewClassLoader constructs a loader. SetInterner must be called once the
// interner exists (it depends on java/lang/String being loaded), and
// BootstrapClassOfClass must run before any class's Mirror is requested.
func NewClassLoader(bytesFor BytesFor, natives NativeLookup, heap *Heap) *ClassLoader {
	return &ClassLoader{
		bytesFor:     bytesFor,
		natives:      natives,
		heap:         heap,
		classes:      make(map[string]*Class),
		arrayClasses: make(map[string]*Class),
	}
}

// ArrayClassFor returns the synthetic Class representing arrays of elem,
// creating and caching it on first use (§4.5). Array classes have no
// classfile, no declared fields, and java/lang/Object as their
// superclass, per the JVM's array-type rules.
func (cl *ClassLoader) ArrayClassFor(elem *classfile.FieldType) (*Class, error) {
	key := "[" + elem.String()
	if c, ok := cl.arrayClasses[key]; ok {
		return c, nil
	}
	super, err := cl.ForName("java/lang/Object")
	if err != nil {
		return nil, fmt.Errorf("array class for %s: %w", key, err)
	}
	c := &Class{Name: key, Super: super, Layout: super.Layout}
	cl.arrayClasses[key] = c
	if cl.classOfClass != nil {
		cl.heap.AllocClassMirror(cl.classOfClass, c)
	}
	return c, nil
}

// SetInterner wires the string interner in after java/lang/String loads.
func (cl *ClassLoader) SetInterner(in *Interner) { cl.interner = in }

// SetStringFactory wires in the function used to resolve String
// ConstantValue attributes on static fields (Interp.NewString, once an
// Interp exists). Until this is set, such statics hold a null reference
// instead of the interned string — true only during the bootstrap
// classes loaded before the interpreter itself is constructed.
func (cl *ClassLoader) SetStringFactory(f func(string) *Object) { cl.stringOf = f }

// patchStringConstants resolves any static final field whose
// ConstantValue is a CONSTANT_String, now that layout.go's
// staticInitialValue has already placed the rest (§4.4's note that
// String constants resolve through the interner, not a plain allocation).
func (cl *ClassLoader) patchStringConstants(c *Class, cf *classfile.ClassFile) {
	if cl.stringOf == nil {
		return
	}
	si := 0
	for _, field := range cf.Fields {
		if !field.IsStatic() {
			continue
		}
		if field.HasConstantVal {
			if cs, ok := field.ConstantValue.(*classfile.ConstantString); ok {
				if s, err := classfile.GetUtf8(cf.ConstantPool, cs.StringIndex); err == nil {
					c.Statics[si].Value = RefVal(cl.stringOf(s))
				}
			}
		}
		si++
	}
}

// BootstrapClassOfClass loads java/lang/Class ahead of everything else
// and records it as classOfClass, completing §4.7's bootstrap two-pass:
// every subsequent ForName can allocate a Mirror immediately, and
// java/lang/Class's own Mirror is patched in right after.
func (cl *ClassLoader) BootstrapClassOfClass() (*Class, error) {
	c, err := cl.ForName("java/lang/Class")
	if err != nil {
		return nil, fmt.Errorf("bootstrapping java/lang/Class: %w", err)
	}
	cl.classOfClass = c
	cl.heap.AllocClassMirror(c, c)
	return c, nil
}

// Loaded reports whether className has already been loaded (without
// triggering a load), for diagnostics.
func (cl *ClassLoader) Loaded(className string) (*Class, bool) {
	c, ok := cl.classes[className]
	return c, ok
}

// ForName loads, links, and returns className's Class record, loading its
// superclass and interfaces first (§4.7). It does not run <clinit>;
// callers that need initialization semantics call Initialize separately
// at the use sites the spec names (new, static field access, static
// method invocation, the array-class check does not trigger it).
func (cl *ClassLoader) ForName(className string) (*Class, error) {
	if c, ok := cl.classes[className]; ok {
		return c, nil
	}

	data, ok, err := cl.bytesFor(className)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", className, err)
	}
	if !ok {
		return nil, &LinkageError{ClassName: className, Reason: "ClassNotFoundException"}
	}

	cf, err := classfile.Parse(className, data)
	if err != nil {
		return nil, &LinkageError{ClassName: className, Reason: "ClassFormatError", Err: err}
	}
	if err := classfile.FormatCheck(cf); err != nil {
		return nil, &LinkageError{ClassName: className, Reason: "ClassFormatError", Err: err}
	}

	c := &Class{Name: className, File: cf}
	// Registering before recursing into the superclass/interfaces guards
	// against a malformed cyclic hierarchy looping forever; a cycle will
	// instead surface as a layout computed from a half-built Super chain,
	// which FormatCheck-level validation does not catch but is out of
	// scope for this loader (classfiles are assumed to come from a
	// consistent build, not an adversarial one).
	cl.classes[className] = c

	var super *Class
	if superName, _ := cf.SuperClassName(); superName != "" {
		super, err = cl.ForName(superName)
		if err != nil {
			delete(cl.classes, className)
			return nil, err
		}
		c.Super = super
	}

	for _, ifaceIdx := range cf.Interfaces {
		ifaceName, err := classfile.GetClassName(cf.ConstantPool, ifaceIdx)
		if err != nil {
			delete(cl.classes, className)
			return nil, &LinkageError{ClassName: className, Reason: "ClassFormatError", Err: err}
		}
		ifaceClass, err := cl.ForName(ifaceName)
		if err != nil {
			delete(cl.classes, className)
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, ifaceClass)
	}

	layout, statics, err := ComputeLayout(superLayout(super), cf)
	if err != nil {
		delete(cl.classes, className)
		return nil, &LinkageError{ClassName: className, Reason: "ClassFormatError", Err: err}
	}
	c.Layout = layout
	c.Statics = statics
	cl.patchStringConstants(c, cf)

	c.Methods = buildMethodTable(c, cf, cl.natives)

	if cl.classOfClass != nil {
		cl.heap.AllocClassMirror(cl.classOfClass, c)
	}

	return c, nil
}

func superLayout(super *Class) *InstanceLayout {
	if super == nil {
		return nil
	}
	return super.Layout
}

// Initialize runs <clinit>, recursively initializing the superclass
// first, exactly once per class (§4.7). initialized is set to true
// before the recursive call into the superclass's own initializer and
// before running this class's own <clinit>, so a cycle caused by a
// class's own <clinit> re-entering Initialize (directly or through a
// static method call) sees "already initialized" and returns immediately
// instead of looping — the JVM's documented re-entrant-<clinit> rule.
func (cl *ClassLoader) Initialize(c *Class, run func(*Class, *Method) error) error {
	if c.initialized || c.initializing {
		return nil
	}
	c.initializing = true
	c.initialized = true

	if c.Super != nil {
		if err := cl.Initialize(c.Super, run); err != nil {
			return err
		}
	}

	for _, m := range c.Methods {
		if m.Name == "<clinit>" && m.Descriptor == "()V" {
			if err := run(c, m); err != nil {
				return err
			}
			break
		}
	}
	c.initializing = false
	return nil
}
