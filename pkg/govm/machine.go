// Package govm is the top-level facade wiring pkg/classfile and pkg/vm
// into a runnable interpreter: it bootstraps the handful of classes the
// core cannot run without (java/lang/Object, Class, String, the
// Throwable hierarchy, System, Thread), registers their native bodies,
// and exposes a driver entry point that routes argv into a main class
// (§6's "CLI surface... a thin driver"). Nothing under pkg/vm imports
// this package; the dependency runs one way, the same separation the
// core's own design notes describe for a multi-interpreter extension.
package govm

import (
	"fmt"
	"time"

	"github.com/govm-project/govm/pkg/classfile"
	"github.com/govm-project/govm/pkg/diagnostics"
	"github.com/govm-project/govm/pkg/govm/bootstrap"
	"github.com/govm-project/govm/pkg/vm"
)

// Machine owns one interpreter's full bootstrapped state: the classes,
// heap and interner any running program needs already loaded, plus the
// bookkeeping (mirror index, cached main thread) the native bodies in
// natives.go close over.
type Machine struct {
	Loader   *vm.ClassLoader
	Heap     *vm.Heap
	Interner *vm.Interner
	Natives  *vm.NativeRegistry
	Interp   *vm.Interp
	Log      *diagnostics.Logger

	mirrorToClass map[*vm.Object]*vm.Class
	mainThreadObj *vm.Object
}

// New builds a Machine. bytesFor is consulted first for every class name
// (pkg/provider supplies the concrete DirProvider/MmapJmodProvider/
// ChainProvider implementations a host wires in here); names it does not
// supply fall back to the built-in bootstrap set, and passing nil uses the
// bootstrap set alone, enough to run the scenarios in §8 that don't reference a real
// classpath.
func New(bytesFor vm.BytesFor, log *diagnostics.Logger) (*Machine, error) {
	if log == nil {
		log = diagnostics.New(diagnostics.Info)
	}
	classes := bootstrap.Classes()
	chained := func(name string) ([]byte, bool, error) {
		if bytesFor != nil {
			if data, ok, err := bytesFor(name); ok || err != nil {
				return data, ok, err
			}
		}
		if data, ok := classes[name]; ok {
			return data, true, nil
		}
		return nil, false, nil
	}

	m := &Machine{
		Log:           log,
		mirrorToClass: make(map[*vm.Object]*vm.Class),
	}

	m.Heap = vm.NewHeap()
	m.Heap.SetMirrorObserver(m.onMirror)
	m.Natives = vm.NewNativeRegistry()
	m.Loader = vm.NewClassLoader(chained, m.Natives.Lookup, m.Heap)

	classOfClass, err := m.Loader.BootstrapClassOfClass()
	if err != nil {
		return nil, fmt.Errorf("bootstrapping java/lang/Class: %w", err)
	}
	// java/lang/Object loads as java/lang/Class's superclass before
	// classOfClass is set, so it misses the automatic per-ForName mirror
	// allocation every later class gets; back-fill it once here.
	objectClass, err := m.Loader.ForName("java/lang/Object")
	if err != nil {
		return nil, fmt.Errorf("bootstrapping java/lang/Object: %w", err)
	}
	m.Heap.AllocClassMirror(classOfClass, objectClass)

	stringClass, err := m.Loader.ForName("java/lang/String")
	if err != nil {
		return nil, fmt.Errorf("bootstrapping java/lang/String: %w", err)
	}
	m.Interner = vm.NewInterner(m.Heap, stringClass)
	m.Loader.SetInterner(m.Interner)

	m.Interp = vm.NewInterp(m.Loader, m.Heap, m.Natives)
	m.Interp.Interner = m.Interner
	m.Interp.StringClass = stringClass
	m.Interp.Log = m.Log

	// Now that NewString exists, any static final String ConstantValue
	// picked up while loading later classes resolves through the
	// interner instead of staying null (the classloader.go fix this
	// fills the gap for).
	m.Loader.SetStringFactory(m.Interp.NewString)

	m.registerBootstrapNatives()

	for _, name := range []string{
		"java/lang/Throwable", "java/lang/Exception", "java/lang/RuntimeException",
		"java/lang/Error", "java/lang/LinkageError", "java/lang/VirtualMachineError",
		"java/lang/StackOverflowError", "java/lang/NullPointerException",
		"java/lang/ArithmeticException", "java/lang/ClassCastException",
		"java/lang/NegativeArraySizeException", "java/lang/IndexOutOfBoundsException",
		"java/lang/ArrayIndexOutOfBoundsException", "java/lang/StringIndexOutOfBoundsException",
		"java/lang/IllegalStateException", "java/lang/IllegalArgumentException",
		"java/lang/UnsupportedOperationException", "java/lang/ClassNotFoundException",
		"java/lang/NoSuchFieldError", "java/lang/NoSuchMethodError",
		"java/lang/System", "java/lang/Thread", "jdk/internal/misc/Unsafe",
	} {
		if _, err := m.Loader.ForName(name); err != nil {
			return nil, fmt.Errorf("bootstrapping %s: %w", name, err)
		}
	}

	return m, nil
}

func (m *Machine) onMirror(c *vm.Class, mirror *vm.Object) {
	m.mirrorToClass[mirror] = c
}

func (m *Machine) classForMirror(mirror *vm.Object) *vm.Class {
	return m.mirrorToClass[mirror]
}

// mainThread lazily allocates the one java/lang/Thread instance
// currentThread() returns; a real Thread registry is out of scope
// (§5, §9: no threading), but callers observing reference identity
// across repeated currentThread() calls still get a stable answer.
func (m *Machine) mainThread() *vm.Object {
	if m.mainThreadObj != nil {
		return m.mainThreadObj
	}
	threadClass, err := m.Loader.ForName("java/lang/Thread")
	if err != nil {
		m.Log.Severe("allocating main thread: %v", err)
		return nil
	}
	obj := m.Heap.AllocInstance(threadClass)
	if f, ok := threadClass.Layout.FieldByName("name"); ok {
		obj.SetField(f, vm.RefVal(m.Interp.NewString("main")))
	}
	m.mainThreadObj = obj
	return obj
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// RunMain resolves mainClass, initializes it, and invokes its
// `main(String[])` with args wrapped as a Java String[] (§6's "routes
// its command-line arguments into the interpreter as a String[]").
// Returns the program's exit code: 0 on a normal return, 1 on an
// uncaught throwable (printed to the log the way a JVM would to
// stderr), or whatever code a System.exit call requested.
func (m *Machine) RunMain(mainClass string, args []string) (code int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(*exitSignal); ok {
				code = sig.code
				return
			}
			panic(r)
		}
	}()

	class, err := m.Loader.ForName(mainClass)
	if err != nil {
		return 1, fmt.Errorf("loading %s: %w", mainClass, err)
	}
	if err := m.Loader.Initialize(class, func(c *vm.Class, method *vm.Method) error {
		_, err := m.Interp.Invoke(method, nil)
		return err
	}); err != nil {
		return 1, err
	}

	method, err := vm.ResolveMethod(class, "main", "([Ljava/lang/String;)V")
	if err != nil {
		return 1, fmt.Errorf("resolving main: %w", err)
	}

	argv, err := m.buildArgsArray(args)
	if err != nil {
		return 1, fmt.Errorf("building args array: %w", err)
	}

	_, err = m.Interp.Invoke(method, []vm.Value{vm.RefVal(argv)})
	if err != nil {
		if t, ok := err.(*vm.Throw); ok {
			m.Log.Severe("uncaught %s", describeThrow(m, t))
			return 1, nil
		}
		return 1, err
	}
	return 0, nil
}

func (m *Machine) buildArgsArray(args []string) (*vm.Object, error) {
	strType, _, err := classfile.ParseFieldType("Ljava/lang/String;")
	if err != nil {
		return nil, err
	}
	arrClass, err := m.Loader.ArrayClassFor(strType)
	if err != nil {
		return nil, err
	}
	arr := m.Heap.AllocArray(arrClass, strType, len(args))
	for i, a := range args {
		arr.SetElem(i, vm.RefVal(m.Interp.NewString(a)))
	}
	return arr, nil
}

func describeThrow(m *Machine, t *vm.Throw) string {
	msg := ""
	if f, ok := t.Exception.Class.Layout.FieldByName(vm.MessageFieldName); ok {
		if v := t.Exception.GetField(f); v.Ref != nil {
			msg = ": " + goString(m.Interp, v.Ref)
		}
	}
	return javaName(t.Exception.Class.Name) + msg
}
