package govm

import (
	"fmt"

	"github.com/govm-project/govm/pkg/classfile"
	"github.com/govm-project/govm/pkg/vm"
)

// registerBootstrapNatives binds the Go implementations backing every
// native method the bootstrap classfiles declare (§4.9). Each entry is
// grounded on what the corresponding JDK method actually does, trimmed
// to what the core's non-goals leave in scope: no reflection, no real
// threading, no GC-observable finalization. Bound as methods on Machine
// since several (Class.getName, Thread.currentThread) need state
// (the mirror index, the singleton main thread) beyond what NativeFunc's
// (interp, args) signature carries.
func (m *Machine) registerBootstrapNatives() {
	reg := m.Natives
	reg.Register("java/lang/Object", "<init>", "()V", nativeNoop)
	reg.Register("java/lang/Object", "hashCode", "()I", m.objectHashCode)
	reg.Register("java/lang/Object", "equals", "(Ljava/lang/Object;)Z", objectEquals)
	reg.Register("java/lang/Object", "toString", "()Ljava/lang/String;", objectToString)

	reg.Register("java/lang/Class", "getName", "()Ljava/lang/String;", m.classGetName)
	reg.Register("java/lang/Class", "isInstance", "(Ljava/lang/Object;)Z", m.classIsInstance)
	reg.Register("java/lang/Class", "isArray", "()Z", m.classIsArray)
	reg.Register("java/lang/Class", "toString", "()Ljava/lang/String;", m.classGetName)

	reg.Register("java/lang/String", "<init>", "()V", stringInitEmpty)
	reg.Register("java/lang/String", "<init>", "(Ljava/lang/String;)V", stringInitCopy)
	reg.Register("java/lang/String", "length", "()I", stringLength)
	reg.Register("java/lang/String", "charAt", "(I)C", stringCharAt)
	reg.Register("java/lang/String", "equals", "(Ljava/lang/Object;)Z", stringEquals)
	reg.Register("java/lang/String", "hashCode", "()I", stringHashCode)
	reg.Register("java/lang/String", "concat", "(Ljava/lang/String;)Ljava/lang/String;", stringConcat)
	reg.Register("java/lang/String", "intern", "()Ljava/lang/String;", stringIntern)
	reg.Register("java/lang/String", "toString", "()Ljava/lang/String;", stringToString)

	reg.Register("java/lang/Throwable", "<init>", "()V", nativeNoop)
	reg.Register("java/lang/Throwable", "<init>", "(Ljava/lang/String;)V", throwableInitMessage)
	reg.Register("java/lang/Throwable", "getMessage", "()Ljava/lang/String;", m.throwableGetMessage)
	reg.Register("java/lang/Throwable", "toString", "()Ljava/lang/String;", m.throwableToString)

	for _, name := range simpleThrowableNames {
		reg.Register(name, "<init>", "()V", nativeNoop)
		reg.Register(name, "<init>", "(Ljava/lang/String;)V", throwableInitMessage)
	}

	reg.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", systemArraycopy)
	reg.Register("java/lang/System", "currentTimeMillis", "()J", systemCurrentTimeMillis)
	reg.Register("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", objectIdentityHashCode)
	reg.Register("java/lang/System", "exit", "(I)V", systemExit)

	reg.Register("java/lang/Thread", "<init>", "()V", nativeNoop)
	reg.Register("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;", m.threadCurrentThread)
	reg.Register("java/lang/Thread", "getName", "()Ljava/lang/String;", threadGetName)

	reg.Register("jdk/internal/misc/Unsafe", "<init>", "()V", nativeNoop)
	reg.Register("jdk/internal/misc/Unsafe", "objectFieldOffset1", "(Ljava/lang/Class;Ljava/lang/String;)J", m.unsafeObjectFieldOffset)
	reg.Register("jdk/internal/misc/Unsafe", "getInt", "(Ljava/lang/Object;J)I", unsafeGetIntField)
	reg.Register("jdk/internal/misc/Unsafe", "putInt", "(Ljava/lang/Object;JI)V", unsafePutIntField)
	reg.Register("jdk/internal/misc/Unsafe", "getInt", "(J)I", unsafeGetIntAddr)
	reg.Register("jdk/internal/misc/Unsafe", "putInt", "(JI)V", unsafePutIntAddr)
	reg.Register("jdk/internal/misc/Unsafe", "compareAndSetInt", "(Ljava/lang/Object;JII)Z", unsafeCompareAndSetInt)
	reg.Register("jdk/internal/misc/Unsafe", "compareAndSetLong", "(Ljava/lang/Object;JJJ)Z", unsafeCompareAndSetLong)
	reg.Register("jdk/internal/misc/Unsafe", "compareAndSetReference", "(Ljava/lang/Object;JLjava/lang/Object;Ljava/lang/Object;)Z", unsafeCompareAndSetReference)
	reg.Register("jdk/internal/misc/Unsafe", "allocateMemory", "(J)J", unsafeAllocateMemory)
}

// simpleThrowableNames mirrors bootstrap.Classes' exception/error
// hierarchy entries whose <init> bodies are just "set the message", so
// the loop above doesn't need bootstrap.Classes' own list duplicated by
// hand beyond what registerBootstrapNatives already enumerates.
var simpleThrowableNames = []string{
	"java/lang/Exception",
	"java/lang/RuntimeException",
	"java/lang/Error",
	"java/lang/LinkageError",
	"java/lang/VirtualMachineError",
	"java/lang/StackOverflowError",
	"java/lang/NullPointerException",
	"java/lang/ArithmeticException",
	"java/lang/ClassCastException",
	"java/lang/NegativeArraySizeException",
	"java/lang/IndexOutOfBoundsException",
	"java/lang/ArrayIndexOutOfBoundsException",
	"java/lang/StringIndexOutOfBoundsException",
	"java/lang/IllegalStateException",
	"java/lang/IllegalArgumentException",
	"java/lang/UnsupportedOperationException",
	"java/lang/ClassNotFoundException",
	"java/lang/NoSuchFieldError",
	"java/lang/NoSuchMethodError",
}

func nativeNoop(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return vm.Value{}, nil, nil
}

func (m *Machine) objectHashCode(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return identityHash(args[0].Ref), nil, nil
}

// objectIdentityHashCode derives a stable per-object int from the
// object's pointer identity without exposing the pointer itself; the
// bottom bits of the Go pointer value are as good a proxy for identity
// hash as any JVM's actual (unspecified) scheme.
func objectIdentityHashCode(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return identityHash(args[len(args)-1].Ref), nil, nil
}

func identityHash(o *vm.Object) vm.Value {
	if o == nil {
		return vm.IntVal(0)
	}
	return vm.IntVal(int32(objectAddr(o)))
}

func objectEquals(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return boolVal(args[0].Ref == args[1].Ref), nil, nil
}

func objectToString(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	recv := args[0].Ref
	s := in.NewString(fmt.Sprintf("%s@%x", recv.DebugClassName(), objectAddr(recv)))
	return vm.RefVal(s), nil, nil
}

func (m *Machine) classGetName(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	c := m.classForMirror(args[0].Ref)
	if c == nil {
		return vm.RefVal(in.NewString("")), nil, nil
	}
	return vm.RefVal(in.NewString(javaName(c.Name))), nil, nil
}

func (m *Machine) classIsInstance(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	c := m.classForMirror(args[0].Ref)
	other := args[1].Ref
	if c == nil || other == nil {
		return boolVal(false), nil, nil
	}
	return boolVal(c.IsAssignableFrom(other.Class)), nil, nil
}

func (m *Machine) classIsArray(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	c := m.classForMirror(args[0].Ref)
	return boolVal(c != nil && c.IsArrayClass()), nil, nil
}

func stringInitEmpty(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	copyStringInto(in, args[0].Ref, "")
	return vm.Value{}, nil, nil
}

func stringInitCopy(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	copyStringInto(in, args[0].Ref, goString(in, args[1].Ref))
	return vm.Value{}, nil, nil
}

// copyStringInto populates a freshly allocated (via `new`, not yet
// interned) java/lang/String instance's value/coder fields, the native
// body backing `new String(...)`'s required behavior: distinct identity
// from any interned literal even when the contents match (§8, S6).
func copyStringInto(in *vm.Interp, obj *vm.Object, s string) {
	buf := encodeUTF16BE(s)
	byteType := &classfile.FieldType{Base: classfile.TByte}
	arrClass, err := in.Loader.ArrayClassFor(byteType)
	if err != nil {
		in.Log.Severe("String <init>: allocating backing array: %v", err)
		return
	}
	arr := in.Heap.AllocArray(arrClass, byteType, len(buf))
	for i, b := range buf {
		arr.SetElem(i, vm.IntVal(int32(int8(b))))
	}
	stringClass := obj.Class
	if f, ok := stringClass.Layout.FieldByName("value"); ok {
		obj.SetField(f, vm.RefVal(arr))
	}
	if f, ok := stringClass.Layout.FieldByName("coder"); ok {
		obj.SetField(f, vm.IntVal(1))
	}
}

func stringLength(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return vm.IntVal(int32(len(goString(in, args[0].Ref)))), nil, nil
}

func stringCharAt(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	s := goString(in, args[0].Ref)
	idx := int(args[1].Int32())
	if idx < 0 || idx >= len(s) {
		exc, err := in.NewThrowable("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", idx, len(s)))
		if err != nil {
			return vm.Value{}, nil, err
		}
		return vm.Value{}, exc, nil
	}
	return vm.IntVal(int32(s[idx])), nil, nil
}

func stringEquals(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	other := args[1].Ref
	if other == nil || other.Class.Name != "java/lang/String" {
		return boolVal(false), nil, nil
	}
	return boolVal(goString(in, args[0].Ref) == goString(in, other)), nil, nil
}

func stringHashCode(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	s := goString(in, args[0].Ref)
	var h int32
	for _, r := range s {
		h = 31*h + int32(r)
	}
	return vm.IntVal(h), nil, nil
}

func stringConcat(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	a := goString(in, args[0].Ref)
	b := goString(in, args[1].Ref)
	obj := in.Heap.AllocInstance(args[0].Ref.Class)
	copyStringInto(in, obj, a+b)
	return vm.RefVal(obj), nil, nil
}

func stringIntern(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return vm.RefVal(in.NewString(goString(in, args[0].Ref))), nil, nil
}

func stringToString(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return args[0], nil, nil
}

func throwableInitMessage(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	recv := args[0].Ref
	msgRef := args[1].Ref
	if f, ok := recv.Class.Layout.FieldByName(vm.MessageFieldName); ok {
		recv.SetField(f, vm.RefVal(msgRef))
	}
	return vm.Value{}, nil, nil
}

func (m *Machine) throwableGetMessage(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	recv := args[0].Ref
	if f, ok := recv.Class.Layout.FieldByName(vm.MessageFieldName); ok {
		return recv.GetField(f), nil, nil
	}
	return vm.NullVal(), nil, nil
}

func (m *Machine) throwableToString(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	recv := args[0].Ref
	msg := ""
	if f, ok := recv.Class.Layout.FieldByName(vm.MessageFieldName); ok {
		if m := recv.GetField(f); m.Ref != nil {
			msg = goString(in, m.Ref)
		}
	}
	text := javaName(recv.Class.Name)
	if msg != "" {
		text += ": " + msg
	}
	return vm.RefVal(in.NewString(text)), nil, nil
}

// systemArraycopy follows §9's documented open-question resolution: a
// temporary copy is made only when src and dst are reference-identical,
// so genuine forward/backward overlap through distinct aliasing
// references is not special-cased (left as future work, matching the
// teacher's own read of the original semantics).
func systemArraycopy(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	src, srcPos, dst, dstPos, length := args[0].Ref, args[1].Int32(), args[2].Ref, args[3].Int32(), args[4].Int32()
	if src == nil || dst == nil {
		exc, err := in.NewThrowable("java/lang/NullPointerException", "")
		return vm.Value{}, exc, err
	}
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		int(srcPos+length) > src.Length() || int(dstPos+length) > dst.Length() {
		exc, err := in.NewThrowable("java/lang/ArrayIndexOutOfBoundsException", "arraycopy")
		return vm.Value{}, exc, err
	}
	if src == dst {
		tmp := make([]vm.Value, length)
		for i := int32(0); i < length; i++ {
			tmp[i] = src.GetElem(int(srcPos + i))
		}
		for i := int32(0); i < length; i++ {
			dst.SetElem(int(dstPos+i), tmp[i])
		}
		return vm.Value{}, nil, nil
	}
	for i := int32(0); i < length; i++ {
		dst.SetElem(int(dstPos+i), src.GetElem(int(srcPos+i)))
	}
	return vm.Value{}, nil, nil
}

func systemCurrentTimeMillis(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return vm.LongVal(nowMillis()), nil, nil
}

func systemExit(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	panic(&exitSignal{code: int(args[0].Int32())})
}

func (m *Machine) threadCurrentThread(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return vm.RefVal(m.mainThread()), nil, nil
}

func threadGetName(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	recv := args[0].Ref
	if f, ok := recv.Class.Layout.FieldByName("name"); ok {
		return recv.GetField(f), nil, nil
	}
	return vm.NullVal(), nil, nil
}

// unsafeObjectFieldOffset resolves a field's header-relative byte offset
// from its declaring Class mirror and name, mirroring the kate
// original's objectFieldOffset1(Class, String) (old/jdk.rs) rather than
// the real JDK's reflect.Field-based overload — no java/lang/reflect
// involved, since full reflection is out of scope.
func (m *Machine) unsafeObjectFieldOffset(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	c := m.classForMirror(args[1].Ref)
	name := goString(in, args[2].Ref)
	if c == nil || c.Layout == nil {
		exc, err := in.NewThrowable("java/lang/IllegalArgumentException", "unresolved class")
		return vm.Value{}, exc, err
	}
	f, ok := c.Layout.FieldByName(name)
	if !ok {
		exc, err := in.NewThrowable("java/lang/NoSuchFieldError", name)
		return vm.Value{}, exc, err
	}
	return vm.LongVal(int64(f.Offset)), nil, nil
}

// unsafeGetIntField/unsafePutIntField are jdk/internal/misc/Unsafe's
// (Object, long offset) overloads: the offset is resolved against the
// target object's own class layout via ReadFieldOffset/WriteFieldOffset,
// the same protocol ordinary getfield/putfield route through (§4.5).
// args[0] is the Unsafe receiver itself, args[1] the target object.
func unsafeGetIntField(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	target := args[1].Ref
	offset := int(args[2].Int64())
	if target == nil {
		exc, err := in.NewThrowable("java/lang/NullPointerException", "")
		return vm.Value{}, exc, err
	}
	v, ok := target.ReadFieldOffset(offset)
	if !ok {
		exc, err := in.NewThrowable("java/lang/IllegalArgumentException", fmt.Sprintf("no field at offset %d", offset))
		return vm.Value{}, exc, err
	}
	return v, nil, nil
}

func unsafePutIntField(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	target := args[1].Ref
	offset := int(args[2].Int64())
	if target == nil {
		exc, err := in.NewThrowable("java/lang/NullPointerException", "")
		return vm.Value{}, exc, err
	}
	if !target.WriteFieldOffset(offset, vm.IntVal(args[3].Int32())) {
		exc, err := in.NewThrowable("java/lang/IllegalArgumentException", fmt.Sprintf("no field at offset %d", offset))
		return vm.Value{}, exc, err
	}
	return vm.Value{}, nil, nil
}

// unsafeGetIntAddr/unsafePutIntAddr are the address-only overloads
// (no target object), backed by Heap's off-heap arena rather than any
// object's field storage — the counterpart to allocateMemory below.
func unsafeGetIntAddr(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	v, ok := in.Heap.ReadMemoryInt(args[1].Int64())
	if !ok {
		exc, err := in.NewThrowable("java/lang/IllegalArgumentException", "unmapped address")
		return vm.Value{}, exc, err
	}
	return vm.IntVal(v), nil, nil
}

func unsafePutIntAddr(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	if !in.Heap.WriteMemoryInt(args[1].Int64(), args[2].Int32()) {
		exc, err := in.NewThrowable("java/lang/IllegalArgumentException", "unmapped address")
		return vm.Value{}, exc, err
	}
	return vm.Value{}, nil, nil
}

func unsafeAllocateMemory(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	return vm.LongVal(in.Heap.AllocateMemory(args[1].Int64())), nil, nil
}

// unsafeCompareAndSetInt/Long/Reference implement compareAndSet* as a
// plain read-compare-write (§9, §4's Unsafe supplement: "insufficient
// once threads exist" — noted, not fixed, since this core is
// single-threaded and cooperative).
func unsafeCompareAndSetInt(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	target := args[1].Ref
	offset := int(args[2].Int64())
	if target == nil {
		exc, err := in.NewThrowable("java/lang/NullPointerException", "")
		return vm.Value{}, exc, err
	}
	cur, ok := target.ReadFieldOffset(offset)
	if !ok || cur.Int32() != args[3].Int32() {
		return boolVal(false), nil, nil
	}
	target.WriteFieldOffset(offset, vm.IntVal(args[4].Int32()))
	return boolVal(true), nil, nil
}

func unsafeCompareAndSetLong(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	target := args[1].Ref
	offset := int(args[2].Int64())
	if target == nil {
		exc, err := in.NewThrowable("java/lang/NullPointerException", "")
		return vm.Value{}, exc, err
	}
	cur, ok := target.ReadFieldOffset(offset)
	if !ok || cur.Int64() != args[3].Int64() {
		return boolVal(false), nil, nil
	}
	target.WriteFieldOffset(offset, vm.LongVal(args[4].Int64()))
	return boolVal(true), nil, nil
}

func unsafeCompareAndSetReference(in *vm.Interp, args []vm.Value) (vm.Value, *vm.Object, error) {
	target := args[1].Ref
	offset := int(args[2].Int64())
	if target == nil {
		exc, err := in.NewThrowable("java/lang/NullPointerException", "")
		return vm.Value{}, exc, err
	}
	cur, ok := target.ReadFieldOffset(offset)
	if !ok || cur.Ref != args[3].Ref {
		return boolVal(false), nil, nil
	}
	target.WriteFieldOffset(offset, vm.RefVal(args[4].Ref))
	return boolVal(true), nil, nil
}

func boolVal(b bool) vm.Value {
	if b {
		return vm.IntVal(1)
	}
	return vm.IntVal(0)
}

// exitSignal unwinds RunMain's goroutine-free Invoke stack on
// System.exit without modeling process teardown anywhere else in the
// interpreter core; recovered in Machine.RunMain.
type exitSignal struct{ code int }
