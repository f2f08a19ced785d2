package bootstrap

import "github.com/govm-project/govm/pkg/classfile"

// Classes returns the binary-name -> classfile-bytes map for every
// synthetic bootstrap class this runtime supplies out of the box. A
// host-supplied pkg/provider.BytesFor is consulted first by
// pkg/govm.Machine; these only back-fill what it doesn't have, so a
// real java.base.jmod (were one mounted) would simply shadow them.
func Classes() map[string][]byte {
	classes := map[string][]byte{}
	add := func(name string, data []byte) { classes[name] = data }

	add("java/lang/Object", objectClass())
	add("java/lang/Class", classClass())
	add("java/lang/String", stringClass())
	add("java/lang/Throwable", throwableClass())
	add("java/lang/Exception", simpleThrowableSubclass("java/lang/Exception", "java/lang/Throwable"))
	add("java/lang/RuntimeException", simpleThrowableSubclass("java/lang/RuntimeException", "java/lang/Exception"))
	add("java/lang/Error", simpleThrowableSubclass("java/lang/Error", "java/lang/Throwable"))
	add("java/lang/LinkageError", simpleThrowableSubclass("java/lang/LinkageError", "java/lang/Error"))
	add("java/lang/VirtualMachineError", simpleThrowableSubclass("java/lang/VirtualMachineError", "java/lang/Error"))
	add("java/lang/StackOverflowError", simpleThrowableSubclass("java/lang/StackOverflowError", "java/lang/VirtualMachineError"))
	add("java/lang/NullPointerException", simpleThrowableSubclass("java/lang/NullPointerException", "java/lang/RuntimeException"))
	add("java/lang/ArithmeticException", simpleThrowableSubclass("java/lang/ArithmeticException", "java/lang/RuntimeException"))
	add("java/lang/ClassCastException", simpleThrowableSubclass("java/lang/ClassCastException", "java/lang/RuntimeException"))
	add("java/lang/NegativeArraySizeException", simpleThrowableSubclass("java/lang/NegativeArraySizeException", "java/lang/RuntimeException"))
	add("java/lang/IndexOutOfBoundsException", simpleThrowableSubclass("java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"))
	add("java/lang/ArrayIndexOutOfBoundsException", simpleThrowableSubclass("java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"))
	add("java/lang/StringIndexOutOfBoundsException", simpleThrowableSubclass("java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"))
	add("java/lang/IllegalStateException", simpleThrowableSubclass("java/lang/IllegalStateException", "java/lang/RuntimeException"))
	add("java/lang/IllegalArgumentException", simpleThrowableSubclass("java/lang/IllegalArgumentException", "java/lang/RuntimeException"))
	add("java/lang/UnsupportedOperationException", simpleThrowableSubclass("java/lang/UnsupportedOperationException", "java/lang/RuntimeException"))
	add("java/lang/ClassNotFoundException", simpleThrowableSubclass("java/lang/ClassNotFoundException", "java/lang/Exception"))
	add("java/lang/NoSuchFieldError", simpleThrowableSubclass("java/lang/NoSuchFieldError", "java/lang/LinkageError"))
	add("java/lang/NoSuchMethodError", simpleThrowableSubclass("java/lang/NoSuchMethodError", "java/lang/LinkageError"))
	add("java/lang/System", systemClass())
	add("java/lang/Thread", threadClass())
	add("jdk/internal/misc/Unsafe", unsafeClass())

	return classes
}

// objectClass builds java/lang/Object with a no-arg constructor whose body
// is a bare return, plus native hashCode/equals/toString; every other bootstrap class falls back to it implicitly
// since instance init for the synthetic classes never does real work.
func objectClass() []byte {
	a := newAsm()
	a.method("<init>", "()V", 0, []byte{opReturn}, 1, 1)
	a.method("hashCode", "()I", classfile.AccNative, nil, 0, 0)   // native
	a.method("equals", "(Ljava/lang/Object;)Z", classfile.AccNative, nil, 0, 0) // native
	a.method("toString", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0) // native
	return a.build("java/lang/Object", "", nil)
}

// classClass builds java/lang/Class. Its fields are populated directly
// by the heap/loader (name, component type) rather than through Java
// constructors; getName/isInstance/isArray are registered as natives.
func classClass() []byte {
	a := newAsm()
	a.field("name", "Ljava/lang/String;", classfile.AccPrivate)
	a.method("getName", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	a.method("isInstance", "(Ljava/lang/Object;)Z", classfile.AccNative, nil, 0, 0)
	a.method("isArray", "()Z", classfile.AccNative, nil, 0, 0)
	a.method("toString", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	return a.build("java/lang/Class", "java/lang/Object", nil)
}

// stringClass builds java/lang/String with the two fields NewString
// populates directly (value, coder, mirroring JDK 9+'s compact-string
// layout) plus the natives the interpreter's intern/equality scenarios
// exercise (length, charAt, equals, concat, intern).
func stringClass() []byte {
	a := newAsm()
	a.field("value", "[B", classfile.AccPrivate)
	a.field("coder", "B", classfile.AccPrivate)
	a.method("<init>", "()V", classfile.AccNative, nil, 0, 0) // native: default ctor, empty string
	a.method("<init>", "(Ljava/lang/String;)V", classfile.AccNative, nil, 0, 0) // native: copy ctor
	a.method("length", "()I", classfile.AccNative, nil, 0, 0)
	a.method("charAt", "(I)C", classfile.AccNative, nil, 0, 0)
	a.method("equals", "(Ljava/lang/Object;)Z", classfile.AccNative, nil, 0, 0)
	a.method("hashCode", "()I", classfile.AccNative, nil, 0, 0)
	a.method("concat", "(Ljava/lang/String;)Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	a.method("intern", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	a.method("toString", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	return a.build("java/lang/String", "java/lang/Object", nil)
}

// throwableClass builds java/lang/Throwable with the two fields
// exception.go already names (MessageFieldName, StackTraceFieldName)
// plus getMessage/toString natives.
func throwableClass() []byte {
	a := newAsm()
	a.field("detailMessage", "Ljava/lang/String;", classfile.AccPrivate)
	a.field("stackTrace", "[Ljava/lang/StackTraceElement;", classfile.AccPrivate)
	a.method("<init>", "()V", classfile.AccNative, nil, 0, 0)                   // native: no-op beyond Object's
	a.method("<init>", "(Ljava/lang/String;)V", classfile.AccNative, nil, 0, 0) // native: sets detailMessage
	a.method("getMessage", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	a.method("toString", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	return a.build("java/lang/Throwable", "java/lang/Object", nil)
}

// simpleThrowableSubclass builds a class with no fields or methods of
// its own beyond a trivial native no-arg constructor; used for the bulk
// of the exception/error hierarchy, whose entire behavior is inherited.
func simpleThrowableSubclass(name, super string) []byte {
	a := newAsm()
	a.method("<init>", "()V", classfile.AccNative, nil, 0, 0)
	a.method("<init>", "(Ljava/lang/String;)V", classfile.AccNative, nil, 0, 0)
	return a.build(name, super, nil)
}

// systemClass builds java/lang/System with the natives
// arraycopy/currentTimeMillis/identityHashCode (§9's open question on
// arraycopy aliasing is resolved the same way here: a temporary copy
// when src == dst, not handled for aliasing without reference identity).
func systemClass() []byte {
	a := newAsm()
	a.method("arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", classfile.AccStatic|classfile.AccNative, nil, 0, 0)
	a.method("currentTimeMillis", "()J", classfile.AccStatic|classfile.AccNative, nil, 0, 0)
	a.method("identityHashCode", "(Ljava/lang/Object;)I", classfile.AccStatic|classfile.AccNative, nil, 0, 0)
	a.method("exit", "(I)V", classfile.AccStatic|classfile.AccNative, nil, 0, 0)
	return a.build("java/lang/System", "java/lang/Object", nil)
}

// threadClass builds a minimal java/lang/Thread stand-in. The
// specification excludes real threading (§5, §9: "single-threaded
// cooperative core"); this class exists only so bytecode that merely
// references java/lang/Thread.currentThread()/getName() for diagnostics
// doesn't fail to link.
func threadClass() []byte {
	a := newAsm()
	a.field("name", "Ljava/lang/String;", classfile.AccPrivate)
	a.method("<init>", "()V", classfile.AccNative, nil, 0, 0)
	a.method("currentThread", "()Ljava/lang/Thread;", classfile.AccStatic|classfile.AccNative, nil, 0, 0)
	a.method("getName", "()Ljava/lang/String;", classfile.AccNative, nil, 0, 0)
	return a.build("java/lang/Thread", "java/lang/Object", nil)
}

// unsafeClass builds jdk/internal/misc/Unsafe (§4's Unsafe supplement).
// objectFieldOffset1(Class, String) and the offset-based accessors are
// grounded directly on the kate original's old/jdk.rs Unsafe module,
// which resolves a field's offset from a Class's layout by name (no
// java/lang/reflect.Field involved) and then does byte-offset reads/
// writes against the object; getInt/putInt/compareAndSet* here are that
// same technique through ReadField/WriteField instead of raw pointer
// arithmetic. allocateMemory/the address-only getInt/putInt overloads
// have no analogue in the original (it never modeled off-heap memory)
// but are real JDK Unsafe methods SPEC_FULL.md's supplement names
// explicitly, backed by Heap's off-heap arena.
func unsafeClass() []byte {
	a := newAsm()
	a.method("<init>", "()V", classfile.AccNative, nil, 0, 0)
	a.method("objectFieldOffset1", "(Ljava/lang/Class;Ljava/lang/String;)J", classfile.AccNative, nil, 0, 0)
	a.method("getInt", "(Ljava/lang/Object;J)I", classfile.AccNative, nil, 0, 0)
	a.method("putInt", "(Ljava/lang/Object;JI)V", classfile.AccNative, nil, 0, 0)
	a.method("getInt", "(J)I", classfile.AccNative, nil, 0, 0)
	a.method("putInt", "(JI)V", classfile.AccNative, nil, 0, 0)
	a.method("compareAndSetInt", "(Ljava/lang/Object;JII)Z", classfile.AccNative, nil, 0, 0)
	a.method("compareAndSetLong", "(Ljava/lang/Object;JJJ)Z", classfile.AccNative, nil, 0, 0)
	a.method("compareAndSetReference", "(Ljava/lang/Object;JLjava/lang/Object;Ljava/lang/Object;)Z", classfile.AccNative, nil, 0, 0)
	a.method("allocateMemory", "(J)J", classfile.AccNative, nil, 0, 0)
	return a.build("jdk/internal/misc/Unsafe", "java/lang/Object", nil)
}
