package govm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/govm-project/govm/pkg/classfile"
	"github.com/govm-project/govm/pkg/vm"
)

// userAsm hand-assembles a user classfile to drive Machine end to end,
// the same byte-assembly idiom pkg/govm/bootstrap/asm.go uses for the
// bootstrap set, generalized with field/method refs since user code
// (unlike the bootstrap classes) calls across class boundaries.
type userAsm struct {
	pool    [][]byte
	utf8Idx map[string]uint16
	clsIdx  map[string]uint16

	fields  []userField
	methods []userMethod
}

type userField struct {
	name, desc string
	access     uint16
}

type userMethod struct {
	name, desc string
	access     uint16
	code       []byte
	maxStack   uint16
	maxLocals  uint16
}

func newUserAsm() *userAsm {
	return &userAsm{pool: [][]byte{nil}, utf8Idx: map[string]uint16{}, clsIdx: map[string]uint16{}}
}

func (a *userAsm) add(b []byte) uint16 {
	a.pool = append(a.pool, b)
	return uint16(len(a.pool) - 1)
}

func (a *userAsm) utf8(s string) uint16 {
	if idx, ok := a.utf8Idx[s]; ok {
		return idx
	}
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagUtf8)
	binary.Write(&buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	idx := a.add(buf.Bytes())
	a.utf8Idx[s] = idx
	return idx
}

func (a *userAsm) class(name string) uint16 {
	if idx, ok := a.clsIdx[name]; ok {
		return idx
	}
	nameIdx := a.utf8(name)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagClass)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	idx := a.add(buf.Bytes())
	a.clsIdx[name] = idx
	return idx
}

func (a *userAsm) nameAndType(name, desc string) uint16 {
	nameIdx := a.utf8(name)
	descIdx := a.utf8(desc)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagNameAndType)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	binary.Write(&buf, binary.BigEndian, descIdx)
	return a.add(buf.Bytes())
}

func (a *userAsm) fieldref(class, name, desc string) uint16 {
	classIdx := a.class(class)
	natIdx := a.nameAndType(name, desc)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagFieldref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	return a.add(buf.Bytes())
}

func (a *userAsm) methodref(class, name, desc string) uint16 {
	classIdx := a.class(class)
	natIdx := a.nameAndType(name, desc)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagMethodref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	return a.add(buf.Bytes())
}

func (a *userAsm) stringConst(s string) uint16 {
	strIdx := a.utf8(s)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagString)
	binary.Write(&buf, binary.BigEndian, strIdx)
	return a.add(buf.Bytes())
}

func (a *userAsm) field(name, desc string, access uint16) {
	a.fields = append(a.fields, userField{name: name, desc: desc, access: access})
}

func (a *userAsm) method(name, desc string, access uint16, code []byte, maxStack, maxLocals uint16) {
	a.methods = append(a.methods, userMethod{name: name, desc: desc, access: access, code: code, maxStack: maxStack, maxLocals: maxLocals})
}

func (a *userAsm) build(t *testing.T, thisName, superName string) []byte {
	t.Helper()
	thisIdx := a.class(thisName)
	var superIdx uint16
	if superName != "" {
		superIdx = a.class(superName)
	}

	fieldBlobs := make([][]byte, len(a.fields))
	for i, f := range a.fields {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, f.access)
		binary.Write(&buf, binary.BigEndian, a.utf8(f.name))
		binary.Write(&buf, binary.BigEndian, a.utf8(f.desc))
		binary.Write(&buf, binary.BigEndian, uint16(0))
		fieldBlobs[i] = buf.Bytes()
	}

	codeAttrName := a.utf8("Code")
	methodBlobs := make([][]byte, len(a.methods))
	for i, m := range a.methods {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, m.access)
		binary.Write(&buf, binary.BigEndian, a.utf8(m.name))
		binary.Write(&buf, binary.BigEndian, a.utf8(m.desc))
		var code bytes.Buffer
		binary.Write(&code, binary.BigEndian, m.maxStack)
		binary.Write(&code, binary.BigEndian, m.maxLocals)
		binary.Write(&code, binary.BigEndian, uint32(len(m.code)))
		code.Write(m.code)
		binary.Write(&code, binary.BigEndian, uint16(0)) // exception_table_length
		binary.Write(&code, binary.BigEndian, uint16(0)) // attributes_count

		binary.Write(&buf, binary.BigEndian, uint16(1))
		binary.Write(&buf, binary.BigEndian, codeAttrName)
		binary.Write(&buf, binary.BigEndian, uint32(code.Len()))
		buf.Write(code.Bytes())
		methodBlobs[i] = buf.Bytes()
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(52))

	binary.Write(&out, binary.BigEndian, uint16(len(a.pool)))
	for _, e := range a.pool[1:] {
		out.Write(e)
	}

	binary.Write(&out, binary.BigEndian, uint16(classfile.AccPublic|classfile.AccSuper))
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)

	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count

	binary.Write(&out, binary.BigEndian, uint16(len(fieldBlobs)))
	for _, b := range fieldBlobs {
		out.Write(b)
	}

	binary.Write(&out, binary.BigEndian, uint16(len(methodBlobs)))
	for _, b := range methodBlobs {
		out.Write(b)
	}

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count
	return out.Bytes()
}

func userClasses(m map[string][]byte) vm.BytesFor {
	return func(name string) ([]byte, bool, error) {
		data, ok := m[name]
		return data, ok, nil
	}
}

func TestNewBootstrapsCoreClasses(t *testing.T) {
	m, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"java/lang/Object", "java/lang/Class", "java/lang/String", "java/lang/Throwable", "java/lang/System"} {
		if _, ok := m.Loader.Loaded(name); !ok {
			t.Errorf("bootstrap class %s was not loaded by New", name)
		}
	}
}

func TestRunMainReturnsExitCodeFromSystemExit(t *testing.T) {
	a := newUserAsm()
	exitRef := a.methodref("java/lang/System", "exit", "(I)V")
	hi, lo := byte(exitRef>>8), byte(exitRef)
	a.method("main", "([Ljava/lang/String;)V", classfile.AccPublic|classfile.AccStatic, []byte{
		0x10, 42, // bipush 42
		0xb8, hi, lo, // invokestatic System.exit(I)V
		0xb1, // return (unreached)
	}, 1, 1)
	data := a.build(t, "Main", "java/lang/Object")

	m, err := New(userClasses(map[string][]byte{"Main": data}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	code, err := m.RunMain("Main", nil)
	if err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if code != 42 {
		t.Errorf("RunMain code = %d, want 42", code)
	}
}

func TestRunMainReturnsOneOnUncaughtException(t *testing.T) {
	a := newUserAsm()
	excClsIdx := a.class("java/lang/RuntimeException")
	initRef := a.methodref("java/lang/RuntimeException", "<init>", "()V")
	ch, cl := byte(excClsIdx>>8), byte(excClsIdx)
	ih, il := byte(initRef>>8), byte(initRef)
	a.method("main", "([Ljava/lang/String;)V", classfile.AccPublic|classfile.AccStatic, []byte{
		0xbb, ch, cl, // new RuntimeException
		0x59,         // dup
		0xb7, ih, il, // invokespecial <init>()V
		0xbf, // athrow
	}, 2, 1)
	data := a.build(t, "Main", "java/lang/Object")

	m, err := New(userClasses(map[string][]byte{"Main": data}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	code, err := m.RunMain("Main", nil)
	if err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if code != 1 {
		t.Errorf("RunMain code = %d, want 1 for an uncaught exception", code)
	}
}

func TestRunMainPassesArgsAsJavaStringArray(t *testing.T) {
	a := newUserAsm()
	a.field("argc", "I", classfile.AccStatic)
	argcRef := a.fieldref("Main", "argc", "I")
	ah, al := byte(argcRef>>8), byte(argcRef)
	a.method("main", "([Ljava/lang/String;)V", classfile.AccPublic|classfile.AccStatic, []byte{
		0x2a,         // aload_0
		0xbe,         // arraylength
		0xb3, ah, al, // putstatic Main.argc
		0xb1, // return
	}, 1, 1)
	data := a.build(t, "Main", "java/lang/Object")

	m, err := New(userClasses(map[string][]byte{"Main": data}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	code, err := m.RunMain("Main", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if code != 0 {
		t.Fatalf("RunMain code = %d, want 0", code)
	}

	cls, ok := m.Loader.Loaded("Main")
	if !ok {
		t.Fatal("Main was not left loaded after RunMain")
	}
	idx, holder, ok := cls.StaticIndex("argc")
	if !ok {
		t.Fatal("argc static not found")
	}
	if got := holder.GetStatic(idx).Int32(); got != 3 {
		t.Errorf("argc = %d, want 3", got)
	}
}

// TestRunMainUnsafeCompareAndSetMutatesInstanceField exercises the
// jdk/internal/misc/Unsafe supplement end to end: resolve an instance
// field's offset by name via objectFieldOffset1, then flip it with
// compareAndSetInt, and confirm the mutation landed on the real
// instance field rather than some side channel.
func TestRunMainUnsafeCompareAndSetMutatesInstanceField(t *testing.T) {
	a := newUserAsm()
	a.field("counter", "I", classfile.AccPublic)
	a.field("success", "I", classfile.AccStatic)
	a.field("after", "I", classfile.AccStatic)

	mainClsIdx := a.class("Main")
	unsafeClsIdx := a.class("jdk/internal/misc/Unsafe")
	mainInitRef := a.methodref("Main", "<init>", "()V")
	objInitRef := a.methodref("java/lang/Object", "<init>", "()V")
	unsafeInitRef := a.methodref("jdk/internal/misc/Unsafe", "<init>", "()V")
	counterNameIdx := a.stringConst("counter")
	offsetRef := a.methodref("jdk/internal/misc/Unsafe", "objectFieldOffset1", "(Ljava/lang/Class;Ljava/lang/String;)J")
	casRef := a.methodref("jdk/internal/misc/Unsafe", "compareAndSetInt", "(Ljava/lang/Object;JII)Z")
	successRef := a.fieldref("Main", "success", "I")
	counterRef := a.fieldref("Main", "counter", "I")
	afterRef := a.fieldref("Main", "after", "I")

	u16 := func(idx uint16) (byte, byte) { return byte(idx >> 8), byte(idx) }

	oih, oil := u16(objInitRef)
	a.method("<init>", "()V", classfile.AccPublic,
		[]byte{0x2a, 0xb7, oih, oil, 0xb1}, // aload_0; invokespecial Object.<init>; return
		1, 1)

	var code []byte
	emit := func(b ...byte) { code = append(code, b...) }
	mh, ml := u16(mainClsIdx)
	emit(0xbb, mh, ml) // new Main
	emit(0x59)         // dup
	ih, il := u16(mainInitRef)
	emit(0xb7, ih, il) // invokespecial Main.<init>()V
	emit(0x4c)         // astore_1

	uh, ul := u16(unsafeClsIdx)
	emit(0xbb, uh, ul) // new jdk/internal/misc/Unsafe
	emit(0x59)         // dup
	uih, uil := u16(unsafeInitRef)
	emit(0xb7, uih, uil) // invokespecial Unsafe.<init>()V
	emit(0x4d)           // astore_2

	emit(0x2c) // aload_2 (unsafe)
	ch, cl := u16(mainClsIdx)
	emit(0x13, ch, cl) // ldc_w Main.class
	nh, nl := u16(counterNameIdx)
	emit(0x13, nh, nl) // ldc_w "counter"
	oh, ol := u16(offsetRef)
	emit(0xb6, oh, ol) // invokevirtual objectFieldOffset1
	emit(0x42)         // lstore_3

	emit(0x2c) // aload_2 (unsafe)
	emit(0x2b) // aload_1 (target)
	emit(0x21) // lload_3 (offset)
	emit(0x03) // iconst_0 (expected)
	emit(0x04) // iconst_1 (desired)
	cah, cal := u16(casRef)
	emit(0xb6, cah, cal) // invokevirtual compareAndSetInt
	sh, sl := u16(successRef)
	emit(0xb3, sh, sl) // putstatic Main.success

	emit(0x2b) // aload_1 (target)
	cfh, cfl := u16(counterRef)
	emit(0xb4, cfh, cfl) // getfield Main.counter
	afh, afl := u16(afterRef)
	emit(0xb3, afh, afl) // putstatic Main.after

	emit(0xb1) // return
	a.method("main", "([Ljava/lang/String;)V", classfile.AccPublic|classfile.AccStatic, code, 6, 5)

	data := a.build(t, "Main", "java/lang/Object")
	m, err := New(userClasses(map[string][]byte{"Main": data}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if code, err := m.RunMain("Main", nil); err != nil || code != 0 {
		t.Fatalf("RunMain: code=%d err=%v", code, err)
	}

	cls, _ := m.Loader.Loaded("Main")
	successIdx, holder, ok := cls.StaticIndex("success")
	if !ok {
		t.Fatal("success static not found")
	}
	if got := holder.GetStatic(successIdx).Int32(); got != 1 {
		t.Errorf("success = %d, want 1 (CAS expected 0 against a zero-initialized field)", got)
	}
	afterIdx, afterHolder, ok := cls.StaticIndex("after")
	if !ok {
		t.Fatal("after static not found")
	}
	if got := afterHolder.GetStatic(afterIdx).Int32(); got != 1 {
		t.Errorf("after = %d, want 1 (CAS should have written through to the real instance field)", got)
	}
}

func TestRunMainInvokesBootstrapStringNative(t *testing.T) {
	a := newUserAsm()
	a.field("len", "I", classfile.AccStatic)
	strIdx := a.stringConst("hello")
	lengthRef := a.methodref("java/lang/String", "length", "()I")
	lenFieldRef := a.fieldref("Main", "len", "I")
	sh, sl := byte(strIdx>>8), byte(strIdx)
	mh, ml := byte(lengthRef>>8), byte(lengthRef)
	fh, fl := byte(lenFieldRef>>8), byte(lenFieldRef)
	a.method("main", "([Ljava/lang/String;)V", classfile.AccPublic|classfile.AccStatic, []byte{
		0x13, sh, sl, // ldc_w "hello"
		0xb6, mh, ml, // invokevirtual String.length()I
		0xb3, fh, fl, // putstatic Main.len
		0xb1, // return
	}, 1, 1)
	data := a.build(t, "Main", "java/lang/Object")

	m, err := New(userClasses(map[string][]byte{"Main": data}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if code, err := m.RunMain("Main", nil); err != nil || code != 0 {
		t.Fatalf("RunMain: code=%d err=%v", code, err)
	}

	cls, _ := m.Loader.Loaded("Main")
	idx, holder, ok := cls.StaticIndex("len")
	if !ok {
		t.Fatal("len static not found")
	}
	if got := holder.GetStatic(idx).Int32(); got != 5 {
		t.Errorf("len = %d, want 5 (len(\"hello\"))", got)
	}
}
