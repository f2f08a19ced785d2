package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/govm-project/govm/pkg/classfile"
)

// testAsm hand-assembles classfile bytes for interpreter-level tests,
// the same byte-assembly idiom pkg/classfile/parser_test.go's
// buildMinimalClass uses and pkg/govm/bootstrap/asm.go generalizes,
// extended here with method/field refs and exception handlers since
// these tests need to actually run bytecode, not just parse a shell
// classfile.
type testAsm struct {
	pool    [][]byte
	utf8Idx map[string]uint16
	clsIdx  map[string]uint16
	natIdx  map[[2]string]uint16

	fields  []testField
	methods []testMethod
}

type testField struct {
	name, desc string
	access     uint16
	constInt   *int32
	constIdx   *uint16 // pre-built constant pool index (e.g. a CONSTANT_String), overrides constInt
}

type testMethod struct {
	name, desc string
	access     uint16
	code       []byte
	maxStack   uint16
	maxLocals  uint16
	handlers   []classfile.ExceptionHandler
}

func newTestAsm() *testAsm {
	return &testAsm{
		pool:    [][]byte{nil},
		utf8Idx: map[string]uint16{},
		clsIdx:  map[string]uint16{},
		natIdx:  map[[2]string]uint16{},
	}
}

func (a *testAsm) add(b []byte) uint16 {
	a.pool = append(a.pool, b)
	return uint16(len(a.pool) - 1)
}

func (a *testAsm) utf8(s string) uint16 {
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

func (a *testAsm) class(name string) uint16 {
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

func (a *testAsm) nameAndType(name, desc string) uint16 {
	key := [2]string{name, desc}
	if idx, ok := a.natIdx[key]; ok {
		return idx
	}
	nameIdx := a.utf8(name)
	descIdx := a.utf8(desc)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagNameAndType)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	binary.Write(&buf, binary.BigEndian, descIdx)
	idx := a.add(buf.Bytes())
	a.natIdx[key] = idx
	return idx
}

func (a *testAsm) fieldref(class, name, desc string) uint16 {
	classIdx := a.class(class)
	natIdx := a.nameAndType(name, desc)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagFieldref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	return a.add(buf.Bytes())
}

func (a *testAsm) methodref(class, name, desc string) uint16 {
	classIdx := a.class(class)
	natIdx := a.nameAndType(name, desc)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagMethodref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	return a.add(buf.Bytes())
}

func (a *testAsm) intConst(v int32) uint16 {
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagInteger)
	binary.Write(&buf, binary.BigEndian, v)
	return a.add(buf.Bytes())
}

func (a *testAsm) stringConst(s string) uint16 {
	strIdx := a.utf8(s)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagString)
	binary.Write(&buf, binary.BigEndian, strIdx)
	return a.add(buf.Bytes())
}

func (a *testAsm) field(name, desc string, access uint16) {
	a.fields = append(a.fields, testField{name: name, desc: desc, access: access})
}

func (a *testAsm) fieldWithConstInt(name, desc string, access uint16, v int32) {
	a.fields = append(a.fields, testField{name: name, desc: desc, access: access, constInt: &v})
}

// fieldWithConstIdx declares a static field whose ConstantValue attribute
// points directly at an already-built constant pool entry (used for
// CONSTANT_String ConstantValues, which intConst/stringConst don't cover
// since the field helper above only takes a raw int32).
func (a *testAsm) fieldWithConstIdx(name, desc string, access uint16, idx uint16) {
	a.fields = append(a.fields, testField{name: name, desc: desc, access: access, constIdx: &idx})
}

func (a *testAsm) method(name, desc string, access uint16, code []byte, maxStack, maxLocals uint16, handlers ...classfile.ExceptionHandler) {
	a.methods = append(a.methods, testMethod{name: name, desc: desc, access: access, code: code, maxStack: maxStack, maxLocals: maxLocals, handlers: handlers})
}

func (a *testAsm) build(t *testing.T, thisName, superName string) []byte {
	t.Helper()
	thisIdx := a.class(thisName)
	var superIdx uint16
	if superName != "" {
		superIdx = a.class(superName)
	}

	constValAttrName := a.utf8("ConstantValue")
	fieldBlobs := make([][]byte, len(a.fields))
	for i, f := range a.fields {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, f.access)
		binary.Write(&buf, binary.BigEndian, a.utf8(f.name))
		binary.Write(&buf, binary.BigEndian, a.utf8(f.desc))
		switch {
		case f.constIdx != nil:
			binary.Write(&buf, binary.BigEndian, uint16(1))
			binary.Write(&buf, binary.BigEndian, constValAttrName)
			binary.Write(&buf, binary.BigEndian, uint32(2))
			binary.Write(&buf, binary.BigEndian, *f.constIdx)
		case f.constInt != nil:
			cvIdx := a.intConst(*f.constInt)
			binary.Write(&buf, binary.BigEndian, uint16(1))
			binary.Write(&buf, binary.BigEndian, constValAttrName)
			binary.Write(&buf, binary.BigEndian, uint32(2))
			binary.Write(&buf, binary.BigEndian, cvIdx)
		default:
			binary.Write(&buf, binary.BigEndian, uint16(0))
		}
		fieldBlobs[i] = buf.Bytes()
	}

	codeAttrName := a.utf8("Code")
	methodBlobs := make([][]byte, len(a.methods))
	for i, m := range a.methods {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, m.access)
		binary.Write(&buf, binary.BigEndian, a.utf8(m.name))
		binary.Write(&buf, binary.BigEndian, a.utf8(m.desc))
		if m.code == nil {
			binary.Write(&buf, binary.BigEndian, uint16(0))
		} else {
			var code bytes.Buffer
			binary.Write(&code, binary.BigEndian, m.maxStack)
			binary.Write(&code, binary.BigEndian, m.maxLocals)
			binary.Write(&code, binary.BigEndian, uint32(len(m.code)))
			code.Write(m.code)
			binary.Write(&code, binary.BigEndian, uint16(len(m.handlers)))
			for _, h := range m.handlers {
				binary.Write(&code, binary.BigEndian, h.StartPC)
				binary.Write(&code, binary.BigEndian, h.EndPC)
				binary.Write(&code, binary.BigEndian, h.HandlerPC)
				binary.Write(&code, binary.BigEndian, h.CatchType)
			}
			binary.Write(&code, binary.BigEndian, uint16(0)) // attributes_count

			binary.Write(&buf, binary.BigEndian, uint16(1))
			binary.Write(&buf, binary.BigEndian, codeAttrName)
			binary.Write(&buf, binary.BigEndian, uint32(code.Len()))
			buf.Write(code.Bytes())
		}
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
