// Package bootstrap hand-assembles the handful of classfiles the core
// needs before any real classpath exists: java/lang/Object, Class,
// String, the Throwable hierarchy, System and Thread. There is no JDK
// image available to pkg/provider in this environment, so these are
// built directly as bytes, the same way pkg/classfile's own tests build
// a minimal classfile, generalized to fields, natives and trivial Code.
package bootstrap

import (
	"bytes"
	"encoding/binary"

	"github.com/govm-project/govm/pkg/classfile"
)

// asm is a tiny classfile writer. It keeps a deduplicated constant pool
// and a list of field/method specs, then serializes all of it in
// classfile.Parse's expected layout.
type asm struct {
	pool    [][]byte // serialized entries, 1-indexed; pool[0] is a placeholder
	utf8Idx map[string]uint16
	clsIdx  map[string]uint16

	fields  []fieldSpec
	methods []methodSpec
}

type fieldSpec struct {
	name, desc string
	access     uint16
}

type methodSpec struct {
	name, desc string
	access     uint16
	code       []byte
	maxStack   uint16
	maxLocals  uint16
}

func newAsm() *asm {
	return &asm{
		pool:    [][]byte{nil},
		utf8Idx: map[string]uint16{},
		clsIdx:  map[string]uint16{},
	}
}

func (a *asm) addEntry(b []byte) uint16 {
	a.pool = append(a.pool, b)
	return uint16(len(a.pool) - 1)
}

func (a *asm) utf8(s string) uint16 {
	if idx, ok := a.utf8Idx[s]; ok {
		return idx
	}
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagUtf8)
	binary.Write(&buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	idx := a.addEntry(buf.Bytes())
	a.utf8Idx[s] = idx
	return idx
}

func (a *asm) class(name string) uint16 {
	if idx, ok := a.clsIdx[name]; ok {
		return idx
	}
	nameIdx := a.utf8(name)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagClass)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	idx := a.addEntry(buf.Bytes())
	a.clsIdx[name] = idx
	return idx
}

// field declares an instance or static field. Bootstrap classes never
// carry ConstantValue attributes, so zero-initialization is always the
// right answer for them.
func (a *asm) field(name, desc string, access uint16) {
	a.fields = append(a.fields, fieldSpec{name: name, desc: desc, access: access})
}

// method declares a method. An empty code slice marks it native (no
// Code attribute at all, matching a real native method's classfile
// representation); a non-empty slice is raw bytecode for a trivial
// body (bootstrap classes only ever need "return" or "return a field").
func (a *asm) method(name, desc string, access uint16, code []byte, maxStack, maxLocals uint16) {
	a.methods = append(a.methods, methodSpec{name: name, desc: desc, access: access, code: code, maxStack: maxStack, maxLocals: maxLocals})
}

// build serializes the whole classfile. superName is empty only for
// java/lang/Object.
func (a *asm) build(thisName, superName string, interfaces []string) []byte {
	thisIdx := a.class(thisName)
	var superIdx uint16
	if superName != "" {
		superIdx = a.class(superName)
	}
	ifaceIdx := make([]uint16, len(interfaces))
	for i, n := range interfaces {
		ifaceIdx[i] = a.class(n)
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
		if len(m.code) == 0 {
			binary.Write(&buf, binary.BigEndian, uint16(0))
		} else {
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

	binary.Write(&out, binary.BigEndian, uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		binary.Write(&out, binary.BigEndian, idx)
	}

	binary.Write(&out, binary.BigEndian, uint16(len(fieldBlobs)))
	for _, b := range fieldBlobs {
		out.Write(b)
	}

	binary.Write(&out, binary.BigEndian, uint16(len(methodBlobs)))
	for _, b := range methodBlobs {
		out.Write(b)
	}

	binary.Write(&out, binary.BigEndian, uint16(0))
	return out.Bytes()
}

// opReturn is the only opcode a bootstrap classfile's bytecode ever
// needs (Object's no-arg constructor body), named rather than left as a
// magic number even though this package never imports the interpreter's
// own opcode table (that would make pkg/govm depend on pkg/vm's
// internals instead of just its exported surface).
const opReturn = 0xb1
