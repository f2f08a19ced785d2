package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// Constant pool tags (§6).
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// MethodHandle reference kinds (needed only to decode, never to execute).
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is unused. Long/Double push a
// reservedSlot at the following index per §3.
func parseConstantPool(className string, r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("constant pool tag at index %d", i), err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Utf8 length at index %d", i), err)
			}
			raw := make([]byte, length)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Utf8 bytes at index %d", i), err)
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Utf8 bytes at index %d", i), err)
			}
			pool[i] = &ConstantUtf8{Value: s}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Integer at index %d", i), err)
			}
			pool[i] = &ConstantInteger{Value: val}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Float at index %d", i), err)
			}
			pool[i] = &ConstantFloat{Value: math.Float32frombits(bits)}

		case TagLong:
			var val int64
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Long at index %d", i), err)
			}
			pool[i] = &ConstantLong{Value: val}
			i++
			if i < count {
				pool[i] = reservedSlot{}
			}

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Double at index %d", i), err)
			}
			pool[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			i++
			if i < count {
				pool[i] = reservedSlot{}
			}

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Class at index %d", i), err)
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("String at index %d", i), err)
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref:
			classIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Fieldref at index %d", i), err)
			}
			pool[i] = &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagMethodref:
			classIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Methodref at index %d", i), err)
			}
			pool[i] = &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagInterfaceMethodref:
			classIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("InterfaceMethodref at index %d", i), err)
			}
			pool[i] = &ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagNameAndType:
			nameIndex, descIndex, err := readTwoU16(r)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("NameAndType at index %d", i), err)
			}
			pool[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			var kind uint8
			if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("MethodHandle at index %d", i), err)
			}
			var refIndex uint16
			if err := binary.Read(r, binary.BigEndian, &refIndex); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("MethodHandle at index %d", i), err)
			}
			pool[i] = &ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: refIndex}

		case TagMethodType:
			var descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("MethodType at index %d", i), err)
			}
			pool[i] = &ConstantMethodType{DescriptorIndex: descIndex}

		case TagDynamic:
			bsmIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Dynamic at index %d", i), err)
			}
			pool[i] = &ConstantDynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		case TagInvokeDynamic:
			bsmIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, newFormatError(className, fmt.Sprintf("InvokeDynamic at index %d", i), err)
			}
			pool[i] = &ConstantInvokeDynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		case TagModule:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Module at index %d", i), err)
			}
			pool[i] = &ConstantModule{NameIndex: nameIndex}

		case TagPackage:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, newFormatError(className, fmt.Sprintf("Package at index %d", i), err)
			}
			pool[i] = &ConstantPackage{NameIndex: nameIndex}

		default:
			return nil, newFormatError(className, fmt.Sprintf("constant pool index %d", i), fmt.Errorf("unknown tag %d", tag))
		}
	}

	return pool, nil
}

func readTwoU16(r io.Reader) (uint16, uint16, error) {
	var a, b uint16
	if err := binary.Read(r, binary.BigEndian, &a); err != nil {
		return 0, 0, err
	}
	if err := binary.Read(r, binary.BigEndian, &b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// get returns the entry at 1-based index i (§4.2's `get`).
func get(pool []ConstantPoolEntry, i uint16) (ConstantPoolEntry, error) {
	if i == 0 || int(i) >= len(pool) {
		return nil, fmt.Errorf("constant pool index %d out of range (pool size %d)", i, len(pool))
	}
	e := pool[i]
	if e == nil {
		return nil, fmt.Errorf("constant pool index %d is empty", i)
	}
	if _, reserved := e.(reservedSlot); reserved {
		return nil, fmt.Errorf("constant pool index %d is a reserved slot (second half of a Long/Double)", i)
	}
	return e, nil
}

// GetUtf8 decodes the Utf8 entry at index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := get(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := e.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, e.Tag())
	}
	return utf8.Value, nil
}

// GetClassName resolves a CONSTANT_Class entry to its (slash-form) name.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	e, err := get(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := e.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// NameAndTypeInfo holds a resolved NameAndType entry.
type NameAndTypeInfo struct {
	Name       string
	Descriptor string
}

func resolveNameAndType(pool []ConstantPoolEntry, index uint16) (*NameAndTypeInfo, error) {
	e, err := get(pool, index)
	if err != nil {
		return nil, err
	}
	nat, ok := e.(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving NameAndType name: %w", err)
	}
	desc, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving NameAndType descriptor: %w", err)
	}
	return &NameAndTypeInfo{Name: name, Descriptor: desc}, nil
}

// MethodRefInfo holds a resolved Methodref/InterfaceMethodref entry.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	e, err := get(pool, index)
	if err != nil {
		return nil, err
	}
	mref, ok := e.(*ConstantMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
	}
	return resolveRefParts(pool, mref.ClassIndex, mref.NameAndTypeIndex)
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	e, err := get(pool, index)
	if err != nil {
		return nil, err
	}
	mref, ok := e.(*ConstantInterfaceMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not InterfaceMethodref", index)
	}
	return resolveRefParts(pool, mref.ClassIndex, mref.NameAndTypeIndex)
}

func resolveRefParts(pool []ConstantPoolEntry, classIndex, natIndex uint16) (*MethodRefInfo, error) {
	className, err := GetClassName(pool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving reference class: %w", err)
	}
	nat, err := resolveNameAndType(pool, natIndex)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: className, MethodName: nat.Name, Descriptor: nat.Descriptor}, nil
}

// FieldRefInfo holds a resolved Fieldref entry.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*FieldRefInfo, error) {
	e, err := get(pool, index)
	if err != nil {
		return nil, err
	}
	fref, ok := e.(*ConstantFieldref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
	}
	className, err := GetClassName(pool, fref.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Fieldref class: %w", err)
	}
	nat, err := resolveNameAndType(pool, fref.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &FieldRefInfo{ClassName: className, FieldName: nat.Name, Descriptor: nat.Descriptor}, nil
}

// GetString resolves a CONSTANT_String entry to its underlying Utf8 text.
func GetString(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := get(pool, index)
	if err != nil {
		return "", err
	}
	str, ok := e.(*ConstantString)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not String", index)
	}
	return GetUtf8(pool, str.StringIndex)
}

// decodeModifiedUTF8 decodes the JVM's "modified UTF-8" encoding (§4.1):
// ordinary UTF-8 except NUL is encoded as two bytes (0xC0 0x80) and
// supplementary characters are encoded as a surrogate pair of 3-byte
// sequences rather than one 4-byte sequence.
func decodeModifiedUTF8(raw []byte) (string, error) {
	out := make([]uint16, 0, len(raw))
	i := 0
	for i < len(raw) {
		b0 := raw[i]
		switch {
		case b0&0x80 == 0:
			out = append(out, uint16(b0))
			i++
		case b0&0xE0 == 0xC0:
			if i+1 >= len(raw) {
				return "", fmt.Errorf("truncated 2-byte UTF-8 sequence at offset %d", i)
			}
			b1 := raw[i+1]
			r := (uint16(b0&0x1F) << 6) | uint16(b1&0x3F)
			out = append(out, r)
			i += 2
		case b0&0xF0 == 0xE0:
			if i+2 >= len(raw) {
				return "", fmt.Errorf("truncated 3-byte UTF-8 sequence at offset %d", i)
			}
			b1, b2 := raw[i+1], raw[i+2]
			r := (uint16(b0&0x0F) << 12) | (uint16(b1&0x3F) << 6) | uint16(b2&0x3F)
			out = append(out, r)
			i += 3
		default:
			return "", fmt.Errorf("invalid UTF-8 lead byte 0x%02X at offset %d", b0, i)
		}
	}
	return string(utf16.Decode(out)), nil
}
