package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

const classMagic = 0xCAFEBABE

// Parse decodes raw classfile bytes into a ClassFile tree (C1). name is
// carried through every error for diagnostics; it need not be the class's
// own declared name (that isn't known until the constant pool is parsed).
func Parse(name string, data []byte) (*ClassFile, error) {
	r := &countingReader{r: newByteReader(data), total: len(data)}
	cf := &ClassFile{Name: name}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, newFormatError(name, "magic number", err)
	}
	if magic != classMagic {
		return nil, newFormatError(name, "magic number", fmt.Errorf("got 0x%08X, want 0xCAFEBABE", magic))
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, newFormatError(name, "minor_version", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, newFormatError(name, "major_version", err)
	}
	if cf.MajorVersion < MinSupportedMajor || cf.MajorVersion > MaxSupportedMajor {
		return nil, newFormatError(name, "major_version",
			fmt.Errorf("unsupported major version %d (supported: %d-%d)", cf.MajorVersion, MinSupportedMajor, MaxSupportedMajor))
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, newFormatError(name, "constant_pool_count", err)
	}
	pool, err := parseConstantPool(name, r, cpCount)
	if err != nil {
		return nil, err
	}
	cf.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, newFormatError(name, "access_flags", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, newFormatError(name, "this_class", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, newFormatError(name, "super_class", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, newFormatError(name, "interfaces_count", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, newFormatError(name, fmt.Sprintf("interface %d", i), err)
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, newFormatError(name, "fields_count", err)
	}
	cf.Fields, err = parseFields(name, r, pool, fieldsCount)
	if err != nil {
		return nil, err
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, newFormatError(name, "methods_count", err)
	}
	cf.Methods, err = parseMethods(name, r, pool, methodsCount)
	if err != nil {
		return nil, err
	}

	if err := cf.parseClassAttributes(name, r); err != nil {
		return nil, err
	}

	if r.remaining() != 0 {
		return nil, newFormatError(name, "trailing data", fmt.Errorf("%d bytes left after classfile structure", r.remaining()))
	}

	return cf, nil
}

func parseFields(className string, r *countingReader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := range fields {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("field %d access_flags", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("field %d name_index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("field %d descriptor_index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("field %d attributes_count", i), err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, newFormatError(className, fmt.Sprintf("field %d name", i), err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, newFormatError(className, fmt.Sprintf("field %d descriptor", i), err)
		}
		attrs, err := parseAttributeInfos(className, r, pool, attrCount)
		if err != nil {
			return nil, err
		}

		f := FieldInfo{AccessFlags: accessFlags, Name: name, Descriptor: desc, Attributes: attrs}
		for _, attr := range attrs {
			if attr.Name == "ConstantValue" && len(attr.Data) == 2 {
				idx := uint16(attr.Data[0])<<8 | uint16(attr.Data[1])
				entry, err := get(pool, idx)
				if err == nil {
					f.ConstantValue = entry
					f.HasConstantVal = true
				}
			}
		}
		fields[i] = f
	}
	return fields, nil
}

func parseMethods(className string, r *countingReader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := range methods {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("method %d access_flags", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("method %d name_index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("method %d descriptor_index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("method %d attributes_count", i), err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, newFormatError(className, fmt.Sprintf("method %d name", i), err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, newFormatError(className, fmt.Sprintf("method %d descriptor", i), err)
		}
		attrs, err := parseAttributeInfos(className, r, pool, attrCount)
		if err != nil {
			return nil, err
		}

		m := MethodInfo{AccessFlags: accessFlags, Name: name, Descriptor: desc, Attributes: attrs}
		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(className, attr.Data)
				if err != nil {
					return nil, err
				}
				m.Code = code
				break
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(className string, r *countingReader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("attribute %d name_index", i), err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("attribute %d length", i), err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, newFormatError(className, fmt.Sprintf("attribute %d data", i), err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, newFormatError(className, fmt.Sprintf("attribute %d name", i), err)
		}
		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(className string, data []byte) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, newFormatError(className, "Code attribute", fmt.Errorf("too short: %d bytes", len(data)))
	}

	maxStack := u16(data, 0)
	maxLocals := u16(data, 2)
	codeLength := u32(data, 4)

	if len(data) < 8+int(codeLength) {
		return nil, newFormatError(className, "Code attribute", fmt.Errorf("too short for code_length %d", codeLength))
	}
	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])

	offset := 8 + int(codeLength)
	if offset+2 > len(data) {
		return nil, newFormatError(className, "Code attribute", fmt.Errorf("truncated before exception_table_length"))
	}
	exTableLen := u16(data, offset)
	offset += 2
	handlers := make([]ExceptionHandler, exTableLen)
	for i := range handlers {
		if offset+8 > len(data) {
			return nil, newFormatError(className, "Code attribute", fmt.Errorf("truncated exception table at entry %d", i))
		}
		handlers[i] = ExceptionHandler{
			StartPC:   u16(data, offset),
			EndPC:     u16(data, offset+2),
			HandlerPC: u16(data, offset+4),
			CatchType: u16(data, offset+6),
		}
		offset += 8
	}

	var codeAttrs []AttributeInfo
	if offset+2 <= len(data) {
		attrCount := u16(data, offset)
		offset += 2
		codeAttrs = make([]AttributeInfo, 0, attrCount)
		for i := uint16(0); i < attrCount && offset+6 <= len(data); i++ {
			length := u32(data, offset+2)
			end := offset + 6 + int(length)
			if end > len(data) {
				break
			}
			codeAttrs = append(codeAttrs, AttributeInfo{Data: data[offset+6 : end]})
			offset = end
		}
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
		Attributes:        codeAttrs,
	}, nil
}

func (cf *ClassFile) parseClassAttributes(className string, r *countingReader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return newFormatError(className, "attributes_count", err)
	}
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return newFormatError(className, fmt.Sprintf("class attribute %d name_index", i), err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return newFormatError(className, fmt.Sprintf("class attribute %d length", i), err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return newFormatError(className, fmt.Sprintf("class attribute %d data", i), err)
		}
		name, err := GetUtf8(cf.ConstantPool, nameIndex)
		if err != nil {
			continue // unresolvable attribute name: skip, not fatal
		}
		switch name {
		case "BootstrapMethods":
			cf.BootstrapMethods, err = parseBootstrapMethods(data)
			if err != nil {
				return newFormatError(className, "BootstrapMethods", err)
			}
		case "SourceFile":
			if len(data) == 2 {
				if sf, err := GetUtf8(cf.ConstantPool, u16(data, 0)); err == nil {
					cf.SourceFile = sf
				}
			}
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data too short")
	}
	numMethods := u16(data, 0)
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := range methods {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("truncated at method %d", i)
		}
		methodRef := u16(data, offset)
		numArgs := u16(data, offset+2)
		offset += 4
		args := make([]uint16, numArgs)
		for j := range args {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("truncated at arg %d of method %d", j, i)
			}
			args[j] = u16(data, offset)
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

// ClassName returns the fully qualified (slash-form) name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// SuperClassName returns the superclass's name, or "" if there is none
// (this is java/lang/Object itself, per §3).
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return GetClassName(cf.ConstantPool, cf.SuperClass)
}

// FindMethod finds a method by exact name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// IsInterface reports whether this classfile declares an interface.
func (cf *ClassFile) IsInterface() bool { return cf.AccessFlags&AccInterface != 0 }

func u16(data []byte, off int) uint16 { return uint16(data[off])<<8 | uint16(data[off+1]) }
func u32(data []byte, off int) uint32 {
	return uint32(data[off])<<24 | uint32(data[off+1])<<16 | uint32(data[off+2])<<8 | uint32(data[off+3])
}
