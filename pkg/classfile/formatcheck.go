package classfile

import "fmt"

// FormatCheck runs the format-checking pass described in §4.2: for every
// composite constant pool entry, verify its referenced indices exist and
// carry the expected tag. It runs after the whole classfile has been
// parsed (the loader calls it once, lazily, before computing layout).
func FormatCheck(cf *ClassFile) error {
	pool := cf.ConstantPool
	for i := 1; i < len(pool); i++ {
		entry := pool[i]
		if entry == nil {
			continue
		}
		if err := checkEntry(pool, uint16(i), entry); err != nil {
			return newFormatError(cf.Name, fmt.Sprintf("constant pool index %d", i), err)
		}
	}
	if _, err := get(pool, cf.ThisClass); err != nil {
		return newFormatError(cf.Name, "this_class", err)
	}
	if cf.SuperClass != 0 {
		if e, err := get(pool, cf.SuperClass); err != nil {
			return newFormatError(cf.Name, "super_class", err)
		} else if e.Tag() != TagClass {
			return newFormatError(cf.Name, "super_class", fmt.Errorf("index %d is not a Class entry", cf.SuperClass))
		}
	}
	return nil
}

func checkEntry(pool []ConstantPoolEntry, idx uint16, entry ConstantPoolEntry) error {
	expect := func(i uint16, tag uint8, label string) error {
		e, err := get(pool, i)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if e.Tag() != tag {
			return fmt.Errorf("%s: index %d has tag %d, want %d", label, i, e.Tag(), tag)
		}
		return nil
	}

	switch e := entry.(type) {
	case *ConstantClass:
		return expect(e.NameIndex, TagUtf8, "Class.name_index")
	case *ConstantString:
		return expect(e.StringIndex, TagUtf8, "String.string_index")
	case *ConstantFieldref:
		if err := expect(e.ClassIndex, TagClass, "Fieldref.class_index"); err != nil {
			return err
		}
		return expect(e.NameAndTypeIndex, TagNameAndType, "Fieldref.name_and_type_index")
	case *ConstantMethodref:
		if err := expect(e.ClassIndex, TagClass, "Methodref.class_index"); err != nil {
			return err
		}
		return expect(e.NameAndTypeIndex, TagNameAndType, "Methodref.name_and_type_index")
	case *ConstantInterfaceMethodref:
		if err := expect(e.ClassIndex, TagClass, "InterfaceMethodref.class_index"); err != nil {
			return err
		}
		return expect(e.NameAndTypeIndex, TagNameAndType, "InterfaceMethodref.name_and_type_index")
	case *ConstantNameAndType:
		if err := expect(e.NameIndex, TagUtf8, "NameAndType.name_index"); err != nil {
			return err
		}
		return expect(e.DescriptorIndex, TagUtf8, "NameAndType.descriptor_index")
	case *ConstantMethodHandle:
		ref, err := get(pool, e.ReferenceIndex)
		if err != nil {
			return fmt.Errorf("MethodHandle.reference_index: %w", err)
		}
		switch e.ReferenceKind {
		case RefGetField, RefGetStatic, RefPutField, RefPutStatic:
			if ref.Tag() != TagFieldref {
				return fmt.Errorf("MethodHandle.reference_index: index %d has tag %d, want Fieldref", e.ReferenceIndex, ref.Tag())
			}
		default:
			if ref.Tag() != TagMethodref && ref.Tag() != TagInterfaceMethodref {
				return fmt.Errorf("MethodHandle.reference_index: index %d has tag %d, want Methodref/InterfaceMethodref", e.ReferenceIndex, ref.Tag())
			}
		}
		return nil
	case *ConstantMethodType:
		return expect(e.DescriptorIndex, TagUtf8, "MethodType.descriptor_index")
	case *ConstantDynamic:
		return expect(e.NameAndTypeIndex, TagNameAndType, "Dynamic.name_and_type_index")
	case *ConstantInvokeDynamic:
		return expect(e.NameAndTypeIndex, TagNameAndType, "InvokeDynamic.name_and_type_index")
	case *ConstantModule:
		return expect(e.NameIndex, TagUtf8, "Module.name_index")
	case *ConstantPackage:
		return expect(e.NameIndex, TagUtf8, "Package.name_index")
	}
	_ = idx
	return nil
}
