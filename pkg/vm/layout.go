package vm

import (
	"fmt"

	"github.com/govm-project/govm/pkg/classfile"
)

// PtrWidth is the reference/array-handle width used by the layout engine
// (§4.4: "reference = pointer width"). We target 64-bit hosts.
const PtrWidth = 8

// headerSize is the conceptual byte size of the common Object header
// (§3: class, super_class, ref_count, lock) that every instance field
// offset is computed relative to (§4.4: "start with the base header layout").
const headerSize = 24

// FieldLayout is one instance field's placement (§4.4).
type FieldLayout struct {
	Name   string
	Type   *classfile.FieldType
	Offset int // header-relative byte offset; stable for the process lifetime
	Slot   int // index into Object.fields; our concrete storage scheme (see heap.go)
}

// InstanceLayout is the full computed layout for a class (§4.4), including
// inherited fields folded in at lower offsets than the subclass's own.
type InstanceLayout struct {
	Size        int // total instance size including the header, aligned
	Fields      []FieldLayout
	byName      map[string]*FieldLayout
	offsetIndex map[int]*FieldLayout
}

// FieldByName looks up an instance field (including inherited ones) by
// name for getfield/putfield resolution.
func (l *InstanceLayout) FieldByName(name string) (*FieldLayout, bool) {
	f, ok := l.byName[name]
	return f, ok
}

// FieldAtOffset looks up a field by its header-relative byte offset, used
// by Unsafe's offset-based accessors (§4.5, §9).
func (l *InstanceLayout) FieldAtOffset(offset int) (*FieldLayout, bool) {
	f, ok := l.offsetIndex[offset]
	return f, ok
}

// StaticField is one static field's storage slot (§4.4).
type StaticField struct {
	Name  string
	Type  *classfile.FieldType
	Value Value
	Final bool
}

func sizeAndAlign(t *classfile.FieldType) (size, align int) {
	s := t.Size(PtrWidth)
	return s, s // every JVM primitive/reference width is its own natural alignment
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// ComputeLayout implements §4.4's algorithm: fold the superclass's layout
// into the base region, then place each of this class's own instance
// fields (declaration order) at the next aligned offset.
func ComputeLayout(super *InstanceLayout, cf *classfile.ClassFile) (*InstanceLayout, []StaticField, error) {
	layout := &InstanceLayout{
		byName:      map[string]*FieldLayout{},
		offsetIndex: map[int]*FieldLayout{},
	}

	offset := headerSize
	maxAlign := 1
	nextSlot := 0

	if super != nil {
		layout.Fields = append(layout.Fields, super.Fields...)
		for i := range layout.Fields {
			f := &layout.Fields[i]
			layout.byName[f.Name] = f
			layout.offsetIndex[f.Offset] = f
			if f.Slot >= nextSlot {
				nextSlot = f.Slot + 1
			}
		}
		offset = super.Size
	}

	var statics []StaticField
	for _, field := range cf.Fields {
		ft, _, err := classfile.ParseFieldType(field.Descriptor)
		if err != nil {
			return nil, nil, fmt.Errorf("layout: field %s has unparseable descriptor %q: %w", field.Name, field.Descriptor, err)
		}

		if field.IsStatic() {
			statics = append(statics, StaticField{
				Name:  field.Name,
				Type:  ft,
				Value: staticInitialValue(ft, &field),
				Final: field.AccessFlags&classfile.AccFinal != 0,
			})
			continue
		}

		size, align := sizeAndAlign(ft)
		offset = alignUp(offset, align)
		if align > maxAlign {
			maxAlign = align
		}
		fl := FieldLayout{Name: field.Name, Type: ft, Offset: offset, Slot: nextSlot}
		layout.Fields = append(layout.Fields, fl)
		layout.byName[fl.Name] = &layout.Fields[len(layout.Fields)-1]
		layout.offsetIndex[fl.Offset] = &layout.Fields[len(layout.Fields)-1]
		offset += size
		nextSlot++
	}

	layout.Size = alignUp(offset, maxAlign)
	return layout, statics, nil
}

// staticInitialValue resolves the ConstantValue attribute (Integer, Float,
// Long, Double) or falls back to the descriptor's zero value (§4.4); a
// String ConstantValue also gets the zero value here.
func staticInitialValue(ft *classfile.FieldType, field *classfile.FieldInfo) Value {
	if field.HasConstantVal {
		switch cv := field.ConstantValue.(type) {
		case *classfile.ConstantInteger:
			if ft.Base == classfile.TBoolean || ft.Base == classfile.TByte ||
				ft.Base == classfile.TChar || ft.Base == classfile.TShort {
				return IntVal(cv.Value)
			}
			return IntVal(cv.Value)
		case *classfile.ConstantFloat:
			return FloatVal(cv.Value)
		case *classfile.ConstantLong:
			return LongVal(cv.Value)
		case *classfile.ConstantDouble:
			return DoubleVal(cv.Value)
			// CONSTANT_String ConstantValue entries are resolved by the
			// classloader once the interner is available (§4.7); left as
			// the zero value here and patched in by ClassLoader.ForName.
		}
	}
	return zeroValueFor(ft)
}
