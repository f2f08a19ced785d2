package vm

import (
	"testing"

	"github.com/govm-project/govm/pkg/classfile"
)

func TestComputeLayoutNoSuper(t *testing.T) {
	cf := &classfile.ClassFile{
		Fields: []classfile.FieldInfo{
			{Name: "x", Descriptor: "I"},
			{Name: "y", Descriptor: "J"}, // category-2, 8 bytes
		},
	}
	layout, statics, err := ComputeLayout(nil, cf)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if len(statics) != 0 {
		t.Fatalf("statics = %v, want none", statics)
	}
	xf, ok := layout.FieldByName("x")
	if !ok {
		t.Fatal("field x not found")
	}
	yf, ok := layout.FieldByName("y")
	if !ok {
		t.Fatal("field y not found")
	}
	if xf.Offset != headerSize {
		t.Errorf("x.Offset = %d, want %d (right after the header)", xf.Offset, headerSize)
	}
	if yf.Offset < xf.Offset+4 {
		t.Errorf("y.Offset = %d, want at least %d", yf.Offset, xf.Offset+4)
	}
	if layout.Size < yf.Offset+8 {
		t.Errorf("layout.Size = %d, too small to hold y at offset %d", layout.Size, yf.Offset)
	}
}

func TestComputeLayoutFoldsSuperclassFields(t *testing.T) {
	superCF := &classfile.ClassFile{
		Fields: []classfile.FieldInfo{{Name: "base", Descriptor: "I"}},
	}
	superLayout, _, err := ComputeLayout(nil, superCF)
	if err != nil {
		t.Fatalf("ComputeLayout(super): %v", err)
	}

	subCF := &classfile.ClassFile{
		Fields: []classfile.FieldInfo{{Name: "derived", Descriptor: "I"}},
	}
	subLayout, _, err := ComputeLayout(superLayout, subCF)
	if err != nil {
		t.Fatalf("ComputeLayout(sub): %v", err)
	}

	if _, ok := subLayout.FieldByName("base"); !ok {
		t.Error("subclass layout is missing the inherited field \"base\"")
	}
	derived, ok := subLayout.FieldByName("derived")
	if !ok {
		t.Fatal("field derived not found")
	}
	if derived.Offset < superLayout.Size {
		t.Errorf("derived.Offset = %d, want >= superclass size %d (no overlap)", derived.Offset, superLayout.Size)
	}
}

func TestComputeLayoutStaticFieldsAreNotInstanceFields(t *testing.T) {
	cf := &classfile.ClassFile{
		Fields: []classfile.FieldInfo{
			{Name: "COUNT", Descriptor: "I", AccessFlags: classfile.AccStatic},
		},
	}
	layout, statics, err := ComputeLayout(nil, cf)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if len(layout.Fields) != 0 {
		t.Errorf("instance Fields = %v, want none", layout.Fields)
	}
	if len(statics) != 1 || statics[0].Name != "COUNT" {
		t.Fatalf("statics = %v, want one field named COUNT", statics)
	}
	if statics[0].Value.Int32() != 0 {
		t.Errorf("COUNT zero value = %v, want int(0)", statics[0].Value)
	}
}

func TestStaticInitialValueUsesConstantValue(t *testing.T) {
	cf := &classfile.ClassFile{
		Fields: []classfile.FieldInfo{
			{
				Name: "LIMIT", Descriptor: "I", AccessFlags: classfile.AccStatic | classfile.AccFinal,
				HasConstantVal: true,
				ConstantValue:  &classfile.ConstantInteger{Value: 42},
			},
		},
	}
	_, statics, err := ComputeLayout(nil, cf)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if statics[0].Value.Int32() != 42 {
		t.Errorf("LIMIT initial value = %v, want int(42)", statics[0].Value)
	}
	if !statics[0].Final {
		t.Error("LIMIT.Final = false, want true")
	}
}

func TestComputeLayoutRejectsBadDescriptor(t *testing.T) {
	cf := &classfile.ClassFile{
		Fields: []classfile.FieldInfo{{Name: "bad", Descriptor: "Q"}},
	}
	if _, _, err := ComputeLayout(nil, cf); err == nil {
		t.Fatal("ComputeLayout: expected an error for an unparseable descriptor, got nil")
	}
}
