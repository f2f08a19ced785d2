package vm

import (
	"testing"

	"github.com/govm-project/govm/pkg/classfile"
)

func bytesForMap(m map[string][]byte) BytesFor {
	return func(name string) ([]byte, bool, error) {
		data, ok := m[name]
		return data, ok, nil
	}
}

func TestForNameLoadsAndLinksAClass(t *testing.T) {
	a := newTestAsm()
	a.field("value", "I", 0)
	data := a.build(t, "Point", "")

	cl := NewClassLoader(bytesForMap(map[string][]byte{"Point": data}), nil, NewHeap())
	c, err := cl.ForName("Point")
	if err != nil {
		t.Fatalf("ForName: %v", err)
	}
	if c.Name != "Point" {
		t.Errorf("Name = %q, want %q", c.Name, "Point")
	}
	if _, ok := c.Layout.FieldByName("value"); !ok {
		t.Error("linked class is missing its declared field")
	}

	// A second ForName must return the cached Class, not reload.
	c2, err := cl.ForName("Point")
	if err != nil {
		t.Fatalf("ForName (cached): %v", err)
	}
	if c2 != c {
		t.Error("ForName returned a different *Class on the second call")
	}
}

func TestForNameFoldsSuperclassLayout(t *testing.T) {
	baseAsm := newTestAsm()
	baseAsm.field("base", "I", 0)
	baseData := baseAsm.build(t, "Base", "")

	subAsm := newTestAsm()
	subAsm.field("derived", "I", 0)
	subData := subAsm.build(t, "Sub", "Base")

	cl := NewClassLoader(bytesForMap(map[string][]byte{
		"Base": baseData,
		"Sub":  subData,
	}), nil, NewHeap())

	sub, err := cl.ForName("Sub")
	if err != nil {
		t.Fatalf("ForName(Sub): %v", err)
	}
	if sub.Super == nil || sub.Super.Name != "Base" {
		t.Fatalf("Sub.Super = %v, want Base", sub.Super)
	}
	if _, ok := sub.Layout.FieldByName("base"); !ok {
		t.Error("Sub's layout is missing Base's inherited field")
	}
	if _, ok := sub.Layout.FieldByName("derived"); !ok {
		t.Error("Sub's layout is missing its own field")
	}
}

func TestForNameMissingClassIsLinkageError(t *testing.T) {
	cl := NewClassLoader(bytesForMap(nil), nil, NewHeap())
	_, err := cl.ForName("DoesNotExist")
	if err == nil {
		t.Fatal("ForName: expected an error for a missing class")
	}
	le, ok := err.(*LinkageError)
	if !ok {
		t.Fatalf("ForName error type = %T, want *LinkageError", err)
	}
	if le.Reason != "ClassNotFoundException" {
		t.Errorf("Reason = %q, want ClassNotFoundException", le.Reason)
	}
}

func TestInitializeRunsSuperclassFirstExactlyOnce(t *testing.T) {
	baseAsm := newTestAsm()
	baseAsm.method("<clinit>", "()V", 0, []byte{0xb1}, 1, 1)
	baseData := baseAsm.build(t, "Base", "")

	subAsm := newTestAsm()
	subAsm.method("<clinit>", "()V", 0, []byte{0xb1}, 1, 1)
	subData := subAsm.build(t, "Sub", "Base")

	cl := NewClassLoader(bytesForMap(map[string][]byte{
		"Base": baseData,
		"Sub":  subData,
	}), nil, NewHeap())

	sub, err := cl.ForName("Sub")
	if err != nil {
		t.Fatalf("ForName(Sub): %v", err)
	}

	var order []string
	run := func(c *Class, m *Method) error {
		order = append(order, c.Name)
		return nil
	}
	if err := cl.Initialize(sub, run); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// A second call must be a no-op (run exactly once per class).
	if err := cl.Initialize(sub, run); err != nil {
		t.Fatalf("Initialize (second call): %v", err)
	}

	if len(order) != 2 || order[0] != "Base" || order[1] != "Sub" {
		t.Errorf("initialization order = %v, want [Base Sub] exactly once", order)
	}
}

func TestPatchStringConstantsResolvesConstantValueString(t *testing.T) {
	a := newTestAsm()
	strIdx := a.stringConst("hello")
	a.fieldWithConstIdx("GREETING", "Ljava/lang/String;", classfile.AccStatic|classfile.AccFinal, strIdx)
	data := a.build(t, "Holder", "")

	cl := NewClassLoader(bytesForMap(map[string][]byte{"Holder": data}), nil, NewHeap())

	var resolved string
	cl.SetStringFactory(func(s string) *Object {
		resolved = s
		stringClass := &Class{Name: "java/lang/String"}
		return &Object{Class: stringClass}
	})

	c, err := cl.ForName("Holder")
	if err != nil {
		t.Fatalf("ForName: %v", err)
	}
	idx, holder, ok := c.StaticIndex("GREETING")
	if !ok {
		t.Fatal("GREETING static not found")
	}
	if resolved != "hello" {
		t.Errorf("string factory was called with %q, want %q", resolved, "hello")
	}
	if v := holder.GetStatic(idx); v.Ref == nil {
		t.Error("GREETING static is still null after patchStringConstants")
	}
}
