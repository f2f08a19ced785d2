package vm

import (
	"testing"

	"github.com/govm-project/govm/pkg/classfile"
)

func declareMethod(owner *Class, name, descriptor string, flags uint16) *Method {
	info := &classfile.MethodInfo{Name: name, Descriptor: descriptor, AccessFlags: flags}
	mt, _ := classfile.ParseMethodType(descriptor)
	m := &Method{Owner: owner, Name: name, Descriptor: descriptor, Type: mt, Info: info}
	owner.Methods = append(owner.Methods, m)
	return m
}

func TestOverridesRequiresSameSignatureAndNotPrivateOrStatic(t *testing.T) {
	base := &Class{Name: "Base"}
	baseGreet := declareMethod(base, "greet", "()V", 0)

	sub := &Class{Name: "Sub", Super: base}
	subGreet := declareMethod(sub, "greet", "()V", 0)
	if !overrides(subGreet, baseGreet) {
		t.Error("overrides() = false, want true for a matching virtual method")
	}

	basePrivate := declareMethod(base, "secret", "()V", classfile.AccPrivate)
	subSecret := declareMethod(sub, "secret", "()V", 0)
	if overrides(subSecret, basePrivate) {
		t.Error("overrides() = true, want false: private methods are never overridden")
	}
}

func TestResolveMethodSearchesSuperclassChain(t *testing.T) {
	base := &Class{Name: "Base"}
	declareMethod(base, "greet", "()V", 0)
	sub := &Class{Name: "Sub", Super: base}

	m, err := ResolveMethod(sub, "greet", "()V")
	if err != nil {
		t.Fatalf("ResolveMethod: %v", err)
	}
	if m.Owner != base {
		t.Errorf("ResolveMethod found %s's method, want Base's", m.Owner.Name)
	}
}

func TestResolveMethodNotFoundIsLinkageError(t *testing.T) {
	c := &Class{Name: "Empty"}
	_, err := ResolveMethod(c, "missing", "()V")
	if err == nil {
		t.Fatal("ResolveMethod: expected an error for a missing method")
	}
	if _, ok := err.(*LinkageError); !ok {
		t.Errorf("ResolveMethod error type = %T, want *LinkageError", err)
	}
}

func TestSelectMethodPicksMostDerivedOverride(t *testing.T) {
	base := &Class{Name: "Base"}
	baseGreet := declareMethod(base, "greet", "()V", 0)
	sub := &Class{Name: "Sub", Super: base}
	declareMethod(sub, "greet", "()V", 0)

	selected := SelectMethod(baseGreet, sub)
	if selected.Owner != sub {
		t.Errorf("SelectMethod picked %s's method, want Sub's override", selected.Owner.Name)
	}
}

func TestSelectMethodLeavesConstructorAlone(t *testing.T) {
	base := &Class{Name: "Base"}
	clinit := declareMethod(base, "<init>", "()V", 0)
	sub := &Class{Name: "Sub", Super: base}

	selected := SelectMethod(clinit, sub)
	if selected != clinit {
		t.Error("SelectMethod should not virtually dispatch a constructor")
	}
}

func TestBuildMethodTableWiresRegisteredNative(t *testing.T) {
	cf := &classfile.ClassFile{
		Methods: []classfile.MethodInfo{
			{Name: "hashCode", Descriptor: "()I", AccessFlags: classfile.AccNative},
		},
	}
	owner := &Class{Name: "java/lang/Object"}
	called := false
	fn := func(*Interp, []Value) (Value, *Object, error) {
		called = true
		return IntVal(0), nil, nil
	}
	lookup := func(class, name, descriptor string) (NativeFunc, bool) {
		if name == "hashCode" {
			return fn, true
		}
		return nil, false
	}
	owner.Methods = buildMethodTable(owner, cf, lookup)
	if len(owner.Methods) != 1 {
		t.Fatalf("len(Methods) = %d, want 1", len(owner.Methods))
	}
	m := owner.Methods[0]
	if !m.IsNative() {
		t.Fatal("method carrying AccNative reports IsNative() == false")
	}
	if m.Native == nil {
		t.Fatal("native lookup did not wire Method.Native")
	}
	m.Native(nil, nil)
	if !called {
		t.Error("Method.Native was wired to the wrong function")
	}
}
