package vm

import (
	"fmt"

	"github.com/govm-project/govm/pkg/classfile"
)

// Method is the runtime record for one method, combining the classfile's
// MethodInfo with resolution-time extras (§4.8, §4.9): its owning class,
// a parsed descriptor for argument-slot accounting, and (for native
// methods) the resolved callable.
type Method struct {
	Owner      *Class
	Name       string
	Descriptor string
	Type       *classfile.MethodType
	Info       *classfile.MethodInfo

	Native NativeFunc // nil unless AccNative
}

func (m *Method) IsStatic() bool   { return m.Info.IsStatic() }
func (m *Method) IsNative() bool   { return m.Info.IsNative() }
func (m *Method) IsAbstract() bool { return m.Info.IsAbstract() }
func (m *Method) IsPrivate() bool  { return m.Info.IsPrivate() }

// overrides reports whether m (declared in a subclass) overrides base,
// per the JVM's override-visibility rule (§4.8): same name and
// descriptor, and base is neither private nor static (those are never
// overridden, only shadowed/hidden).
func overrides(m, base *Method) bool {
	return m.Name == base.Name && m.Descriptor == base.Descriptor &&
		!base.IsPrivate() && !base.IsStatic()
}

func buildMethodTable(owner *Class, cf *classfile.ClassFile, natives NativeLookup) []*Method {
	methods := make([]*Method, 0, len(cf.Methods))
	for i := range cf.Methods {
		info := &cf.Methods[i]
		mt, err := classfile.ParseMethodType(info.Descriptor)
		if err != nil {
			mt = &classfile.MethodType{}
		}
		m := &Method{
			Owner:      owner,
			Name:       info.Name,
			Descriptor: info.Descriptor,
			Type:       mt,
			Info:       info,
		}
		if m.IsNative() && natives != nil {
			if fn, ok := natives(owner.Name, m.Name, m.Descriptor); ok {
				m.Native = fn
			}
		}
		methods = append(methods, m)
	}
	return methods
}

func findDeclared(c *Class, name, descriptor string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// ResolveMethod implements §4.8's symbolic resolution for invokevirtual
// and invokespecial: search the class itself, then its superclasses.
func ResolveMethod(c *Class, name, descriptor string) (*Method, error) {
	for cur := c; cur != nil; cur = cur.Super {
		if m := findDeclared(cur, name, descriptor); m != nil {
			return m, nil
		}
	}
	return nil, &LinkageError{ClassName: c.Name, Reason: "NoSuchMethodError", Err: fmt.Errorf("%s%s", name, descriptor)}
}

// ResolveInterfaceMethod implements resolution for invokeinterface: the
// interface itself, then its superinterfaces, falling back to
// java/lang/Object for the methods every interface type inherits from it
// (equals/hashCode/toString when called through an interface reference).
func ResolveInterfaceMethod(c *Class, name, descriptor string) (*Method, error) {
	if m := findDeclared(c, name, descriptor); m != nil {
		return m, nil
	}
	for _, iface := range c.Interfaces {
		if m, err := ResolveInterfaceMethod(iface, name, descriptor); err == nil {
			return m, nil
		}
	}
	for cur := c.Super; cur != nil; cur = cur.Super {
		if m := findDeclared(cur, name, descriptor); m != nil && !m.IsStatic() && !m.IsPrivate() {
			return m, nil
		}
	}
	return nil, &LinkageError{ClassName: c.Name, Reason: "NoSuchMethodError", Err: fmt.Errorf("%s%s", name, descriptor)}
}

// SelectMethod implements §4.8's virtual dispatch: given the symbolically
// resolved method and the receiver's actual runtime class, walk up from
// the receiver's class looking for the most-derived override. Static and
// private methods (resolved, never selected) and constructors bypass this
// and are invoked exactly as resolved by invokespecial.
func SelectMethod(resolved *Method, receiverClass *Class) *Method {
	if resolved.IsPrivate() || resolved.IsStatic() || resolved.Name == "<init>" {
		return resolved
	}
	for cur := receiverClass; cur != nil; cur = cur.Super {
		if m := findDeclared(cur, resolved.Name, resolved.Descriptor); m != nil && overrides(m, resolved) {
			return m
		}
		if cur == resolved.Owner {
			break
		}
	}
	return resolved
}
