package vm

import (
	"fmt"

	"github.com/govm-project/govm/pkg/classfile"
)

func (in *Interp) execLdc(f *Frame, index uint16) error {
	pool := f.Class.File.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return &VMError{Msg: fmt.Sprintf("ldc: invalid constant pool index %d", index)}
	}
	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		f.Push(IntVal(c.Value))
	case *classfile.ConstantFloat:
		f.Push(FloatVal(c.Value))
	case *classfile.ConstantLong:
		f.Push(LongVal(c.Value))
	case *classfile.ConstantDouble:
		f.Push(DoubleVal(c.Value))
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return &VMError{Msg: "ldc: resolving string", Err: err}
		}
		f.Push(RefVal(in.NewString(s)))
	case *classfile.ConstantClass:
		name, err := classfile.GetUtf8(pool, c.NameIndex)
		if err != nil {
			return &VMError{Msg: "ldc: resolving class", Err: err}
		}
		cls, err := in.Loader.ForName(name)
		if err != nil {
			return err
		}
		f.Push(RefVal(in.Heap.AllocClassMirror(in.Loader.classOfClass, cls)))
	default:
		return &VMError{Msg: fmt.Sprintf("ldc: unsupported constant pool tag %d", c.Tag())}
	}
	return nil
}

func fieldSlot(owner *Class, className, fieldName string) (*FieldLayout, error) {
	if f, ok := owner.Layout.FieldByName(fieldName); ok {
		return f, nil
	}
	return nil, &LinkageError{ClassName: className, Reason: "NoSuchFieldError", Err: fmt.Errorf("%s", fieldName)}
}

func (in *Interp) execGetstatic(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "getstatic", Err: err}
	}
	owner, err := in.Loader.ForName(ref.ClassName)
	if err != nil {
		return step{}, err
	}
	if err := in.ensureInitialized(owner); err != nil {
		return step{}, err
	}
	idx, holder, ok := owner.StaticIndex(ref.FieldName)
	if !ok {
		return step{}, &LinkageError{ClassName: ref.ClassName, Reason: "NoSuchFieldError", Err: fmt.Errorf("%s", ref.FieldName)}
	}
	f.Push(holder.GetStatic(idx))
	return step{action: stepNextAction}, nil
}

func (in *Interp) execPutstatic(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "putstatic", Err: err}
	}
	owner, err := in.Loader.ForName(ref.ClassName)
	if err != nil {
		return step{}, err
	}
	if err := in.ensureInitialized(owner); err != nil {
		return step{}, err
	}
	idx, holder, ok := owner.StaticIndex(ref.FieldName)
	if !ok {
		return step{}, &LinkageError{ClassName: ref.ClassName, Reason: "NoSuchFieldError", Err: fmt.Errorf("%s", ref.FieldName)}
	}
	holder.SetStatic(idx, f.Pop())
	return step{action: stepNextAction}, nil
}

func (in *Interp) execGetfield(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "getfield", Err: err}
	}
	receiver := f.Pop()
	if receiver.Ref == nil {
		return in.throwNPE()
	}
	fl, err := fieldSlot(receiver.Ref.Class, ref.ClassName, ref.FieldName)
	if err != nil {
		return step{}, err
	}
	f.Push(receiver.Ref.GetField(fl))
	return step{action: stepNextAction}, nil
}

func (in *Interp) execPutfield(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "putfield", Err: err}
	}
	value := f.Pop()
	receiver := f.Pop()
	if receiver.Ref == nil {
		return in.throwNPE()
	}
	fl, err := fieldSlot(receiver.Ref.Class, ref.ClassName, ref.FieldName)
	if err != nil {
		return step{}, err
	}
	receiver.Ref.SetField(fl, value)
	return step{action: stepNextAction}, nil
}

func (in *Interp) popArgs(descriptor string, f *Frame) ([]Value, error) {
	mt, err := classfile.ParseMethodType(descriptor)
	if err != nil {
		return nil, &VMError{Msg: "bad method descriptor", Err: err}
	}
	args := make([]Value, len(mt.Params))
	for i := len(mt.Params) - 1; i >= 0; i-- {
		args[i] = f.Pop()
	}
	return args, nil
}

func isVoidReturn(mt *classfile.MethodType) bool {
	return mt.Return.Base == classfile.TVoid
}

func (in *Interp) execInvokevirtual(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "invokevirtual", Err: err}
	}
	args, err := in.popArgs(ref.Descriptor, f)
	if err != nil {
		return step{}, err
	}
	receiver := f.Pop()
	if receiver.Ref == nil {
		return in.throwNPE()
	}
	declClass, err := in.Loader.ForName(ref.ClassName)
	if err != nil {
		return step{}, err
	}
	resolved, err := ResolveMethod(declClass, ref.MethodName, ref.Descriptor)
	if err != nil {
		return step{}, err
	}
	target := SelectMethod(resolved, receiver.Ref.Class)
	return in.invokeWithReceiver(f, target, receiver, args)
}

func (in *Interp) execInvokespecial(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "invokespecial", Err: err}
	}
	args, err := in.popArgs(ref.Descriptor, f)
	if err != nil {
		return step{}, err
	}
	receiver := f.Pop()
	if receiver.Ref == nil {
		return in.throwNPE()
	}
	declClass, err := in.Loader.ForName(ref.ClassName)
	if err != nil {
		return step{}, err
	}
	target, err := ResolveMethod(declClass, ref.MethodName, ref.Descriptor)
	if err != nil {
		return step{}, err
	}
	return in.invokeWithReceiver(f, target, receiver, args)
}

func (in *Interp) execInvokestatic(f *Frame, index uint16) (step, error) {
	pool := f.Class.File.ConstantPool
	ref, err := classfile.ResolveMethodref(pool, index)
	if err != nil {
		ref, err = classfile.ResolveInterfaceMethodref(pool, index)
		if err != nil {
			return step{}, &VMError{Msg: "invokestatic", Err: err}
		}
	}
	args, err := in.popArgs(ref.Descriptor, f)
	if err != nil {
		return step{}, err
	}
	declClass, err := in.Loader.ForName(ref.ClassName)
	if err != nil {
		return step{}, err
	}
	if err := in.ensureInitialized(declClass); err != nil {
		return step{}, err
	}
	target, err := ResolveMethod(declClass, ref.MethodName, ref.Descriptor)
	if err != nil {
		return step{}, err
	}
	ret, err := in.Invoke(target, args)
	if err != nil {
		return step{}, err
	}
	mt, _ := classfile.ParseMethodType(ref.Descriptor)
	if mt == nil || !isVoidReturn(mt) {
		f.Push(ret)
	}
	return step{action: stepNextAction}, nil
}

func (in *Interp) execInvokeinterface(f *Frame, index uint16) (step, error) {
	ref, err := classfile.ResolveInterfaceMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "invokeinterface", Err: err}
	}
	args, err := in.popArgs(ref.Descriptor, f)
	if err != nil {
		return step{}, err
	}
	receiver := f.Pop()
	if receiver.Ref == nil {
		return in.throwNPE()
	}
	declClass, err := in.Loader.ForName(ref.ClassName)
	if err != nil {
		return step{}, err
	}
	resolved, err := ResolveInterfaceMethod(declClass, ref.MethodName, ref.Descriptor)
	if err != nil {
		return step{}, err
	}
	target := SelectMethod(resolved, receiver.Ref.Class)
	return in.invokeWithReceiver(f, target, receiver, args)
}

func (in *Interp) invokeWithReceiver(f *Frame, target *Method, receiver Value, args []Value) (step, error) {
	full := make([]Value, 0, len(args)+1)
	full = append(full, receiver)
	full = append(full, args...)
	ret, err := in.Invoke(target, full)
	if err != nil {
		return step{}, err
	}
	mt, _ := classfile.ParseMethodType(target.Descriptor)
	if mt == nil || !isVoidReturn(mt) {
		f.Push(ret)
	}
	return step{action: stepNextAction}, nil
}

func (in *Interp) execNew(f *Frame, index uint16) (step, error) {
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "new", Err: err}
	}
	cls, err := in.Loader.ForName(name)
	if err != nil {
		return step{}, err
	}
	if err := in.ensureInitialized(cls); err != nil {
		return step{}, err
	}
	f.Push(RefVal(in.Heap.AllocInstance(cls)))
	return step{action: stepNextAction}, nil
}

func (in *Interp) execNewarray(f *Frame, atype int32) (step, error) {
	count := f.Pop().Int32()
	if count < 0 {
		return in.throwNamed("java/lang/NegativeArraySizeException", fmt.Sprintf("%d", count))
	}
	var base classfile.BaseType
	switch atype {
	case AtypeBoolean:
		base = classfile.TBoolean
	case AtypeChar:
		base = classfile.TChar
	case AtypeFloat:
		base = classfile.TFloat
	case AtypeDouble:
		base = classfile.TDouble
	case AtypeByte:
		base = classfile.TByte
	case AtypeShort:
		base = classfile.TShort
	case AtypeInt:
		base = classfile.TInt
	case AtypeLong:
		base = classfile.TLong
	default:
		return step{}, &VMError{Msg: fmt.Sprintf("newarray: bad atype %d", atype)}
	}
	elemType := &classfile.FieldType{Base: base}
	arrClass, err := in.Loader.ArrayClassFor(elemType)
	if err != nil {
		return step{}, err
	}
	f.Push(RefVal(in.Heap.AllocArray(arrClass, elemType, int(count))))
	return step{action: stepNextAction}, nil
}

func (in *Interp) execAnewarray(f *Frame, index uint16) (step, error) {
	count := f.Pop().Int32()
	if count < 0 {
		return in.throwNamed("java/lang/NegativeArraySizeException", fmt.Sprintf("%d", count))
	}
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "anewarray", Err: err}
	}
	if _, err := in.Loader.ForName(name); err != nil {
		return step{}, err
	}
	elemType := &classfile.FieldType{Base: classfile.TRef, ClassName: name}
	arrClass, err := in.Loader.ArrayClassFor(elemType)
	if err != nil {
		return step{}, err
	}
	f.Push(RefVal(in.Heap.AllocArray(arrClass, elemType, int(count))))
	return step{action: stepNextAction}, nil
}

func (in *Interp) execArrayLoad(f *Frame) (step, error) {
	idx := f.Pop().Int32()
	arr := f.Pop()
	if arr.Ref == nil {
		return in.throwNPE()
	}
	if idx < 0 || int(idx) >= arr.Ref.Length() {
		return in.throwNamed("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", idx, arr.Ref.Length()))
	}
	f.Push(arr.Ref.GetElem(int(idx)))
	return step{action: stepNextAction}, nil
}

func (in *Interp) execArrayStore(f *Frame) (step, error) {
	value := f.Pop()
	idx := f.Pop().Int32()
	arr := f.Pop()
	if arr.Ref == nil {
		return in.throwNPE()
	}
	if idx < 0 || int(idx) >= arr.Ref.Length() {
		return in.throwNamed("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", idx, arr.Ref.Length()))
	}
	arr.Ref.SetElem(int(idx), value)
	return step{action: stepNextAction}, nil
}

func (in *Interp) execCheckcast(f *Frame, index uint16) (step, error) {
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "checkcast", Err: err}
	}
	top := f.peekRaw(0)
	if top.Ref == nil {
		return step{action: stepNextAction}, nil
	}
	target, err := in.Loader.ForName(name)
	if err != nil {
		return step{}, err
	}
	if !target.IsAssignableFrom(top.Ref.Class) {
		return in.throwNamed("java/lang/ClassCastException", fmt.Sprintf("%s cannot be cast to %s", top.Ref.DebugClassName(), name))
	}
	return step{action: stepNextAction}, nil
}

func (in *Interp) execInstanceof(f *Frame, index uint16) (step, error) {
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return step{}, &VMError{Msg: "instanceof", Err: err}
	}
	obj := f.Pop()
	if obj.Ref == nil {
		f.Push(IntVal(0))
		return step{action: stepNextAction}, nil
	}
	target, err := in.Loader.ForName(name)
	if err != nil {
		return step{}, err
	}
	if target.IsAssignableFrom(obj.Ref.Class) {
		f.Push(IntVal(1))
	} else {
		f.Push(IntVal(0))
	}
	return step{action: stepNextAction}, nil
}
