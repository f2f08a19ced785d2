package vm

import (
	"fmt"
	"math"

	"github.com/govm-project/govm/pkg/classfile"
)

// DefaultMaxCallDepth bounds the shadow call stack (§4.12's
// StackOverflowError). Each bytecode-level invocation recurses through
// Invoke on the Go stack, so this limit also bounds that recursion.
const DefaultMaxCallDepth = 2048

// Interp is the interpreter core (§4.11): one per running program,
// holding the loader, heap, interner and shadow call stack that every
// invocation shares. It is not safe for concurrent use from multiple
// goroutines — the whole core is a single-threaded cooperative model
// (§9) by design.
type Interp struct {
	Loader  *ClassLoader
	Heap    *Heap
	Stack   *CallStack
	Natives *NativeRegistry
	Interner *Interner
	Log     Logger

	StringClass *Class
}

// NewInterp wires the pieces together. Callers finish bootstrapping
// (loading java/lang/Object, java/lang/Class, java/lang/String and
// setting up the interner) before running any user bytecode; pkg/govm's
// facade does this.
func NewInterp(loader *ClassLoader, heap *Heap, natives *NativeRegistry) *Interp {
	return &Interp{
		Loader:  loader,
		Heap:    heap,
		Stack:   NewCallStack(DefaultMaxCallDepth),
		Natives: natives,
		Log:     nopLogger{},
	}
}

// NewString returns the canonical interned String object for s (§4.6).
func (in *Interp) NewString(s string) *Object {
	return in.Interner.Intern(s, func(obj *Object, str string) {
		buf := encodeUTF16BE(str)
		byteType := &classfile.FieldType{Base: classfile.TByte}
		arrClass, err := in.Loader.ArrayClassFor(byteType)
		if err != nil {
			in.Log.Severe("allocating backing array for interned string: %v", err)
			return
		}
		arr := in.Heap.AllocArray(arrClass, byteType, len(buf))
		for i, b := range buf {
			arr.SetElem(i, IntVal(int32(int8(b))))
		}
		if f, ok := in.StringClass.Layout.FieldByName("value"); ok {
			obj.SetField(f, RefVal(arr))
		}
		if f, ok := in.StringClass.Layout.FieldByName("coder"); ok {
			obj.SetField(f, IntVal(1))
		}
	})
}

// step tells the interpreter loop what to do after one instruction.
type step struct {
	action stepAction
	pc     int
	ret    Value
	hasRet bool
}

type stepAction uint8

const (
	stepNextAction stepAction = iota
	stepJumpAction
	stepReturnAction
)

// Invoke runs method with args already laid out in call order (receiver
// first for instance methods), returning its return value (zero Value
// for void) (§4.11). A Throw propagates as a *Throw error; any other
// error is a VMError or LinkageError.
func (in *Interp) Invoke(method *Method, args []Value) (Value, error) {
	if !in.Stack.Push(method.Owner.Name, method.Name, method.Descriptor) {
		exc, err := in.NewThrowable("java/lang/StackOverflowError", "")
		if err != nil {
			return Value{}, err
		}
		return Value{}, &Throw{Exception: exc}
	}
	defer in.Stack.Pop()

	if method.IsNative() {
		if method.Native == nil {
			return Value{}, &VMError{Msg: fmt.Sprintf("native method not registered: %s.%s%s", method.Owner.Name, method.Name, method.Descriptor)}
		}
		ret, thrown, err := method.Native(in, args)
		if err != nil {
			return Value{}, err
		}
		if thrown != nil {
			return Value{}, &Throw{Exception: thrown}
		}
		return ret, nil
	}

	if method.IsAbstract() || method.Info.Code == nil {
		return Value{}, &VMError{Msg: fmt.Sprintf("method has no code: %s.%s%s", method.Owner.Name, method.Name, method.Descriptor)}
	}

	frame := NewFrame(method)
	slot := 0
	for _, a := range args {
		frame.SetLocal(slot, a)
		slot += a.Slots()
	}

	return in.run(frame)
}

func (in *Interp) run(frame *Frame) (Value, error) {
	code := frame.Method.Info.Code.Code
	for {
		if frame.PC >= len(code) {
			return Value{}, &VMError{Msg: fmt.Sprintf("%s: fell off end of code", frame.String())}
		}

		instr, err := Decode(code, frame.PC)
		if err != nil {
			return Value{}, &VMError{Msg: "decode error", Err: err}
		}
		in.Stack.SetPC(instr.PC)

		st, err := in.exec(frame, instr)
		if err != nil {
			thr, isThrow := err.(*Throw)
			if !isThrow {
				return Value{}, err
			}
			handler := findHandler(frame.Method.Info.Code, instr.PC, thr.Exception, frame.Class)
			if handler == nil {
				return Value{}, err
			}
			frame.sp = 0
			frame.Push(RefVal(thr.Exception))
			frame.PC = int(handler.HandlerPC)
			continue
		}

		switch st.action {
		case stepNextAction:
			frame.PC = instr.PC + instr.Len
		case stepJumpAction:
			frame.PC = st.pc
		case stepReturnAction:
			return st.ret, nil
		}
	}
}

// findHandler implements §4.12's exception-table search: the first
// handler (in table order) whose PC range covers the throw site and
// whose catch type is assignable from the thrown exception's class, or
// a catch-all (CatchType 0, used for compiled finally blocks).
func findHandler(code *classfile.CodeAttribute, pc int, exc *Object, class *Class) *classfile.ExceptionHandler {
	for i := range code.ExceptionHandlers {
		h := &code.ExceptionHandlers[i]
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return h
		}
		catchName, err := classfile.GetClassName(class.File.ConstantPool, h.CatchType)
		if err != nil {
			continue
		}
		if catchName == exc.Class.Name || classAssignable(exc.Class, catchName) {
			return h
		}
	}
	return nil
}

func classAssignable(c *Class, targetName string) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur.Name == targetName {
			return true
		}
		for _, iface := range cur.Interfaces {
			if ifaceAssignable(iface, targetName) {
				return true
			}
		}
	}
	return false
}

func ifaceAssignable(iface *Class, targetName string) bool {
	if iface.Name == targetName {
		return true
	}
	for _, super := range iface.Interfaces {
		if ifaceAssignable(super, targetName) {
			return true
		}
	}
	return false
}

func (in *Interp) throwNPE() (step, error) {
	exc, err := in.NewThrowable("java/lang/NullPointerException", "")
	if err != nil {
		return step{}, err
	}
	return step{}, &Throw{Exception: exc}
}

func (in *Interp) throwNamed(className, msg string) (step, error) {
	exc, err := in.NewThrowable(className, msg)
	if err != nil {
		return step{}, err
	}
	return step{}, &Throw{Exception: exc}
}

// ensureInitialized runs a class's <clinit> (superclass-first, exactly
// once), driving the recursion through in.Invoke so <clinit> executes
// like any other method (§4.7).
func (in *Interp) ensureInitialized(c *Class) error {
	return in.Loader.Initialize(c, func(owner *Class, m *Method) error {
		_, err := in.Invoke(m, nil)
		return err
	})
}

func (in *Interp) exec(f *Frame, ins Instruction) (step, error) {
	switch ins.Op {

	case OpNop:
		return step{action: stepNextAction}, nil
	case OpAconstNull:
		f.Push(NullVal())
	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		f.Push(IntVal(int32(ins.Op) - OpIconst0))
	case OpLconst0, OpLconst1:
		f.Push(LongVal(int64(ins.Op - OpLconst0)))
	case OpFconst0, OpFconst1, OpFconst2:
		f.Push(FloatVal(float32(ins.Op - OpFconst0)))
	case OpDconst0, OpDconst1:
		f.Push(DoubleVal(float64(ins.Op - OpDconst0)))
	case OpBipush, OpSipush:
		f.Push(IntVal(ins.Const))

	case OpLdc, OpLdcW, OpLdc2W:
		if err := in.execLdc(f, ins.Index); err != nil {
			return step{}, err
		}

	case OpIload, OpFload, OpAload:
		f.Push(f.GetLocal(ins.Var))
	case OpLload, OpDload:
		f.Push(f.GetLocal(ins.Var))
	case OpIload0, OpIload1, OpIload2, OpIload3:
		f.Push(f.GetLocal(int(ins.Op - OpIload0)))
	case OpFload0, OpFload1, OpFload2, OpFload3:
		f.Push(f.GetLocal(int(ins.Op - OpFload0)))
	case OpAload0, OpAload1, OpAload2, OpAload3:
		f.Push(f.GetLocal(int(ins.Op - OpAload0)))
	case OpLload0, OpLload1, OpLload2, OpLload3:
		f.Push(f.GetLocal(int(ins.Op - OpLload0)))
	case OpDload0, OpDload1, OpDload2, OpDload3:
		f.Push(f.GetLocal(int(ins.Op - OpDload0)))

	case OpIstore, OpFstore, OpAstore, OpLstore, OpDstore:
		f.SetLocal(ins.Var, f.Pop())
	case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
		f.SetLocal(int(ins.Op-OpIstore0), f.Pop())
	case OpFstore0, OpFstore1, OpFstore2, OpFstore3:
		f.SetLocal(int(ins.Op-OpFstore0), f.Pop())
	case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		f.SetLocal(int(ins.Op-OpAstore0), f.Pop())
	case OpLstore0, OpLstore1, OpLstore2, OpLstore3:
		f.SetLocal(int(ins.Op-OpLstore0), f.Pop())
	case OpDstore0, OpDstore1, OpDstore2, OpDstore3:
		f.SetLocal(int(ins.Op-OpDstore0), f.Pop())

	case OpIaload, OpFaload, OpAaload, OpBaload, OpCaload, OpSaload, OpLaload, OpDaload:
		return in.execArrayLoad(f)
	case OpIastore, OpFastore, OpAastore, OpBastore, OpCastore, OpSastore, OpLastore, OpDastore:
		return in.execArrayStore(f)

	case OpPop:
		f.sp--
	case OpPop2:
		f.sp -= 2
	case OpDup:
		v := f.peekRaw(0)
		f.Stack[f.sp] = v
		f.sp++
	case OpDupX1:
		a, b := f.peekRaw(0), f.peekRaw(1)
		f.Stack[f.sp-2] = a
		f.Stack[f.sp-1] = b
		f.Stack[f.sp] = a
		f.sp++
	case OpDupX2:
		a, b, c := f.peekRaw(0), f.peekRaw(1), f.peekRaw(2)
		f.Stack[f.sp-3] = a
		f.Stack[f.sp-2] = c
		f.Stack[f.sp-1] = b
		f.Stack[f.sp] = a
		f.sp++
	case OpDup2:
		a, b := f.peekRaw(0), f.peekRaw(1)
		f.Stack[f.sp] = b
		f.Stack[f.sp+1] = a
		f.sp += 2
	case OpDup2X1:
		a, b, c := f.peekRaw(0), f.peekRaw(1), f.peekRaw(2)
		f.Stack[f.sp-3] = b
		f.Stack[f.sp-2] = a
		f.Stack[f.sp-1] = c
		f.Stack[f.sp] = b
		f.Stack[f.sp+1] = a
		f.sp += 2
	case OpDup2X2:
		a, b, c, d := f.peekRaw(0), f.peekRaw(1), f.peekRaw(2), f.peekRaw(3)
		f.Stack[f.sp-4] = b
		f.Stack[f.sp-3] = a
		f.Stack[f.sp-2] = d
		f.Stack[f.sp-1] = c
		f.Stack[f.sp] = b
		f.Stack[f.sp+1] = a
		f.sp += 2
	case OpSwap:
		a, b := f.peekRaw(0), f.peekRaw(1)
		f.Stack[f.sp-2] = a
		f.Stack[f.sp-1] = b

	case OpIadd:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() + b.Int32()))
	case OpIsub:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() - b.Int32()))
	case OpImul:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() * b.Int32()))
	case OpIdiv:
		b, a := f.Pop(), f.Pop()
		if b.Int32() == 0 {
			return in.throwNamed("java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(IntVal(a.Int32() / b.Int32()))
	case OpIrem:
		b, a := f.Pop(), f.Pop()
		if b.Int32() == 0 {
			return in.throwNamed("java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(IntVal(a.Int32() % b.Int32()))
	case OpIneg:
		a := f.Pop()
		f.Push(IntVal(-a.Int32()))
	case OpIshl:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() << (uint32(b.Int32()) & 31)))
	case OpIshr:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() >> (uint32(b.Int32()) & 31)))
	case OpIushr:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(int32(uint32(a.Int32()) >> (uint32(b.Int32()) & 31))))
	case OpIand:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() & b.Int32()))
	case OpIor:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() | b.Int32()))
	case OpIxor:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(a.Int32() ^ b.Int32()))
	case OpIinc:
		v := f.GetLocal(ins.Var)
		f.SetLocal(ins.Var, IntVal(v.Int32()+ins.Const))

	case OpLadd:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I + b.I))
	case OpLsub:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I - b.I))
	case OpLmul:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I * b.I))
	case OpLdiv:
		b, a := f.Pop(), f.Pop()
		if b.I == 0 {
			return in.throwNamed("java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(LongVal(a.I / b.I))
	case OpLrem:
		b, a := f.Pop(), f.Pop()
		if b.I == 0 {
			return in.throwNamed("java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(LongVal(a.I % b.I))
	case OpLneg:
		a := f.Pop()
		f.Push(LongVal(-a.I))
	case OpLshl:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I << (uint64(b.I) & 63)))
	case OpLshr:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I >> (uint64(b.I) & 63)))
	case OpLushr:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(int64(uint64(a.I) >> (uint64(b.I) & 63))))
	case OpLand:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I & b.I))
	case OpLor:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I | b.I))
	case OpLxor:
		b, a := f.Pop(), f.Pop()
		f.Push(LongVal(a.I ^ b.I))
	case OpLcmp:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(cmp64(a.I, b.I)))

	case OpFadd:
		b, a := f.Pop(), f.Pop()
		f.Push(FloatVal(a.Float32() + b.Float32()))
	case OpFsub:
		b, a := f.Pop(), f.Pop()
		f.Push(FloatVal(a.Float32() - b.Float32()))
	case OpFmul:
		b, a := f.Pop(), f.Pop()
		f.Push(FloatVal(a.Float32() * b.Float32()))
	case OpFdiv:
		b, a := f.Pop(), f.Pop()
		f.Push(FloatVal(a.Float32() / b.Float32()))
	case OpFrem:
		b, a := f.Pop(), f.Pop()
		f.Push(FloatVal(float32(math.Mod(float64(a.Float32()), float64(b.Float32())))))
	case OpFneg:
		a := f.Pop()
		f.Push(FloatVal(-a.Float32()))
	case OpFcmpl, OpFcmpg:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(cmpFloat(float64(a.Float32()), float64(b.Float32()), ins.Op == OpFcmpg)))

	case OpDadd:
		b, a := f.Pop(), f.Pop()
		f.Push(DoubleVal(a.F + b.F))
	case OpDsub:
		b, a := f.Pop(), f.Pop()
		f.Push(DoubleVal(a.F - b.F))
	case OpDmul:
		b, a := f.Pop(), f.Pop()
		f.Push(DoubleVal(a.F * b.F))
	case OpDdiv:
		b, a := f.Pop(), f.Pop()
		f.Push(DoubleVal(a.F / b.F))
	case OpDrem:
		b, a := f.Pop(), f.Pop()
		f.Push(DoubleVal(math.Mod(a.F, b.F)))
	case OpDneg:
		a := f.Pop()
		f.Push(DoubleVal(-a.F))
	case OpDcmpl, OpDcmpg:
		b, a := f.Pop(), f.Pop()
		f.Push(IntVal(cmpFloat(a.F, b.F, ins.Op == OpDcmpg)))

	case OpI2l:
		f.Push(LongVal(int64(f.Pop().Int32())))
	case OpI2f:
		f.Push(FloatVal(float32(f.Pop().Int32())))
	case OpI2d:
		f.Push(DoubleVal(float64(f.Pop().Int32())))
	case OpL2i:
		f.Push(IntVal(int32(f.Pop().I)))
	case OpL2f:
		f.Push(FloatVal(float32(f.Pop().I)))
	case OpL2d:
		f.Push(DoubleVal(float64(f.Pop().I)))
	case OpF2i:
		f.Push(IntVal(floatToInt32(float64(f.Pop().Float32()))))
	case OpF2l:
		f.Push(LongVal(floatToInt64(float64(f.Pop().Float32()))))
	case OpF2d:
		f.Push(DoubleVal(float64(f.Pop().Float32())))
	case OpD2i:
		f.Push(IntVal(floatToInt32(f.Pop().F)))
	case OpD2l:
		f.Push(LongVal(floatToInt64(f.Pop().F)))
	case OpD2f:
		f.Push(FloatVal(float32(f.Pop().F)))
	case OpI2b:
		f.Push(IntVal(int32(int8(f.Pop().Int32()))))
	case OpI2c:
		f.Push(IntVal(int32(uint16(f.Pop().Int32()))))
	case OpI2s:
		f.Push(IntVal(int32(int16(f.Pop().Int32()))))

	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		if compareUnary(ins.Op, f.Pop().Int32()) {
			return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
		}
	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		b, a := f.Pop(), f.Pop()
		if compareBinaryInt(ins.Op, a.Int32(), b.Int32()) {
			return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
		}
	case OpIfAcmpeq, OpIfAcmpne:
		b, a := f.Pop(), f.Pop()
		eq := a.Ref == b.Ref
		if (ins.Op == OpIfAcmpeq) == eq {
			return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
		}
	case OpIfnull, OpIfnonnull:
		a := f.Pop()
		isNull := a.Ref == nil
		if (ins.Op == OpIfnull) == isNull {
			return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
		}
	case OpGoto:
		return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
	case OpGotoW:
		return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
	case OpJsr, OpJsrW:
		f.Push(IntVal(int32(ins.PC + ins.Len)))
		return step{action: stepJumpAction, pc: ins.PC + int(ins.Branch)}, nil
	case OpRet:
		return step{action: stepJumpAction, pc: int(f.GetLocal(ins.Var).Int32())}, nil

	case OpTableswitch:
		v := f.Pop().Int32()
		if v < ins.Low || v > ins.High {
			return step{action: stepJumpAction, pc: ins.PC + int(ins.DefaultTarget)}, nil
		}
		return step{action: stepJumpAction, pc: ins.PC + int(ins.Targets[v-ins.Low])}, nil
	case OpLookupswitch:
		v := f.Pop().Int32()
		for i, m := range ins.Matches {
			if v == m {
				return step{action: stepJumpAction, pc: ins.PC + int(ins.Targets[i])}, nil
			}
		}
		return step{action: stepJumpAction, pc: ins.PC + int(ins.DefaultTarget)}, nil

	case OpIreturn, OpFreturn, OpAreturn:
		return step{action: stepReturnAction, ret: f.Pop(), hasRet: true}, nil
	case OpLreturn, OpDreturn:
		return step{action: stepReturnAction, ret: f.Pop(), hasRet: true}, nil
	case OpReturn:
		return step{action: stepReturnAction}, nil

	case OpGetstatic:
		return in.execGetstatic(f, ins.Index)
	case OpPutstatic:
		return in.execPutstatic(f, ins.Index)
	case OpGetfield:
		return in.execGetfield(f, ins.Index)
	case OpPutfield:
		return in.execPutfield(f, ins.Index)

	case OpInvokevirtual:
		return in.execInvokevirtual(f, ins.Index)
	case OpInvokespecial:
		return in.execInvokespecial(f, ins.Index)
	case OpInvokestatic:
		return in.execInvokestatic(f, ins.Index)
	case OpInvokeinterface:
		return in.execInvokeinterface(f, ins.Index)
	case OpInvokedynamic:
		return step{}, &VMError{Msg: "invokedynamic is not supported by this core"}

	case OpNew:
		return in.execNew(f, ins.Index)
	case OpNewarray:
		return in.execNewarray(f, ins.Const)
	case OpAnewarray:
		return in.execAnewarray(f, ins.Index)
	case OpArraylength:
		obj := f.Pop()
		if obj.Ref == nil {
			return in.throwNPE()
		}
		f.Push(IntVal(int32(obj.Ref.Length())))
	case OpMultianewarray:
		return step{}, &VMError{Msg: "multianewarray is not supported by this core"}

	case OpAthrow:
		obj := f.Pop()
		if obj.Ref == nil {
			return in.throwNPE()
		}
		return step{}, &Throw{Exception: obj.Ref}

	case OpCheckcast:
		return in.execCheckcast(f, ins.Index)
	case OpInstanceof:
		return in.execInstanceof(f, ins.Index)

	case OpMonitorenter:
		obj := f.Pop()
		if obj.Ref == nil {
			return in.throwNPE()
		}
		obj.Ref.Lock.Lock()
		obj.Ref.Lock.Unlock()
	case OpMonitorexit:
		f.Pop()

	case OpWide:
		return in.execWide(f, ins)

	default:
		return step{}, &VMError{Msg: fmt.Sprintf("unimplemented opcode 0x%02x", ins.Op)}
	}

	return step{action: stepNextAction}, nil
}

func cmp64(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// cmpFloat implements fcmpl/fcmpg and dcmpl/dcmpg: NaN compares as -1
// under the 'l' (less) variant, +1 under the 'g' (greater) variant
// (§4.10); which way a following conditional branch goes on NaN depends
// on the variant the bytecode chose.
func cmpFloat(a, b float64, nanIsGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanIsGreater {
			return 1
		}
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatToInt32(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func floatToInt64(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

func compareUnary(op byte, v int32) bool {
	switch op {
	case OpIfeq:
		return v == 0
	case OpIfne:
		return v != 0
	case OpIflt:
		return v < 0
	case OpIfge:
		return v >= 0
	case OpIfgt:
		return v > 0
	case OpIfle:
		return v <= 0
	}
	return false
}

func compareBinaryInt(op byte, a, b int32) bool {
	switch op {
	case OpIfIcmpeq:
		return a == b
	case OpIfIcmpne:
		return a != b
	case OpIfIcmplt:
		return a < b
	case OpIfIcmpge:
		return a >= b
	case OpIfIcmpgt:
		return a > b
	case OpIfIcmple:
		return a <= b
	}
	return false
}

func (in *Interp) execWide(f *Frame, ins Instruction) (step, error) {
	sub := byte(ins.Index)
	switch sub {
	case OpIload, OpFload, OpAload, OpLload, OpDload:
		f.Push(f.GetLocal(ins.Var))
	case OpIstore, OpFstore, OpAstore, OpLstore, OpDstore:
		f.SetLocal(ins.Var, f.Pop())
	case OpIinc:
		v := f.GetLocal(ins.Var)
		f.SetLocal(ins.Var, IntVal(v.Int32()+ins.Const))
	case OpRet:
		return step{action: stepJumpAction, pc: int(f.GetLocal(ins.Var).Int32())}, nil
	default:
		return step{}, &VMError{Msg: fmt.Sprintf("unsupported wide sub-opcode 0x%02x", sub)}
	}
	return step{action: stepNextAction}, nil
}
