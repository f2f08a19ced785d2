package vm

import "fmt"

// Instruction is one decoded bytecode (§4.10): the opcode plus whichever
// operand fields it carries. Unused fields are simply zero; callers
// switch on Op to know which ones apply.
type Instruction struct {
	Op  byte
	PC  int // address of the opcode byte itself
	Len int // total encoded length, so PC+Len is the next instruction

	Var    int    // local variable index (iload, istore, iinc, wide forms, ret)
	Index  uint16 // constant-pool index (ldc family, field/method refs, new, checkcast...)
	Const  int32  // sign-extended immediate (bipush, sipush, iinc's const, newarray atype)
	Branch int32  // signed offset relative to PC (if*, goto, jsr, goto_w, jsr_w)

	// invokeinterface's count operand (ignored by dispatch, kept for
	// fidelity with the classfile format).
	InterfaceCount int

	// multianewarray's dimension count (§4.10; execution is out of scope
	// per this core's non-goals, but decoding still has to consume the
	// operand correctly so PC accounting for any following bytecode in
	// the same method stays right).
	Dimensions int

	// tableswitch / lookupswitch
	DefaultTarget int32
	Low, High     int32   // tableswitch
	Targets       []int32 // tableswitch: indexed by (value-Low); lookupswitch: parallel to Matches
	Matches       []int32 // lookupswitch only
}

// Decode reads one instruction starting at code[pc] (§4.10). It returns
// an error for an unrecognized opcode or an operand run past the end of
// code; it does not itself validate branch targets or operand semantics
// (that's the interpreter's job at execution time, or a verifier's,
// which is out of scope).
func Decode(code []byte, pc int) (Instruction, error) {
	if pc < 0 || pc >= len(code) {
		return Instruction{}, fmt.Errorf("decode: pc %d out of range [0,%d)", pc, len(code))
	}
	op := code[pc]
	in := Instruction{Op: op, PC: pc}

	u8 := func(off int) (byte, error) {
		i := pc + off
		if i >= len(code) {
			return 0, fmt.Errorf("decode: truncated operand at pc %d", pc)
		}
		return code[i], nil
	}
	s16 := func(off int) (int32, error) {
		hi, err := u8(off)
		if err != nil {
			return 0, err
		}
		lo, err := u8(off + 1)
		if err != nil {
			return 0, err
		}
		return int32(int16(uint16(hi)<<8 | uint16(lo))), nil
	}
	u16 := func(off int) (uint16, error) {
		hi, err := u8(off)
		if err != nil {
			return 0, err
		}
		lo, err := u8(off + 1)
		if err != nil {
			return 0, err
		}
		return uint16(hi)<<8 | uint16(lo), nil
	}
	s32 := func(off int) (int32, error) {
		var v uint32
		for i := 0; i < 4; i++ {
			b, err := u8(off + i)
			if err != nil {
				return 0, err
			}
			v = v<<8 | uint32(b)
		}
		return int32(v), nil
	}

	switch op {
	case OpNop, OpAconstNull,
		OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5,
		OpLconst0, OpLconst1, OpFconst0, OpFconst1, OpFconst2, OpDconst0, OpDconst1,
		OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload,
		OpIastore, OpLastore, OpFastore, OpDastore, OpAastore, OpBastore, OpCastore, OpSastore,
		OpPop, OpPop2, OpDup, OpDupX1, OpDupX2, OpDup2, OpDup2X1, OpDup2X2, OpSwap,
		OpIadd, OpLadd, OpFadd, OpDadd, OpIsub, OpLsub, OpFsub, OpDsub,
		OpImul, OpLmul, OpFmul, OpDmul, OpIdiv, OpLdiv, OpFdiv, OpDdiv,
		OpIrem, OpLrem, OpFrem, OpDrem, OpIneg, OpLneg, OpFneg, OpDneg,
		OpIshl, OpLshl, OpIshr, OpLshr, OpIushr, OpLushr, OpIand, OpLand, OpIor, OpLor, OpIxor, OpLxor,
		OpI2l, OpI2f, OpI2d, OpL2i, OpL2f, OpL2d, OpF2i, OpF2l, OpF2d, OpD2i, OpD2l, OpD2f,
		OpI2b, OpI2c, OpI2s,
		OpLcmp, OpFcmpl, OpFcmpg, OpDcmpl, OpDcmpg,
		OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn,
		OpArraylength, OpAthrow, OpMonitorenter, OpMonitorexit,
		OpIload0, OpIload1, OpIload2, OpIload3,
		OpLload0, OpLload1, OpLload2, OpLload3,
		OpFload0, OpFload1, OpFload2, OpFload3,
		OpDload0, OpDload1, OpDload2, OpDload3,
		OpAload0, OpAload1, OpAload2, OpAload3,
		OpIstore0, OpIstore1, OpIstore2, OpIstore3,
		OpLstore0, OpLstore1, OpLstore2, OpLstore3,
		OpFstore0, OpFstore1, OpFstore2, OpFstore3,
		OpDstore0, OpDstore1, OpDstore2, OpDstore3,
		OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		in.Len = 1

	case OpBipush:
		v, err := u8(1)
		if err != nil {
			return in, err
		}
		in.Const = int32(int8(v))
		in.Len = 2

	case OpSipush:
		v, err := s16(1)
		if err != nil {
			return in, err
		}
		in.Const = v
		in.Len = 3

	case OpLdc:
		v, err := u8(1)
		if err != nil {
			return in, err
		}
		in.Index = uint16(v)
		in.Len = 2

	case OpLdcW, OpLdc2W:
		v, err := u16(1)
		if err != nil {
			return in, err
		}
		in.Index = v
		in.Len = 3

	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		v, err := u8(1)
		if err != nil {
			return in, err
		}
		in.Var = int(v)
		in.Len = 2

	case OpIinc:
		v, err := u8(1)
		if err != nil {
			return in, err
		}
		c, err := u8(2)
		if err != nil {
			return in, err
		}
		in.Var = int(v)
		in.Const = int32(int8(c))
		in.Len = 3

	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle,
		OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple,
		OpIfAcmpeq, OpIfAcmpne, OpGoto, OpJsr, OpIfnull, OpIfnonnull:
		v, err := s16(1)
		if err != nil {
			return in, err
		}
		in.Branch = v
		in.Len = 3

	case OpGotoW, OpJsrW:
		v, err := s32(1)
		if err != nil {
			return in, err
		}
		in.Branch = v
		in.Len = 5

	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		v, err := u16(1)
		if err != nil {
			return in, err
		}
		in.Index = v
		in.Len = 3

	case OpInvokeinterface:
		v, err := u16(1)
		if err != nil {
			return in, err
		}
		count, err := u8(3)
		if err != nil {
			return in, err
		}
		// byte at offset 4 is a reserved zero, consumed but unchecked.
		in.Index = v
		in.InterfaceCount = int(count)
		in.Len = 5

	case OpInvokedynamic:
		v, err := u16(1)
		if err != nil {
			return in, err
		}
		in.Index = v
		in.Len = 5

	case OpNewarray:
		v, err := u8(1)
		if err != nil {
			return in, err
		}
		in.Const = int32(v)
		in.Len = 2

	case OpMultianewarray:
		v, err := u16(1)
		if err != nil {
			return in, err
		}
		d, err := u8(3)
		if err != nil {
			return in, err
		}
		in.Index = v
		in.Dimensions = int(d)
		in.Len = 4

	case OpWide:
		return decodeWide(code, pc, u8, u16, s16)

	case OpTableswitch:
		return decodeTableswitch(code, pc, s32)

	case OpLookupswitch:
		return decodeLookupswitch(code, pc, s32)

	default:
		return in, fmt.Errorf("decode: unknown opcode 0x%02x at pc %d", op, pc)
	}

	return in, nil
}

// alignedOperandStart returns the first byte offset (relative to pc)
// after the padding that tableswitch/lookupswitch insert so their 32-bit
// operands land on a 4-byte address boundary measured from the start of
// the method's code array, not from pc itself (§4.10).
func alignedOperandStart(pc int) int {
	next := pc + 1
	pad := (4 - next%4) % 4
	return 1 + pad
}

func decodeTableswitch(code []byte, pc int, s32 func(int) (int32, error)) (Instruction, error) {
	in := Instruction{Op: OpTableswitch, PC: pc}
	off := alignedOperandStart(pc)

	def, err := s32(off)
	if err != nil {
		return in, err
	}
	low, err := s32(off + 4)
	if err != nil {
		return in, err
	}
	high, err := s32(off + 8)
	if err != nil {
		return in, err
	}
	if high < low {
		return in, fmt.Errorf("decode: tableswitch at pc %d has high %d < low %d", pc, high, low)
	}

	in.DefaultTarget = def
	in.Low = low
	in.High = high

	n := int(high - low + 1)
	in.Targets = make([]int32, n)
	base := off + 12
	for i := 0; i < n; i++ {
		t, err := s32(base + i*4)
		if err != nil {
			return in, err
		}
		in.Targets[i] = t
	}
	in.Len = base + n*4
	return in, nil
}

func decodeLookupswitch(code []byte, pc int, s32 func(int) (int32, error)) (Instruction, error) {
	in := Instruction{Op: OpLookupswitch, PC: pc}
	off := alignedOperandStart(pc)

	def, err := s32(off)
	if err != nil {
		return in, err
	}
	npairs, err := s32(off + 4)
	if err != nil {
		return in, err
	}
	if npairs < 0 {
		return in, fmt.Errorf("decode: lookupswitch at pc %d has negative npairs %d", pc, npairs)
	}

	in.DefaultTarget = def
	base := off + 8
	in.Matches = make([]int32, npairs)
	in.Targets = make([]int32, npairs)
	for i := 0; i < int(npairs); i++ {
		m, err := s32(base + i*8)
		if err != nil {
			return in, err
		}
		t, err := s32(base + i*8 + 4)
		if err != nil {
			return in, err
		}
		in.Matches[i] = m
		in.Targets[i] = t
	}
	in.Len = base + int(npairs)*8
	return in, nil
}

func decodeWide(code []byte, pc int, u8 func(int) (byte, error), u16 func(int) (uint16, error), s16 func(int) (int32, error)) (Instruction, error) {
	in := Instruction{Op: OpWide, PC: pc}
	sub, err := u8(1)
	if err != nil {
		return in, err
	}
	switch sub {
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		v, err := u16(2)
		if err != nil {
			return in, err
		}
		in.Var = int(v)
		in.Len = 4
	case OpIinc:
		v, err := u16(2)
		if err != nil {
			return in, err
		}
		c, err := s16(4)
		if err != nil {
			return in, err
		}
		in.Var = int(v)
		in.Const = c
		in.Len = 6
	default:
		return in, fmt.Errorf("decode: unsupported wide sub-opcode 0x%02x at pc %d", sub, pc)
	}
	// Stash the real opcode the wide form expands, in Index's low byte,
	// so the interpreter can dispatch on it without redecoding.
	in.Index = uint16(sub)
	return in, nil
}
