package classfile

// Access flags (the subset the interpreter core inspects; §6).
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
	AccNative     = 0x0100
)

// Supported classfile major version range (§6): up to Java 17.
const (
	MinSupportedMajor = 45
	MaxSupportedMajor = 61
)

// ClassFile is the decoded tree produced by Parse (C1). Most references
// are kept as indices into ConstantPool, but Parse does resolve each
// field's and method's Name and Descriptor to strings and each field's
// ConstantValue attribute to its pool entry.
type ClassFile struct {
	Name             string // supplied by the caller, for diagnostics only
	MinorVersion     uint16
	MajorVersion     uint16
	ConstantPool     []ConstantPoolEntry
	AccessFlags      uint16
	ThisClass        uint16
	SuperClass       uint16 // 0 means "no superclass" (java/lang/Object, or Object itself)
	Interfaces       []uint16
	Fields           []FieldInfo
	Methods          []MethodInfo
	BootstrapMethods []BootstrapMethod
	SourceFile       string
}

// ConstantPoolEntry is implemented by every constant pool tag's payload.
type ConstantPoolEntry interface {
	Tag() uint8
}

// reservedSlot occupies the second index of a Long/Double entry (§3: "the
// second index is unreadable"). Get on a reserved slot is always an error.
type reservedSlot struct{}

func (reservedSlot) Tag() uint8 { return 0 }

type ConstantUtf8 struct{ Value string }

func (*ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (*ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct{ Value float32 }

func (*ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct{ Value int64 }

func (*ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct{ Value float64 }

func (*ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (*ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (*ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (*ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (*ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (*ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (*ConstantNameAndType) Tag() uint8 { return TagNameAndType }

type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (*ConstantMethodHandle) Tag() uint8 { return TagMethodHandle }

type ConstantMethodType struct{ DescriptorIndex uint16 }

func (*ConstantMethodType) Tag() uint8 { return TagMethodType }

type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (*ConstantDynamic) Tag() uint8 { return TagDynamic }

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (*ConstantInvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

type ConstantModule struct{ NameIndex uint16 }

func (*ConstantModule) Tag() uint8 { return TagModule }

type ConstantPackage struct{ NameIndex uint16 }

func (*ConstantPackage) Tag() uint8 { return TagPackage }

// MethodInfo is a method the way §6 lays it out: flags, name, descriptor,
// attributes, with the Code attribute (if any) decoded eagerly since the
// interpreter always needs it.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	Code        *CodeAttribute // nil for abstract/native methods
}

func (m *MethodInfo) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }
func (m *MethodInfo) IsPrivate() bool  { return m.AccessFlags&AccPrivate != 0 }
func (m *MethodInfo) IsStaticInit() bool {
	return m.Name == "<clinit>" && m.Descriptor == "()V"
}

// FieldInfo is a field the way §6 lays it out.
type FieldInfo struct {
	AccessFlags    uint16
	Name           string
	Descriptor     string
	Attributes     []AttributeInfo
	ConstantValue  ConstantPoolEntry // non-nil only if a ConstantValue attribute was present
	HasConstantVal bool
}

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// AttributeInfo is a raw, undecoded attribute (name + payload bytes); most
// attributes the core doesn't care about (LineNumberTable, Signature, ...)
// stay in this shape forever.
type AttributeInfo struct {
	Name string
	Data []byte
}

// ExceptionHandler is one row of a Code attribute's exception table (§4.11).
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 means "catches anything" (finally)
}

// CodeAttribute is the decoded Code attribute (§6).
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	Attributes        []AttributeInfo
}

// BootstrapMethod is one row of the BootstrapMethods attribute, needed to
// decode (not execute) invokedynamic/Dynamic constant pool entries.
type BootstrapMethod struct {
	MethodRef          uint16
	BootstrapArguments []uint16
}
