package classfile

import "fmt"

// BaseType is one of the eight JVM primitive type codes, or the special
// V (void, return-type only) and L/[ markers used during parsing (§3).
type BaseType byte

const (
	TBoolean BaseType = 'Z'
	TByte    BaseType = 'B'
	TChar    BaseType = 'C'
	TShort   BaseType = 'S'
	TInt     BaseType = 'I'
	TLong    BaseType = 'J'
	TFloat   BaseType = 'F'
	TDouble  BaseType = 'D'
	TVoid    BaseType = 'V'
	TRef     BaseType = 'L'
	TArray   BaseType = '['
)

// FieldType is a parsed field descriptor: a primitive, a class reference,
// or a (possibly nested) array of one of those (§3).
type FieldType struct {
	Base      BaseType
	ClassName string     // set when Base == TRef
	Elem      *FieldType // set when Base == TArray
}

func (t *FieldType) String() string {
	switch t.Base {
	case TRef:
		return "L" + t.ClassName + ";"
	case TArray:
		return "[" + t.Elem.String()
	default:
		return string(t.Base)
	}
}

// IsCategory2 reports whether a value of this type occupies two stack/
// local slots (§3: long, double are category-2).
func (t *FieldType) IsCategory2() bool { return t.Base == TLong || t.Base == TDouble }

// Size returns the primitive byte width used by the layout engine (§4.4).
// References (both plain and array) are a single pointer-width slot.
func (t *FieldType) Size(ptrWidth int) int {
	switch t.Base {
	case TBoolean, TByte:
		return 1
	case TChar, TShort:
		return 2
	case TInt, TFloat:
		return 4
	case TLong, TDouble:
		return 8
	case TRef, TArray:
		return ptrWidth
	default:
		panic(fmt.Sprintf("descriptor: no instance size for base type %q", t.Base))
	}
}

// ParseFieldType parses the field descriptor at the start of s (§4.3); s
// may continue past it, and this returns how many bytes of s were
// consumed. A truncated descriptor (such as a class reference with no
// closing ';') is an error.
func ParseFieldType(s string) (*FieldType, int, error) {
	if len(s) == 0 {
		return nil, 0, fmt.Errorf("descriptor: empty field descriptor")
	}
	switch b := BaseType(s[0]); b {
	case TBoolean, TByte, TChar, TShort, TInt, TLong, TFloat, TDouble:
		return &FieldType{Base: b}, 1, nil
	case TRef:
		end := indexByte(s[1:], ';')
		if end < 0 {
			return nil, 0, fmt.Errorf("descriptor: unterminated class reference in %q", s)
		}
		name := s[1 : 1+end]
		return &FieldType{Base: TRef, ClassName: name}, end + 2, nil
	case TArray:
		elem, n, err := ParseFieldType(s[1:])
		if err != nil {
			return nil, 0, fmt.Errorf("descriptor: array element of %q: %w", s, err)
		}
		return &FieldType{Base: TArray, Elem: elem}, n + 1, nil
	default:
		return nil, 0, fmt.Errorf("descriptor: unknown base type %q in %q", string(b), s)
	}
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// MethodType is a parsed method descriptor: `(<params>)<return>` (§3).
type MethodType struct {
	Params []*FieldType
	Return *FieldType // Base == TVoid for a void return
}

// ArgSlots returns the number of operand-stack/local slots the parameter
// list occupies, counting category-2 params twice (§3, §4.11).
func (m *MethodType) ArgSlots() int {
	n := 0
	for _, p := range m.Params {
		if p.IsCategory2() {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// ParseMethodType parses a method descriptor (§4.3).
func ParseMethodType(s string) (*MethodType, error) {
	if len(s) == 0 || s[0] != '(' {
		return nil, fmt.Errorf("descriptor: method descriptor %q must start with '('", s)
	}
	i := 1
	var params []*FieldType
	for i < len(s) && s[i] != ')' {
		ft, n, err := ParseFieldType(s[i:])
		if err != nil {
			return nil, fmt.Errorf("descriptor: parsing parameter in %q: %w", s, err)
		}
		params = append(params, ft)
		i += n
	}
	if i >= len(s) {
		return nil, fmt.Errorf("descriptor: method descriptor %q missing ')'", s)
	}
	i++ // skip ')'

	rest := s[i:]
	if rest == string(TVoid) {
		return &MethodType{Params: params, Return: &FieldType{Base: TVoid}}, nil
	}
	ret, n, err := ParseFieldType(rest)
	if err != nil {
		return nil, fmt.Errorf("descriptor: parsing return type in %q: %w", s, err)
	}
	if n != len(rest) {
		return nil, fmt.Errorf("descriptor: trailing data after return type in %q", s)
	}
	return &MethodType{Params: params, Return: ret}, nil
}
