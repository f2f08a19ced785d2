package govm

import (
	"strings"
	"unicode/utf16"
	"unsafe"

	"github.com/govm-project/govm/pkg/vm"
)

// encodeUTF16BE mirrors pkg/vm's own internal interner encoding (§4.6):
// every String this runtime produces, interned or freshly constructed
// via `new String(...)`, stores its backing bytes the same way so
// goString's decode path doesn't need to branch on who allocated it.
func encodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[i*2] = byte(u >> 8)
		out[i*2+1] = byte(u)
	}
	return out
}

// goString decodes a java/lang/String instance's backing byte array
// back into a Go string, assuming the UTF-16BE layout encodeUTF16BE (and
// Interp.NewString) always use.
func goString(in *vm.Interp, s *vm.Object) string {
	if s == nil {
		return ""
	}
	f, ok := s.Class.Layout.FieldByName("value")
	if !ok {
		return ""
	}
	v := s.GetField(f)
	if v.Ref == nil {
		return ""
	}
	raw := v.Ref
	units := make([]uint16, raw.Length()/2)
	for i := range units {
		hi := raw.GetElem(i * 2).Int32()
		lo := raw.GetElem(i*2 + 1).Int32()
		units[i] = uint16(hi)<<8 | uint16(lo&0xFF)
	}
	return string(utf16.Decode(units))
}

// javaName renders a binary class name ("java/lang/String") in its
// source form ("java.lang.String"), the form Class.getName returns.
func javaName(binaryName string) string {
	return strings.ReplaceAll(binaryName, "/", ".")
}

// objectAddr exposes the bottom 32 bits of an object's Go pointer value,
// used only as an opaque, stable-for-the-process identity proxy
// (Object.hashCode, Object.toString, System.identityHashCode) — never
// dereferenced, never exposed as an actual pointer to Java code.
func objectAddr(o *vm.Object) int32 {
	return int32(uintptr(unsafe.Pointer(o)))
}
