package vm

import "fmt"

// LinkageError reports a class-loading/linking failure (§4.7, §4.12):
// not found, malformed, or otherwise unusable. It is a Go error, not a
// Java Throwable — ClassLoader.ForName runs before there is necessarily
// any loaded Throwable hierarchy to construct one from (bootstrapping
// java/lang/Class itself can fail this way).
type LinkageError struct {
	ClassName string
	Reason    string
	Err       error
}

func (e *LinkageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.ClassName, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.ClassName)
}

func (e *LinkageError) Unwrap() error { return e.Err }

// VMError reports an internal interpreter fault that has no Java-level
// representative: a malformed bytecode stream, an out-of-range constant
// pool index past what FormatCheck already validated, a frame depth
// accounting bug. Distinct from Throw so callers can tell "the running
// program threw" apart from "the interpreter itself is broken."
type VMError struct {
	Msg string
	Err error
}

func (e *VMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *VMError) Unwrap() error { return e.Err }

// Throw wraps a live Java exception/error object in flight through the
// interpreter (§4.12): Interp.Invoke returns it when a throw unwinds past
// the invoked method's frame with no handler, and the calling frame's run
// loop uses it to drive its own exception-table search.
type Throw struct {
	Exception *Object
}

func (t *Throw) Error() string {
	return fmt.Sprintf("uncaught %s", t.Exception.DebugClassName())
}

// MessageFieldName is the instance field java/lang/Throwable stores its
// detail message under; the bootstrap Throwable classfile wired in by
// pkg/govm declares it, so VM-originated throwables populate it the same
// way user code's `new Foo("msg")` would via <init>.
const MessageFieldName = "detailMessage"

// StackTraceFieldName names the field the bootstrap Throwable classfile
// declares for getStackTrace()/printStackTrace(); this core never writes
// through it directly, since fillInStackTrace (below) keeps the captured
// frames as a separate string snapshot on Object rather than allocating
// StackTraceElement instances into it (§4.13).
const StackTraceFieldName = "stackTrace"

// NewThrowable allocates an instance of exceptionClass, sets its message
// (if non-empty) and captures the current call stack into its hidden
// trace snapshot — the behavior of calling `new FooException(msg)` followed
// by the implicit fillInStackTrace() every Throwable constructor chains
// to, collapsed into one step for VM-originated exceptions (a
// NullPointerException from a bad getfield, for instance) that never run
// actual Java constructor bytecode (§4.12, §4.13; see SPEC_FULL.md, C12,
// for why fillInStackTrace always overwrites rather than appending).
func (in *Interp) NewThrowable(className, message string) (*Object, error) {
	class, err := in.Loader.ForName(className)
	if err != nil {
		return nil, err
	}
	obj := in.Heap.AllocInstance(class)
	if message != "" {
		strObj := in.NewString(message)
		if f, ok := class.Layout.FieldByName(MessageFieldName); ok {
			obj.SetField(f, RefVal(strObj))
		}
	}
	in.fillInStackTrace(class, obj)
	return obj, nil
}

// fillInStackTrace snapshots the current call stack into obj's hidden
// trace field. Elements are stored as formatted CallStackEntry strings
// rather than allocated java/lang/StackTraceElement instances — this
// core's bootstrap set never registers that class, so there is nothing
// to allocate into; Object.StackTrace returns this string snapshot.
func (in *Interp) fillInStackTrace(class *Class, obj *Object) {
	snap := in.Stack.Snapshot()
	trace := make([]string, len(snap))
	for i, e := range snap {
		trace[i] = fmt.Sprintf("%s.%s(%s:%d)", e.Class, e.Method, e.Descriptor, e.PC)
	}
	obj.trace = trace
}
