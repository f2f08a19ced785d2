// Package diagnostics provides the small leveled logger every other
// package reports through instead of calling fmt.Println directly.
// Level names (SEVERE, WARNING, INFO, FINE) follow the java.util.logging
// convention the JVM's own diagnostics use, mirrored by the jacobin
// fragments' log/trace split in the retrieval pack.
package diagnostics

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/stephens2424/writerset"
)

// Level orders the four levels this logger recognizes, least to most
// severe.
type Level int

const (
	Fine Level = iota
	Info
	Warning
	Severe
)

func (l Level) String() string {
	switch l {
	case Fine:
		return "FINE"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Severe:
		return "SEVERE"
	default:
		return "UNKNOWN"
	}
}

// Logger fans messages out to every attached sink above its configured
// threshold. The zero value is not usable; build one with New. A host
// can Attach an additional io.Writer (a test buffer, a log file)
// without touching any call site that already holds a *Logger.
type Logger struct {
	mu        sync.Mutex
	threshold Level
	sinks     *writerset.WriterSet
}

// New builds a Logger writing to sinks at or above threshold. stderr is
// always attached first, matching the teacher's CLI which reports
// errors on os.Stderr.
func New(threshold Level) *Logger {
	ws := writerset.New()
	ws.Add(os.Stderr)
	return &Logger{threshold: threshold, sinks: ws}
}

// Attach adds an additional sink, e.g. an in-memory buffer a test wants
// to assert against.
func (l *Logger) Attach(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks.Add(w)
}

// Detach removes a previously attached sink.
func (l *Logger) Detach(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks.Remove(w)
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.threshold {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.sinks, "[%s] %s\n", level, fmt.Sprintf(format, args...))
}

func (l *Logger) Fine(format string, args ...interface{})    { l.log(Fine, format, args...) }
func (l *Logger) Info(format string, args ...interface{})    { l.log(Info, format, args...) }
func (l *Logger) Warning(format string, args ...interface{}) { l.log(Warning, format, args...) }
func (l *Logger) Severe(format string, args ...interface{})  { l.log(Severe, format, args...) }
