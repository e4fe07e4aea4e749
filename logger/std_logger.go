package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "LEVEL(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel maps a level name (case-insensitive) to a Level. An empty
// string is LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("logger: unknown level %q", s)
	}
}

type field struct {
	key   string
	value any
}

// StdLogger writes one line per entry through a standard library
// *log.Logger:
//
//	2024/05/01 12:00:00 INFO  lock: lock granted path=/docs token=opaquelocktoken:...
//
// The component, when set, prefixes the message. Other context fields come
// first in the order they were added, then the call's own key/value pairs.
type StdLogger struct {
	out       *log.Logger
	minLevel  Level
	component string
	fields    []field
}

// NewStdLogger returns a logger writing to stderr that drops entries below
// the named level. Unknown level names fall back to info.
func NewStdLogger(level string) Logger {
	lvl, _ := ParseLevel(level)
	return NewWriterLogger(os.Stderr, lvl, log.LstdFlags)
}

// NewWriterLogger returns a logger writing to w with the given log flags.
func NewWriterLogger(w io.Writer, minLevel Level, flags int) *StdLogger {
	return &StdLogger{out: log.New(w, "", flags), minLevel: minLevel}
}

func (l *StdLogger) Debugw(msg string, kvs ...any) { l.log(LevelDebug, msg, kvs) }
func (l *StdLogger) Infow(msg string, kvs ...any)  { l.log(LevelInfo, msg, kvs) }
func (l *StdLogger) Warnw(msg string, kvs ...any)  { l.log(LevelWarn, msg, kvs) }
func (l *StdLogger) Errorw(msg string, kvs ...any) { l.log(LevelError, msg, kvs) }

// Fatalw logs and exits with status 1.
func (l *StdLogger) Fatalw(msg string, kvs ...any) {
	l.log(LevelFatal, msg, kvs)
	os.Exit(1)
}

func (l *StdLogger) log(level Level, msg string, kvs []any) {
	if level < l.minLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s ", level)
	if l.component != "" {
		b.WriteString(l.component)
		b.WriteString(": ")
	}
	b.WriteString(msg)
	for _, f := range l.fields {
		writeField(&b, f.key, f.value)
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			writeField(&b, key, kvs[i+1])
		}
	}
	if len(kvs)%2 == 1 {
		writeField(&b, "!BADKEY", kvs[len(kvs)-1])
	}
	_ = l.out.Output(3, b.String())
}

// writeField appends " key=value", quoting values that contain spaces,
// quotes or equals signs so lines stay machine-splittable.
func writeField(b *strings.Builder, key string, value any) {
	s := fmt.Sprint(value)
	if err, ok := value.(error); ok && err != nil {
		s = err.Error()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		s = strconv.Quote(s)
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(s)
}

// with returns a copy carrying extra fields. A key already present is
// replaced in place so it keeps its position.
func (l *StdLogger) with(extra ...field) *StdLogger {
	c := *l
	c.fields = make([]field, len(l.fields), len(l.fields)+len(extra))
	copy(c.fields, l.fields)
next:
	for _, f := range extra {
		for i := range c.fields {
			if c.fields[i].key == f.key {
				c.fields[i].value = f.value
				continue next
			}
		}
		c.fields = append(c.fields, f)
	}
	return &c
}

func (l *StdLogger) With(kvs ...any) Logger {
	extra := make([]field, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			extra = append(extra, field{key, kvs[i+1]})
		}
	}
	return l.with(extra...)
}

func (l *StdLogger) WithPath(path string) Logger {
	return l.with(field{"path", path})
}

// WithComponent sets the message prefix. Nested components are joined
// with a dot, e.g. "davfs.http".
func (l *StdLogger) WithComponent(name string) Logger {
	c := *l
	if c.component == "" {
		c.component = name
	} else {
		c.component += "." + name
	}
	return &c
}
