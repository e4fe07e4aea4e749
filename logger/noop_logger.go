package logger

// NoOpLogger discards every entry. It is the default for components that
// are not handed a logger.
//
// Tests may set any of the hook funcs to observe entries at that level.
// Hooks survive With, WithPath and WithComponent, which return the receiver.
type NoOpLogger struct {
	DebugwFunc func(string, ...any)
	InfowFunc  func(string, ...any)
	WarnwFunc  func(string, ...any)
	ErrorwFunc func(string, ...any)
	FatalwFunc func(string, ...any)
}

// NewNoOpLogger returns a Logger that discards all entries.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func call(hook func(string, ...any), msg string, kvs []any) {
	if hook != nil {
		hook(msg, kvs...)
	}
}

func (l *NoOpLogger) Debugw(msg string, kvs ...any) { call(l.DebugwFunc, msg, kvs) }
func (l *NoOpLogger) Infow(msg string, kvs ...any)  { call(l.InfowFunc, msg, kvs) }
func (l *NoOpLogger) Warnw(msg string, kvs ...any)  { call(l.WarnwFunc, msg, kvs) }
func (l *NoOpLogger) Errorw(msg string, kvs ...any) { call(l.ErrorwFunc, msg, kvs) }

// Fatalw never exits.
func (l *NoOpLogger) Fatalw(msg string, kvs ...any) { call(l.FatalwFunc, msg, kvs) }

func (l *NoOpLogger) With(...any) Logger          { return l }
func (l *NoOpLogger) WithPath(string) Logger      { return l }
func (l *NoOpLogger) WithComponent(string) Logger { return l }
