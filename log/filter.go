package log

import "go.uber.org/zap/zapcore"

// FilterFieldsCore drops fields with matching keys before they reach core.
// Used to keep bearer credentials out of log output.
func FilterFieldsCore(core zapcore.Core, dropKeys ...string) zapcore.Core {
	drop := make(map[string]struct{}, len(dropKeys))
	for _, key := range dropKeys {
		if key != "" {
			drop[key] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return core
	}
	return redactingCore{Core: core, drop: drop}
}

type redactingCore struct {
	zapcore.Core
	drop map[string]struct{}
}

func (c redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return redactingCore{Core: c.Core.With(c.filter(fields)), drop: c.drop}
}

// Check must register the wrapper, not the inner core, or Write is bypassed.
func (c redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.filter(fields))
}

func (c redactingCore) filter(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, field := range fields {
		if _, ok := c.drop[field.Key]; ok {
			continue
		}
		out = append(out, field)
	}
	return out
}
