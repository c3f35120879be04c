package logger

import (
	"context"
	"sort"

	pcontext "github.com/leyden/aotctl/pkg/context"
)

// WithContext returns a logger that prefixes every entry with the run
// tracing fields carried by ctx (run id and operation)
func WithContext(ctx context.Context, log Logger) Logger {
	if ctx == nil {
		return log
	}
	return &tracedLogger{ctx: ctx, next: log}
}

type tracedLogger struct {
	ctx  context.Context
	next Logger
}

func (t *tracedLogger) with(fields []Field) []Field {
	tracing := pcontext.TracingFields(t.ctx)
	// WithStage owns the stage prefix
	delete(tracing, "stage")
	if len(tracing) == 0 {
		return fields
	}

	keys := make([]string, 0, len(tracing))
	for k := range tracing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys)+len(fields))
	for _, k := range keys {
		out = append(out, WithField(k, tracing[k]))
	}
	return append(out, fields...)
}

func (t *tracedLogger) Info(msg string, fields ...Field)    { t.next.Info(msg, t.with(fields)...) }
func (t *tracedLogger) Error(msg string, fields ...Field)   { t.next.Error(msg, t.with(fields)...) }
func (t *tracedLogger) Warn(msg string, fields ...Field)    { t.next.Warn(msg, t.with(fields)...) }
func (t *tracedLogger) Debug(msg string, fields ...Field)   { t.next.Debug(msg, t.with(fields)...) }
func (t *tracedLogger) Success(msg string, fields ...Field) { t.next.Success(msg, t.with(fields)...) }

func (t *tracedLogger) WithStage(stage string) Logger {
	return &tracedLogger{ctx: t.ctx, next: t.next.WithStage(stage)}
}
