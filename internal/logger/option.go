package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// coreWithLevel overrides the level of a wrapped core in both directions,
// so one component can log at debug while the rest stays at info.
type coreWithLevel struct {
	zapcore.Core

	// level is the minimum level this core processes.
	level zapcore.Level
}

// Enabled reports whether l passes the overriding level.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to ce when the entry passes the overriding level.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the overriding level on the derived core.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		Core:  c.Core.With(fields),
		level: c.level,
	}
}

// WithLevel is a zap option replacing the logger's level with lvl.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &coreWithLevel{Core: core, level: lvl}
	})
}

// WithContextLevel returns a context whose logger uses lvl instead of the
// shared level. Loggers derived from it keep lvl.
func WithContextLevel(ctx context.Context, lvl zapcore.Level) context.Context {
	return ToContext(ctx, FromContext(ctx).WithOptions(WithLevel(lvl)))
}
