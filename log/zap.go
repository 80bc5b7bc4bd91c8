package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

var (
	Any      = zap.Any
	Bool     = zap.Bool
	Duration = zap.Duration
	Float32  = zap.Float32
	Float64  = zap.Float64
	Int      = zap.Int
	Int32    = zap.Int32
	Int64    = zap.Int64
	String   = zap.String
	Strings  = zap.Strings
	Time     = zap.Time
	Uint     = zap.Uint
)

func ErrorField(err error) Field {
	return zap.Error(err)
}

func WithCaller(enabled bool) Option {
	return zap.WithCaller(enabled)
}

func AddCallerSkip(skip int) Option {
	return zap.AddCallerSkip(skip)
}

// WithFilter restricts the output to entries matching the zapfilter rules.
// Example: "*:replay.* info+:*"
func WithFilter(rules string) (Option, error) {
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}), nil
}

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}
