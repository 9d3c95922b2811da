package glog

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger 是 GLogger 基于 zap 的实现。
type zapLogger struct {
	base   *zap.Logger
	kv     *zap.Logger // 多一层 log() 调用
	sugar  *zap.SugaredLogger
	level  zap.AtomicLevel
	config *Config
}

func newZapLogger(config *Config) (GLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	writers, err := buildWriters(config)
	if err != nil {
		return nil, err
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	level := zap.NewAtomicLevelAt(zapcore.Level(config.Level))
	core := zapcore.NewCore(buildEncoder(config), zapcore.AddSync(w), level)

	fields := make([]zap.Field, 0, len(config.InitialFields))
	for k, v := range config.InitialFields {
		fields = append(fields, zap.Any(k, v))
	}

	l := zap.New(core, buildOptions(config)...).With(fields...)
	return newFromBase(l, level, config), nil
}

func newFromBase(base *zap.Logger, level zap.AtomicLevel, config *Config) *zapLogger {
	return &zapLogger{
		base:   base,
		kv:     base.WithOptions(zap.AddCallerSkip(1)),
		sugar:  base.Sugar(),
		level:  level,
		config: config,
	}
}

func (l *zapLogger) clone(base *zap.Logger) *zapLogger {
	return newFromBase(base, l.level, l.config)
}

func (l *zapLogger) With(args ...interface{}) GLogger {
	fields, err := toFields(args)
	if err != nil {
		l.base.Warn("glog: invalid With arguments", zap.Error(err))
	}
	return l.clone(l.base.With(fields...))
}

func (l *zapLogger) Named(name string) GLogger {
	return l.clone(l.base.Named(name))
}

func (l *zapLogger) log(lvl zapcore.Level, msg string, args []interface{}) {
	ce := l.kv.Check(lvl, msg)
	if ce == nil {
		return
	}
	fields, err := toFields(args)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func (l *zapLogger) Debug(msg string, args ...interface{}) { l.log(zapcore.DebugLevel, msg, args) }
func (l *zapLogger) Info(msg string, args ...interface{})  { l.log(zapcore.InfoLevel, msg, args) }
func (l *zapLogger) Warn(msg string, args ...interface{})  { l.log(zapcore.WarnLevel, msg, args) }
func (l *zapLogger) Error(msg string, args ...interface{}) { l.log(zapcore.ErrorLevel, msg, args) }
func (l *zapLogger) Fatal(msg string, args ...interface{}) { l.log(zapcore.FatalLevel, msg, args) }

func (l *zapLogger) Debugf(format string, v ...interface{}) { l.sugar.Debugf(format, v...) }
func (l *zapLogger) Infof(format string, v ...interface{})  { l.sugar.Infof(format, v...) }
func (l *zapLogger) Warnf(format string, v ...interface{})  { l.sugar.Warnf(format, v...) }
func (l *zapLogger) Errorf(format string, v ...interface{}) { l.sugar.Errorf(format, v...) }

func (l *zapLogger) DebugContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(zapcore.DebugLevel, msg, append(args, traceArgs(ctx)...))
}

func (l *zapLogger) InfoContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(zapcore.InfoLevel, msg, append(args, traceArgs(ctx)...))
}

func (l *zapLogger) WarnContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(zapcore.WarnLevel, msg, append(args, traceArgs(ctx)...))
}

func (l *zapLogger) ErrorContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(zapcore.ErrorLevel, msg, append(args, traceArgs(ctx)...))
}

func (l *zapLogger) Enabled(level Level) bool {
	return l.level.Enabled(zapcore.Level(level))
}

// SetLevel 修改共享的 AtomicLevel，所有派生的 logger 同时生效。
func (l *zapLogger) SetLevel(level Level) {
	l.level.SetLevel(zapcore.Level(level))
}

func (l *zapLogger) Config() *Config {
	return l.config
}

func (l *zapLogger) Sync() error {
	return l.base.Sync()
}

// toFields 将 key/value 参数转换为 zap 字段。
func toFields(args []interface{}) ([]zap.Field, error) {
	if len(args) == 0 {
		return nil, nil
	}
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		if f, ok := args[i].(zap.Field); ok {
			fields = append(fields, f)
			i--
			continue
		}
		key, ok := args[i].(string)
		if !ok {
			return fields, fmt.Errorf("%w: %v", ErrKeyNotString, args[i])
		}
		if i+1 >= len(args) {
			return fields, fmt.Errorf("%w: dangling key %q", ErrInvalidKeyValuePairs, key)
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields, nil
}

func traceArgs(ctx context.Context) []interface{} {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []interface{}{"trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String()}
}

func buildEncoder(config *Config) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	if config.Development {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	if keys := config.EncoderConfig; keys != nil {
		setKey(&ec.MessageKey, keys.MessageKey)
		setKey(&ec.LevelKey, keys.LevelKey)
		setKey(&ec.TimeKey, keys.TimeKey)
		setKey(&ec.CallerKey, keys.CallerKey)
		setKey(&ec.StacktraceKey, keys.StacktraceKey)
	}
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	if config.TimeFormat != "" {
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(config.TimeFormat)
	} else {
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if config.Encoding == JSONEncoding {
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func setKey(dst *string, key string) {
	if key != "" {
		*dst = key
	}
}

func buildOptions(config *Config) []zap.Option {
	var opts []zap.Option
	if config.Development {
		opts = append(opts, zap.Development())
	}
	if !config.DisableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if !config.DisableStacktrace {
		stackLevel := zapcore.ErrorLevel
		if config.Development {
			stackLevel = zapcore.WarnLevel
		}
		opts = append(opts, zap.AddStacktrace(stackLevel))
	}
	return opts
}
