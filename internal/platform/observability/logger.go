package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trendora/api/internal/platform/requestctx"
)

const defaultLogLevel = zapcore.InfoLevel

// NewLogger builds a JSON zap logger using Cloud Logging key names. An empty or unknown level
// falls back to info.
func NewLogger(level, service string) (*zap.Logger, error) {
	atomic := zap.NewAtomicLevelAt(defaultLogLevel)
	if trimmed := strings.ToLower(strings.TrimSpace(level)); trimmed != "" {
		_ = atomic.UnmarshalText([]byte(trimmed))
	}

	cfg := zap.Config{
		Level:    atomic,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeLevel:   zapcore.CapitalLevelEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger, nil
}

// ServiceLogger adapts zap to the event logger signature used by services. The request-scoped
// logger wins over base when ctx carries one.
func ServiceLogger(base *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if base == nil {
		base = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}
		zfields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zfields = append(zfields, zap.Any(k, v))
		}
		if strings.HasSuffix(event, ".failed") {
			logger.Warn(event, zfields...)
			return
		}
		logger.Info(event, zfields...)
	}
}

// PrintfAdapter adapts zap to printf-style logging interfaces.
type PrintfAdapter struct {
	logger *zap.SugaredLogger
}

// NewPrintfAdapter creates a PrintfAdapter backed by the supplied logger.
func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{logger: logger.Sugar()}
}

func (a PrintfAdapter) Printf(format string, args ...any) {
	a.logger.Infof(format, args...)
}
