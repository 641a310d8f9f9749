// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init 配置全局 zerolog logger，所有服务在启动时调用一次
func Init(serviceName, level string, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(ParseLevel(level))
	zlog.Logger = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
	// 没有注入 logger 的 context 也能拿到全局 logger
	zerolog.DefaultContextLogger = &zlog.Logger
}

// ParseLevel 解析日志级别，无法识别时回落到 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Ctx 返回绑定在 context 上的 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithTraceID 派生一个带 trace_id 字段的 logger 并存入 context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	l := zlog.With().Str("trace_id", traceID).Logger()
	return l.WithContext(ctx)
}

// Info 是全局 logger 的快捷方式
func Info() *zerolog.Event { return zlog.Info() }

func Warn() *zerolog.Event { return zlog.Warn() }

func Error() *zerolog.Event { return zlog.Error() }

func Fatal() *zerolog.Event { return zlog.Fatal() }
