package xlog

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// 编译时接口检查
var (
	_ Logger          = (*xlogger)(nil)
	_ LoggerWithLevel = (*xlogger)(nil)
)

// xlogger Logger 接口的实现
type xlogger struct {
	handler        slog.Handler
	levelVar       *slog.LevelVar
	onError        func(error)
	errorCount     *atomic.Uint64 // 派生 logger 共享
	inErrorHandler *atomic.Bool   // 防止 onError 递归调用，派生 logger 共享
}

func (l *xlogger) log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)
	if err := l.handler.Handle(ctx, r); err != nil {
		l.handleError(err)
	}
}

// handleError 处理内部错误（Handler.Handle 失败）
//
// 设计决策: CAS 保护导致并发期间部分错误跳过 onError 回调。
// errorCount 仍计入所有错误，onError 定位为 best-effort 通知。
func (l *xlogger) handleError(err error) {
	l.errorCount.Add(1)
	if l.onError == nil {
		return
	}
	if l.inErrorHandler.CompareAndSwap(false, true) {
		defer l.inErrorHandler.Store(false)
		defer func() {
			if r := recover(); r != nil {
				l.errorCount.Add(1)
			}
		}()
		l.onError(err)
	}
}

func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, msg, attrs)
}

func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, msg, attrs)
}

func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelWarn, msg, attrs)
}

func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelError, msg, attrs)
}

func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	return &xlogger{
		handler:        l.handler.WithAttrs(attrs),
		levelVar:       l.levelVar,
		onError:        l.onError,
		errorCount:     l.errorCount,
		inErrorHandler: l.inErrorHandler,
	}
}

func (l *xlogger) SetLevel(level Level) {
	l.levelVar.Set(slog.Level(level))
}

func (l *xlogger) GetLevel() Level {
	return Level(l.levelVar.Level())
}

func (l *xlogger) Enabled(ctx context.Context, level Level) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.handler.Enabled(ctx, slog.Level(level))
}

// ErrorCount 返回内部写入错误次数。
func (l *xlogger) ErrorCount() uint64 {
	return l.errorCount.Load()
}

// Discard 返回丢弃所有输出的 Logger，供库代码在未注入 logger 时使用。
func Discard() LoggerWithLevel {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelError + 4)
	return &xlogger{
		handler:        slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelVar}),
		levelVar:       levelVar,
		errorCount:     new(atomic.Uint64),
		inErrorHandler: new(atomic.Bool),
	}
}
