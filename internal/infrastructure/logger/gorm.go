package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM's output through zap. Statements run inside a
// request are logged with that request's fields (request_id, user_id,
// trace_id). Record-not-found is not logged; repositories translate it.
type GormLogger struct {
	base          *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger maps the application log level: debug and info log every
// statement, warn logs slow statements and errors, error logs errors only.
func NewGormLogger(l *zap.Logger, level string, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{base: l.Named("gorm"), level: gormLevel(level), slowThreshold: slowThreshold}
}

func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug", "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.forContext(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.forContext(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.forContext(ctx).Sugar().Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent || errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed >= l.slowThreshold

	var log func(string, ...zap.Field)
	switch {
	case err != nil:
		log = l.forContext(ctx).Error
	case slow && l.level >= gormlogger.Warn:
		log = l.forContext(ctx).Warn
	case l.level >= gormlogger.Info:
		log = l.forContext(ctx).Debug
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql)}
	switch {
	case err != nil:
		log("SQL error", append(fields, zap.Error(err))...)
	case slow:
		log("Slow SQL", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	default:
		log("SQL", fields...)
	}
}

// forContext prefers the request logger carried by ctx
func (l *GormLogger) forContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if _, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return FromContext(ctx).Named("gorm")
		}
	}
	return l.base
}
