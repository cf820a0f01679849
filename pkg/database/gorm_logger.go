package database

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/go-arcade/modelgate/pkg/log"
)

const defaultSlowSQL = time.Second

// GormLogger routes gorm statement logs through the package zap logger.
type GormLogger struct {
	Config gormlogger.Config
	Level  gormlogger.LogLevel
	log    *zap.SugaredLogger
}

func NewGormLogger(config gormlogger.Config, level gormlogger.LogLevel) *GormLogger {
	return &GormLogger{
		Config: config,
		Level:  level,
		log:    log.L().WithOptions(zap.AddCallerSkip(2)).Sugar().Named("gorm"),
	}
}

func defaultGormLogger(output bool) gormlogger.Interface {
	level := gormlogger.Warn
	if output {
		level = gormlogger.Info
	}
	return NewGormLogger(gormlogger.Config{
		SlowThreshold:             defaultSlowSQL,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	}, level)
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.Level = level
	clone.Config.LogLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.Level < gormlogger.Info {
		return
	}
	l.log.Infof(msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.Level < gormlogger.Warn {
		return
	}
	l.log.Warnf(msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.Level < gormlogger.Error {
		return
	}
	l.log.Errorf(msg, data...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && l.Level >= gormlogger.Error && (!errors.Is(err, gormlogger.ErrRecordNotFound) || !l.Config.IgnoreRecordNotFoundError) {
		l.log.Errorw("SQL query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
		return
	}

	if l.Config.SlowThreshold != 0 && elapsed > l.Config.SlowThreshold && l.Level >= gormlogger.Warn {
		l.log.Warnw("Slow SQL query", "sql", sql, "rows", rows, "elapsed", elapsed)
		return
	}

	if l.Level == gormlogger.Info {
		l.log.Debugw("SQL query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
