package logging

import (
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

type gormWriter struct {
	level zerolog.Level
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	l := Logger()
	l.WithLevel(w.level).Str("component", "gorm").Msgf(format, args...)
}

// GormLogger routes GORM's logging through zerolog. At debug level every
// statement is logged; otherwise only slow queries and errors.
func GormLogger(level string) gormlogger.Interface {
	logLevel := gormlogger.Warn
	writer := gormWriter{level: zerolog.WarnLevel}
	switch level {
	case "debug", "trace":
		logLevel = gormlogger.Info
		writer.level = zerolog.DebugLevel
	case "error":
		logLevel = gormlogger.Error
		writer.level = zerolog.ErrorLevel
	case "disabled", "off":
		logLevel = gormlogger.Silent
	}
	return gormlogger.New(writer, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
