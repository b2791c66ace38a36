package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the minimum severity a Logger emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat selects console (human-readable) or JSON log output.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LoggerConfig configures a Logger's level, format, and destination.
type LoggerConfig struct {
	Level  LogLevel
	Format LogFormat
	Output io.Writer
}

// Logger is the zerolog-backed logger every engine component logs through:
// cmd/ctf-runner's top-level run narration, plus the reporting package's
// own formatter/storage/progress output.
type Logger struct {
	logger zerolog.Logger
}

func newZerologWriter(cfg LoggerConfig) io.Writer {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Format == LogFormatText {
		return zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}
	return cfg.Output
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger builds a Logger from cfg, defaulting to os.Stdout and info
// level when unset.
func NewLogger(cfg LoggerConfig) *Logger {
	zlog := zerolog.New(newZerologWriter(cfg)).With().Timestamp().Logger().Level(zerologLevel(cfg.Level))
	return &Logger{logger: zlog}
}

// InitGlobalLogger installs cfg as zerolog's package-level global logger,
// the one github.com/rs/zerolog/log's bare Info()/Warn()/etc. calls write
// through (used by pkg/scheduler, pkg/supervisor, pkg/launcher, and
// pkg/janitor, none of which carry their own *Logger).
func InitGlobalLogger(cfg LoggerConfig) {
	log.Logger = zerolog.New(newZerologWriter(cfg)).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	switch level {
	case zerolog.DebugLevel:
		return l.logger.Debug()
	case zerolog.WarnLevel:
		return l.logger.Warn()
	case zerolog.ErrorLevel:
		return l.logger.Error()
	case zerolog.FatalLevel:
		return l.logger.Fatal()
	default:
		return l.logger.Info()
	}
}

func (l *Logger) log(level zerolog.Level, msg string, fields ...interface{}) {
	event := l.event(level)
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Debug logs msg at debug level with an optional run of key, value, key,
// value, ... fields.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(zerolog.DebugLevel, msg, fields...) }

// Info logs msg at info level.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(zerolog.InfoLevel, msg, fields...) }

// Warn logs msg at warn level.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(zerolog.WarnLevel, msg, fields...) }

// Error logs msg at error level.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(zerolog.ErrorLevel, msg, fields...) }

// Fatal logs msg at fatal level and exits the process.
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.log(zerolog.FatalLevel, msg, fields...) }

// WithField returns a child Logger that carries key on every subsequent
// call, used by cmd/ctf-runner to scope every line of one run's narration
// to its execution_id without repeating it at each call site.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// addFields appends a flat key, value, key, value, ... list onto event,
// matching the variadic convention every call site in this package uses.
func (l *Logger) addFields(event *zerolog.Event, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Str("error", "odd number of fields")
		return
	}

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}
		event.Interface(key, fields[i+1])
	}
}
