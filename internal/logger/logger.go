package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	*zerolog.Logger
	component string
}

var (
	// Global log levels for different environments
	logLevel = map[string]zerolog.Level{
		"development": zerolog.DebugLevel,
		"staging":     zerolog.InfoLevel,
		"production":  zerolog.InfoLevel,
		"test":        zerolog.Disabled,
	}
)

// Config represents logger configuration
type Config struct {
	IsProduction bool
	AppEnv       string
	// Out defaults to stdout. The lookup subcommand points it at stderr so
	// stdout carries nothing but the result record.
	Out     io.Writer
	NoColor bool
}

// New creates a logger for a component writing to stdout.
func New(component string) *Logger {
	return NewWithConfig(component, Config{
		IsProduction: os.Getenv("APP_ENV") == "production",
		AppEnv:       os.Getenv("APP_ENV"),
	})
}

// NewStderr creates a logger for a component writing to stderr.
func NewStderr(component string) *Logger {
	return NewWithConfig(component, Config{
		IsProduction: os.Getenv("APP_ENV") == "production",
		AppEnv:       os.Getenv("APP_ENV"),
		Out:          os.Stderr,
		NoColor:      true,
	})
}

// Nop returns a logger that discards everything.
func Nop(component string) *Logger {
	l := zerolog.Nop()
	return &Logger{Logger: &l, component: component}
}

// NewWithConfig creates a new logger instance with custom configuration
func NewWithConfig(component string, config Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	output := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: config.NoColor,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %s", component, i)
		},
		FormatLevel: func(i interface{}) string {
			level, ok := i.(string)
			if !ok {
				return "???"
			}
			if config.NoColor {
				return fmt.Sprintf("[%s]", levelLabel(level))
			}
			switch level {
			case "debug":
				return "\033[36m[DEBUG]\033[0m" // Cyan
			case "info":
				return "\033[34m[INFO]\033[0m" // Blue
			case "warn":
				return "\033[33m[WARN]\033[0m" // Yellow
			case "error":
				return "\033[31m[ERROR]\033[0m" // Red
			case "fatal":
				return "\033[35m[FATAL]\033[0m" // Purple
			default:
				return fmt.Sprintf("[%s]", level)
			}
		},
	}

	// Remove timestamp in production
	if config.IsProduction {
		output.TimeFormat = ""
	} else {
		output.TimeFormat = "2006-01-02 15:04:05"
	}

	var logger zerolog.Logger
	if config.IsProduction {
		logger = zerolog.New(output).Level(getLogLevel(config.AppEnv))
	} else {
		logger = zerolog.New(output).
			Level(getLogLevel(config.AppEnv)).
			With().
			Timestamp().
			Logger()
	}

	return &Logger{
		Logger:    &logger,
		component: component,
	}
}

func levelLabel(level string) string {
	switch level {
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn":
		return "WARN"
	case "error":
		return "ERROR"
	case "fatal":
		return "FATAL"
	default:
		return level
	}
}

// getLogLevel returns the appropriate log level based on environment
func getLogLevel(env string) zerolog.Level {
	if level, exists := logLevel[env]; exists {
		return level
	}
	return zerolog.DebugLevel
}

// With returns a child logger carrying an extra string field on every event.
func (l *Logger) With(key, value string) *Logger {
	child := l.Logger.With().Str(key, value).Logger()
	return &Logger{Logger: &child, component: l.component}
}

func (l *Logger) LogDebugf(format string, v ...interface{}) {
	l.Debug().Msgf(format, v...)
}

func (l *Logger) LogInfof(format string, v ...interface{}) {
	l.Info().Msgf(format, v...)
}

func (l *Logger) LogWarnf(format string, v ...interface{}) {
	l.Warn().Msgf(format, v...)
}

func (l *Logger) LogErrorf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

func (l *Logger) LogInfo(msg string) {
	l.Info().Msg(msg)
}

func (l *Logger) LogError(msg string, err error) {
	if err != nil {
		l.Error().Err(err).Msg(msg)
		return
	}
	l.Error().Msg(msg)
}
