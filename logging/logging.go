// Package logging defines the Logger interface shared across the framework
// and provides two implementations: a standard-library default with silent
// debug output, and a zap-backed production logger.
package logging

import (
	"log"

	"go.uber.org/zap"
)

// Logger is the logging interface consumed throughout the framework.
type Logger interface {
	Printf(format string, v ...any)
	Errorf(format string, v ...any)
	Debugf(format string, v ...any)
}

// stdLogger implements Logger using the standard log package
type stdLogger struct {
	prefix string
}

// Default returns a standard-library logger with the given prefix.
// Debug output is silent.
func Default(prefix string) Logger {
	return &stdLogger{prefix: prefix}
}

func (l *stdLogger) Printf(format string, v ...any) {
	log.Printf("["+l.prefix+"] "+format, v...)
}

func (l *stdLogger) Errorf(format string, v ...any) {
	log.Printf("["+l.prefix+" ERROR] "+format, v...)
}

func (l *stdLogger) Debugf(_ string, _ ...any) {
	// Silent by default
}

// nopLogger discards everything. Used in tests.
type nopLogger struct{}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

// ZapLogger adapts a zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap wraps a zap logger, naming it after the owning component.
func NewZap(base *zap.Logger, name string) *ZapLogger {
	return &ZapLogger{sugar: base.Named(name).Sugar()}
}

// NewProduction builds a zap production logger for the named component.
// Falls back to a no-op zap core if construction fails.
func NewProduction(name string) *ZapLogger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return NewZap(base, name)
}

// Printf logs at info level.
func (l *ZapLogger) Printf(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

// Errorf logs at error level.
func (l *ZapLogger) Errorf(format string, v ...any) {
	l.sugar.Errorf(format, v...)
}

// Debugf logs at debug level.
func (l *ZapLogger) Debugf(format string, v ...any) {
	l.sugar.Debugf(format, v...)
}
