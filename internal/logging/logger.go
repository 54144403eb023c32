// Package logging provides the leveled, optionally colored console logger
// with an optional plain-text file sink. It is a thin printf-style facade
// over zap: errors go to stderr, everything else to stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backmassage/imgopt/internal/config"
	"github.com/backmassage/imgopt/internal/term"
)

const timeLayout = "2006-01-02 15:04:05"

// Logger provides leveled logging. Safe for concurrent use.
type Logger struct {
	z    *zap.Logger
	file *os.File
}

// NewLogger configures colors from cfg, writes to the process stdout/stderr,
// and optionally appends to cfg.LogFile. Call Close when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)
	return New(cfg, os.Stdout, os.Stderr)
}

// New builds a Logger writing to out (below ERROR) and errOut (ERROR). Color
// state is taken from [term.Enabled]; DEBUG lines need cfg.Verbose.
func New(cfg *config.Config, out, errOut io.Writer) (*Logger, error) {
	floor := zapcore.InfoLevel
	if cfg.Verbose {
		floor = zapcore.DebugLevel
	}
	colored := term.Enabled()

	below := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= floor && l < zapcore.ErrorLevel })
	errs := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(colored)), zapcore.Lock(zapcore.AddSync(out)), below),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(colored)), zapcore.Lock(zapcore.AddSync(errOut)), errs),
	}

	l := &Logger{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		all := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= floor })
		cores = append(cores, plainCore{
			zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(false)), zapcore.Lock(f), all),
		})
	}

	l.z = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

func encoderConfig(colored bool) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       timeEncoder(colored),
		EncodeLevel:      levelEncoder(colored),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func timeEncoder(colored bool) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		s := t.Format(timeLayout)
		if colored {
			s = term.Gray(s)
		}
		enc.AppendString(s)
	}
}

func levelEncoder(colored bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		s := "[" + l.CapitalString() + "]"
		if colored {
			switch l {
			case zapcore.DebugLevel:
				s = term.Cyan(s)
			case zapcore.InfoLevel:
				s = term.Blue(s)
			case zapcore.WarnLevel:
				s = term.Yellow(s)
			default:
				s = term.Red(s)
			}
		}
		enc.AppendString(s)
	}
}

// Close flushes buffered output and closes the log file if one was opened.
func (l *Logger) Close() error {
	_ = l.z.Sync() // stdout/stderr sync fails on terminals; nothing to recover
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.z.Info(fmt.Sprintf(format, args...))
}

// Success logs at INFO level with the message in green.
func (l *Logger) Success(format string, args ...interface{}) {
	l.z.Info(term.Green(fmt.Sprintf(format, args...)))
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.z.Warn(fmt.Sprintf(format, args...))
}

// Error logs at ERROR level to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.z.Error(fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level; dropped unless the logger was built verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.z.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.z.Debug(fmt.Sprintf(format, args...))
}

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// plainCore strips ANSI sequences from messages so the log file stays
// readable when console colors are on.
type plainCore struct{ zapcore.Core }

func (c plainCore) With(fields []zapcore.Field) zapcore.Core {
	return plainCore{c.Core.With(fields)}
}

func (c plainCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c plainCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = ansi.ReplaceAllString(ent.Message, "")
	return c.Core.Write(ent, fields)
}
