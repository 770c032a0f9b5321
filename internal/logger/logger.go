// Package logger configures zerolog output for the two situations zmx
// runs in: an interactive, short-lived dispatcher command (console
// output) and a long-lived supervisor that owns a client's terminal and
// therefore must never write diagnostics to stdout/stderr (a session log
// file instead).
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors the zerolog levels zmx exposes through ZMX_LOG_LEVEL.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LevelFromEnv reads ZMX_LOG_LEVEL, defaulting to info for unset or
// unrecognized values.
func LevelFromEnv() Level {
	switch Level(os.Getenv("ZMX_LOG_LEVEL")) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// NewConsole builds a logger suitable for a short-lived dispatcher
// command: human-readable, written to stderr so stdout stays reserved
// for the command's actual output (e.g. `list`'s session lines).
func NewConsole(level Level) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level.zerolog()).With().Timestamp().Logger()
}

// NewFile builds a logger that writes exclusively to the given file,
// never to the process's stdout/stderr. The supervisor uses this so
// nothing it logs can land in the byte stream an attached client is
// reading.
func NewFile(path string, level Level) (zerolog.Logger, io.Closer, error) {
	RotateIfOversized(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	return zerolog.New(f).Level(level.zerolog()).With().Timestamp().Logger(), f, nil
}

// maxLogSize is the rollover threshold named in the sessions/log
// directory layout: a log at or past this size is renamed to "<path>.old"
// (replacing any previous one) before a fresh file is opened.
const maxLogSize = 5 << 20 // 5 MiB

// RotateIfOversized renames path to path+".old" when it has reached
// maxLogSize. Missing files and stat errors are not reported; rotation
// is a best-effort convenience, not a durability guarantee.
func RotateIfOversized(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() < maxLogSize {
		return
	}
	_ = os.Rename(path, path+".old")
}
