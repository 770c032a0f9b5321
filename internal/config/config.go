// Package config resolves the directories zmx reads and writes to, all
// derived from the environment and detected exactly once per process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// Config holds every filesystem location zmx needs, resolved once and
// passed down explicitly rather than read from package-level globals
// inside business logic.
type Config struct {
	// SessionsDir holds one Unix-domain socket file per live session.
	SessionsDir string
	// LogDir is a sibling "logs" directory under SessionsDir.
	LogDir string
}

// sessionsDirMode matches the directory's required permission bits: only
// the owning user may list or create sockets inside it.
const sessionsDirMode = 0o700

// Resolve computes the sessions/log directories from the documented
// fallback chain ($ZMX_DIR, $XDG_RUNTIME_DIR/zmx, $TMPDIR/zmx-{uid},
// /tmp/zmx-{uid}) and ensures both exist. It is safe to call more than
// once; directory creation is idempotent.
func Resolve() (*Config, error) {
	dir := sessionsDir()
	cfg := &Config{
		SessionsDir: dir,
		LogDir:      filepath.Join(dir, "logs"),
	}
	if err := ensureDir(cfg.SessionsDir, sessionsDirMode); err != nil {
		return nil, &zmxerr.ConfigError{Reason: "creating sessions directory " + cfg.SessionsDir, Err: err}
	}
	if err := ensureDir(cfg.LogDir, sessionsDirMode); err != nil {
		return nil, &zmxerr.ConfigError{Reason: "creating log directory " + cfg.LogDir, Err: err}
	}
	return cfg, nil
}

func sessionsDir() string {
	if v := os.Getenv("ZMX_DIR"); v != "" {
		return v
	}
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "zmx")
	}
	uid := os.Getuid()
	if v := os.Getenv("TMPDIR"); v != "" {
		return filepath.Join(v, fmt.Sprintf("zmx-%d", uid))
	}
	return fmt.Sprintf("/tmp/zmx-%d", uid)
}

func ensureDir(path string, mode os.FileMode) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, mode)
}

// SocketPath returns the path of the local socket for the named session.
func (c *Config) SocketPath(name string) string {
	return filepath.Join(c.SessionsDir, name)
}

// SessionLogPath returns the path of the per-session log file.
func (c *Config) SessionLogPath(name string) string {
	return filepath.Join(c.LogDir, name+".log")
}

// SupervisorLogPath returns the path of the process-wide log file used
// for dispatcher/probe diagnostics outside any single session.
func (c *Config) SupervisorLogPath() string {
	return filepath.Join(c.LogDir, "zmx.log")
}

// ValidateName reports whether name is usable as both a session name and
// a socket/log file name: non-empty, and free of path separators and NUL.
func ValidateName(name string) error {
	if name == "" {
		return &zmxerr.ConfigError{Reason: "session name must not be empty"}
	}
	if strings.ContainsAny(name, "/\x00") {
		return &zmxerr.ConfigError{Reason: fmt.Sprintf("session name %q contains an illegal character", name)}
	}
	return nil
}
