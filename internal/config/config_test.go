package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsDirPrefersZMXDir(t *testing.T) {
	t.Setenv("ZMX_DIR", "/custom/zmx")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/custom/zmx", sessionsDir())
}

func TestSessionsDirFallsBackToXDGRuntimeDir(t *testing.T) {
	t.Setenv("ZMX_DIR", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, filepath.Join("/run/user/1000", "zmx"), sessionsDir())
}

func TestSessionsDirFallsBackToTMPDIR(t *testing.T) {
	t.Setenv("ZMX_DIR", "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("TMPDIR", "/tmp/custom")
	want := filepath.Join("/tmp/custom", fmt.Sprintf("zmx-%d", os.Getuid()))
	assert.Equal(t, want, sessionsDir())
}

func TestSessionsDirFallsBackToTmp(t *testing.T) {
	t.Setenv("ZMX_DIR", "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("TMPDIR", "")
	want := fmt.Sprintf("/tmp/zmx-%d", os.Getuid())
	assert.Equal(t, want, sessionsDir())
}

func TestResolveCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	t.Setenv("ZMX_DIR", filepath.Join(base, "sessions"))

	cfg, err := Resolve()
	require.NoError(t, err)

	info, err := os.Stat(cfg.SessionsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = os.Stat(cfg.LogDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSocketAndLogPaths(t *testing.T) {
	cfg := &Config{SessionsDir: "/zmx/sessions", LogDir: "/zmx/sessions/logs"}
	assert.Equal(t, "/zmx/sessions/demo", cfg.SocketPath("demo"))
	assert.Equal(t, "/zmx/sessions/logs/demo.log", cfg.SessionLogPath("demo"))
	assert.Equal(t, "/zmx/sessions/logs/zmx.log", cfg.SupervisorLogPath())
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("demo"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("a/b"))
	assert.Error(t, ValidateName("a\x00b"))
}
