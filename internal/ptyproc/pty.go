// Package ptyproc owns the PTY lifecycle for one session: spawning the
// child, non-blocking master-fd I/O, resize, and termination.
package ptyproc

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// DefaultShell is used when neither a command nor $SHELL is available.
const DefaultShell = "/bin/sh"

// PTY owns the master end of a pseudo-terminal and the child process
// running beneath its slave end.
type PTY struct {
	Master *os.File
	Cmd    *exec.Cmd
}

// Spawn forks a child attached to a new PTY. sessionName is exported to
// the child as ZMX_SESSION. If command is non-empty it is resolved via
// PATH and exec'd in place of the login shell; otherwise $SHELL is used,
// falling back to DefaultShell. rows/cols set the PTY's initial window
// size (fallback 24x80 is the caller's responsibility, matching
// term.DefaultRows/DefaultCols).
func Spawn(sessionName string, command []string, rows, cols uint16) (*PTY, error) {
	var cmd *exec.Cmd
	if len(command) > 0 {
		path, err := exec.LookPath(command[0])
		if err != nil {
			return nil, &zmxerr.SpawnError{Command: command, Err: err}
		}
		cmd = exec.Command(path, command[1:]...)
	} else {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = DefaultShell
		}
		cmd = exec.Command(shell)
	}

	cmd.Env = append(os.Environ(), "ZMX_SESSION="+sessionName)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, &zmxerr.SpawnError{Command: command, Err: err}
	}

	return &PTY{Master: master, Cmd: cmd}, nil
}

// Resize updates the PTY's window size. Per SPEC_FULL.md §4.5 the caller
// must resize the terminal-emulator model strictly before calling this,
// so the next byte the child emits lands in a correctly-sized grid; the
// OS delivers SIGWINCH to the foreground process group as a side effect
// of this call.
func (p *PTY) Resize(rows, cols uint16) error {
	return pty.Setsize(p.Master, &pty.Winsize{Rows: rows, Cols: cols})
}

// Read is a thin, non-blocking-aware wrapper so callers get a uniform
// EOF-means-child-exited signal regardless of platform quirks around PTY
// master reads after the slave side closes (which commonly surfaces as
// EIO rather than io.EOF on Linux).
func (p *PTY) Read(buf []byte) (int, error) {
	n, err := p.Master.Read(buf)
	if err != nil && (errors.Is(err, io.EOF) || isPtyEOF(err)) {
		return n, ErrChildExited
	}
	return n, err
}

func (p *PTY) Write(data []byte) (int, error) {
	return p.Master.Write(data)
}

// ErrChildExited is the sentinel Read returns once the child's shell has
// exited and the slave side of the PTY has closed.
var ErrChildExited = errors.New("pty: child exited")

func isPtyEOF(err error) bool {
	pathErr, ok := err.(*os.PathError)
	if !ok {
		return false
	}
	return pathErr.Err == syscall.EIO
}

// Terminate sends SIGTERM to the child, closes the master fd, then reaps
// the child with a bounded wait so a stuck process cannot block session
// shutdown forever.
func (p *PTY) Terminate() error {
	if p.Cmd.Process != nil {
		_ = p.Cmd.Process.Signal(syscall.SIGTERM)
	}
	_ = p.Master.Close()

	done := make(chan error, 1)
	go func() { done <- p.Cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if p.Cmd.Process != nil {
			_ = p.Cmd.Process.Kill()
		}
		<-done
	}
	return nil
}

// Pid returns the child process's PID.
func (p *PTY) Pid() int {
	if p.Cmd.Process == nil {
		return 0
	}
	return p.Cmd.Process.Pid
}
