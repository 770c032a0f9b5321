// Package zmxerr defines the error taxonomy shared by every zmx component.
//
// Each category below is a distinct type so callers can branch on it with
// errors.As instead of matching message text. Only the dispatcher and the
// supervisor event loop translate these into log lines and exit codes;
// every other component just returns them.
package zmxerr

import (
	"errors"
	"fmt"
)

// ProtocolError reports a malformed or oversized frame. Fatal for the
// connection that produced it.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// TransportError wraps a socket-level failure (broken pipe, peer reset,
// accept failure). The owning session drops the affected client and
// continues.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PtyError reports a failure reading from or writing to the PTY master,
// including a clean EOF from the child shell exiting. Always fatal for
// the owning session.
type PtyError struct {
	Err error
}

func (e *PtyError) Error() string {
	return fmt.Sprintf("pty error: %v", e.Err)
}

func (e *PtyError) Unwrap() error { return e.Err }

// SpawnError reports a failure in the fork+exec path of a new session's
// child process.
type SpawnError struct {
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %v: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StaleSocketError reports a socket file whose supervisor is gone
// (connection refused) or unresponsive (probe timeout). Callers should
// unlink the file and proceed as though the session were absent.
type StaleSocketError struct {
	Path   string
	Reason string
}

func (e *StaleSocketError) Error() string {
	return fmt.Sprintf("stale socket %s: %s", e.Path, e.Reason)
}

// ConfigError reports an unusable sessions/log directory, a bind
// failure, or a permission problem. Surfaced directly to the user; the
// process exits non-zero.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Kind classifies err into one of the category names above, for use as
// a structured "error_kind" log field (SPEC_FULL.md §7) instead of
// branching callers on message text.
func Kind(err error) string {
	var protoErr *ProtocolError
	var transportErr *TransportError
	var ptyErr *PtyError
	var spawnErr *SpawnError
	var staleErr *StaleSocketError
	var configErr *ConfigError

	switch {
	case errors.As(err, &protoErr):
		return "protocol"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &ptyErr):
		return "pty"
	case errors.As(err, &spawnErr):
		return "spawn"
	case errors.As(err, &staleErr):
		return "stale_socket"
	case errors.As(err, &configErr):
		return "config"
	default:
		return "unknown"
	}
}
