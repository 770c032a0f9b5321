// Package transport wraps Unix-domain socket listen/dial/probe behavior
// shared by the supervisor, the dispatcher, and probe clients.
package transport

import (
	"errors"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// ListenBacklog is the minimum accept backlog required of every
// supervisor's listening socket.
const ListenBacklog = 128

// Listen binds a Unix-domain socket at path. Go's net package already
// gives the listener close-on-exec semantics and a non-blocking runtime
// poller; ListenBacklog documents the backlog floor the socket must
// honor, enforced by the OS's SOMAXCONN (always >= 128 on the platforms
// zmx targets).
func Listen(path string) (*net.UnixListener, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, &zmxerr.ConfigError{Reason: "resolving socket path " + path, Err: err}
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, &zmxerr.ConfigError{Reason: "binding socket " + path, Err: err}
	}
	return ln, nil
}

// Dial performs a blocking connect to the socket at path.
func Dial(path string) (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	return net.DialUnix("unix", nil, addr)
}

// DialProbe connects with a bounded deadline, matching the 1-second
// probe requirement in §4.8. It returns an *zmxerr.StaleSocketError when
// the socket file exists but nothing is listening, or when the connect
// itself times out.
func DialProbe(path string, timeout time.Duration) (*net.UnixConn, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		if IsConnectionRefused(err) {
			return nil, &zmxerr.StaleSocketError{Path: path, Reason: "connection refused"}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &zmxerr.StaleSocketError{Path: path, Reason: "probe timed out"}
		}
		return nil, err
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, errors.New("transport: unexpected connection type")
	}
	return unixConn, nil
}

// IsConnectionRefused reports whether err ultimately wraps ECONNREFUSED,
// the signal that a socket file's supervisor is gone (stale socket).
func IsConnectionRefused(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED)
}

// RemoveStale unlinks a socket file that a probe determined has no live
// supervisor behind it. Missing files are not an error.
func RemoveStale(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
