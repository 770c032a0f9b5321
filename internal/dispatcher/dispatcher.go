// Package dispatcher implements the short-lived commands that manage
// sessions from outside any running supervisor: attach (spawning a new
// supervisor on demand), list, detach, and kill, per SPEC_FULL.md §4.7.
package dispatcher

import (
	"os"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/protocol"
	"github.com/neurosnap/zmx-sub000/internal/transport"
	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// ProbeTimeout bounds how long any dispatcher operation waits for a
// supervisor to answer, matching SPEC_FULL.md §4.8.
const ProbeTimeout = time.Second

// spawnPollInterval/spawnPollDeadline bound how long EnsureSession waits
// for a freshly forked supervisor to bind its socket.
const (
	spawnPollInterval = 20 * time.Millisecond
	spawnPollDeadline = 3 * time.Second
)

// SupervisorSubcommand is the hidden cobra command name the dispatcher
// re-execs itself with to run as a session's supervisor. Kept here
// (rather than in internal/cmd) so both sides of the fork agree on it
// without an import cycle.
const SupervisorSubcommand = "__supervise"

// SessionInfo is one session's reported state, either live (queried over
// its socket) or stale (socket file present, nothing listening).
type SessionInfo struct {
	Name    string
	Alive   bool
	Clients uint32
	Pid     int32
}

// EnsureSession returns the socket path for name, spawning a detached
// supervisor running command if no live session by that name exists
// yet. If a session by that name is already running, command is
// ignored and the caller attaches to the existing shell.
func EnsureSession(log zerolog.Logger, cfg *config.Config, name string, command []string) (string, error) {
	if err := config.ValidateName(name); err != nil {
		return "", logErr(log, err)
	}
	sockPath := cfg.SocketPath(name)

	if _, err := os.Stat(sockPath); err == nil {
		conn, perr := transport.DialProbe(sockPath, ProbeTimeout)
		if perr == nil {
			conn.Close()
			return sockPath, nil
		}
		log.Debug().Str("session", name).Msg("socket present but not answering, treating as stale")
		if err := transport.RemoveStale(sockPath); err != nil {
			return "", logErr(log, err)
		}
	}

	if err := spawnSupervisor(name, command); err != nil {
		return "", logErr(log, err)
	}

	deadline := time.Now().Add(spawnPollDeadline)
	for time.Now().Before(deadline) {
		if conn, err := transport.DialProbe(sockPath, ProbeTimeout); err == nil {
			conn.Close()
			return sockPath, nil
		}
		time.Sleep(spawnPollInterval)
	}
	return "", logErr(log, &zmxerr.StaleSocketError{Path: sockPath, Reason: "supervisor did not bind its socket in time"})
}

// logErr records err's taxonomy category as a structured field before
// returning it unchanged, per SPEC_FULL.md §7/§10.
func logErr(log zerolog.Logger, err error) error {
	log.Error().Str("error_kind", zmxerr.Kind(err)).Err(err).Msg("dispatcher operation failed")
	return err
}

func spawnSupervisor(name string, command []string) error {
	self, err := os.Executable()
	if err != nil {
		return &zmxerr.SpawnError{Command: command, Err: err}
	}

	args := append([]string{SupervisorSubcommand, name}, command...)
	cmd := exec.Command(self, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return &zmxerr.SpawnError{Command: command, Err: err}
	}
	// The supervisor is now its own session leader; releasing it here
	// avoids leaving a zombie entry in this short-lived process's table
	// once it outlives us.
	return cmd.Process.Release()
}

// Probe queries a single session's socket for its live Info, reporting
// Alive=false without error when the socket is stale.
func Probe(cfg *config.Config, name string) (SessionInfo, error) {
	sockPath := cfg.SocketPath(name)
	conn, err := transport.DialProbe(sockPath, ProbeTimeout)
	if err != nil {
		return SessionInfo{Name: name, Alive: false}, nil
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(ProbeTimeout))
	if _, err := conn.Write(protocol.Encode(nil, protocol.TagInfo, nil)); err != nil {
		return SessionInfo{Name: name, Alive: false}, nil
	}

	var dec protocol.Decoder
	buf := make([]byte, 64)
	for {
		frame, ok, derr := dec.Decode()
		if derr != nil {
			return SessionInfo{}, derr
		}
		if ok {
			clients, pid, decOK := protocol.DecodeInfoPayload(frame.Payload)
			if !decOK {
				return SessionInfo{}, &zmxerr.ProtocolError{Reason: "malformed info payload"}
			}
			return SessionInfo{Name: name, Alive: true, Clients: clients, Pid: pid}, nil
		}
		n, err := conn.Read(buf)
		if err != nil {
			return SessionInfo{Name: name, Alive: false}, nil
		}
		dec.Feed(buf[:n])
	}
}

// List enumerates every session socket under cfg.SessionsDir, probing
// each and pruning stale ones. Results are sorted by name.
func List(log zerolog.Logger, cfg *config.Config) ([]SessionInfo, error) {
	entries, err := os.ReadDir(cfg.SessionsDir)
	if err != nil {
		return nil, logErr(log, &zmxerr.ConfigError{Reason: "reading sessions directory " + cfg.SessionsDir, Err: err})
	}

	var infos []SessionInfo
	for _, ent := range entries {
		if ent.Type()&os.ModeSocket == 0 {
			continue
		}
		name := ent.Name()
		info, err := Probe(cfg, name)
		if err != nil {
			continue
		}
		if !info.Alive {
			log.Debug().Str("session", name).Msg("pruning stale session socket")
			_ = transport.RemoveStale(cfg.SocketPath(name))
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Kill sends a Kill frame to the named session, terminating its child
// and tearing the session down. If nothing answers on the socket, the
// stale socket file is removed and a StaleSocketError is returned.
func Kill(log zerolog.Logger, cfg *config.Config, name string) error {
	sockPath := cfg.SocketPath(name)
	conn, err := transport.DialProbe(sockPath, ProbeTimeout)
	if err != nil {
		_ = transport.RemoveStale(sockPath)
		return logErr(log, &zmxerr.StaleSocketError{Path: sockPath, Reason: "session is not running"})
	}
	defer conn.Close()

	if _, err := conn.Write(protocol.Encode(nil, protocol.TagKill, nil)); err != nil {
		return logErr(log, &zmxerr.TransportError{Op: "kill", Err: err})
	}
	return nil
}

// Detach disconnects every client currently attached to the session
// named by $ZMX_SESSION. There is no direct channel between a freshly
// run `zmx detach` process and the interactive attach client sharing its
// terminal, so this closes every connection on that session's socket;
// in the common case of exactly one attached client this has the same
// effect as detaching just the caller.
func Detach(log zerolog.Logger, cfg *config.Config) error {
	name := os.Getenv("ZMX_SESSION")
	if name == "" {
		return logErr(log, &zmxerr.ConfigError{Reason: "not inside an attached session ($ZMX_SESSION is unset)"})
	}
	sockPath := cfg.SocketPath(name)
	conn, err := transport.DialProbe(sockPath, ProbeTimeout)
	if err != nil {
		return logErr(log, &zmxerr.StaleSocketError{Path: sockPath, Reason: "session is not running"})
	}
	defer conn.Close()

	if _, err := conn.Write(protocol.Encode(nil, protocol.TagDetachAll, nil)); err != nil {
		return logErr(log, &zmxerr.TransportError{Op: "detach", Err: err})
	}
	return nil
}
