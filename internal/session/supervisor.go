package session

import (
	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/logger"
	"github.com/neurosnap/zmx-sub000/internal/ptyproc"
	"github.com/neurosnap/zmx-sub000/internal/term"
	"github.com/neurosnap/zmx-sub000/internal/transport"
	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// Spawn is the supervisor process's entry point: it resolves the
// runtime directories, binds the session's socket, forks the PTY child,
// and runs the event loop until the session ends. It is the body of
// `zmx attach <name> -- <command...>` once the dispatcher has decided a
// new session is needed and re-exec'd itself into the supervisor role,
// per SPEC_FULL.md §4.6/§6.3.
func Spawn(name string, command []string) error {
	cfg, err := config.Resolve()
	if err != nil {
		return err
	}

	log, closer, err := logger.NewFile(cfg.SessionLogPath(name), logger.LevelFromEnv())
	if err != nil {
		return err
	}
	defer closer.Close()

	log = log.With().Str("session", name).Logger()

	socketPath := cfg.SocketPath(name)
	if err := transport.RemoveStale(socketPath); err != nil {
		return &zmxerr.StaleSocketError{Path: socketPath, Reason: err.Error()}
	}

	listener, err := transport.Listen(socketPath)
	if err != nil {
		return err
	}

	rows, cols := uint16(term.DefaultRows), uint16(term.DefaultCols)
	p, err := ptyproc.Spawn(name, command, rows, cols)
	if err != nil {
		listener.Close()
		return err
	}

	adapter := term.New(int(rows), int(cols), 0)

	s := New(name, command, cfg, log, listener)
	s.Attach(p, adapter)

	log.Info().
		Strs("command", command).
		Int("pid", p.Pid()).
		Str("socket", socketPath).
		Str("run_id", s.ID.String()).
		Msg("session started")

	s.Run()

	log.Info().Msg("session ended")
	return nil
}
