// Package session implements the per-session supervisor: the event loop
// that owns a PTY, a terminal-emulator model, and every attached client's
// connection, per SPEC_FULL.md §4.6.
//
// The distilled design describes a single-threaded, level-triggered
// readiness poll. This package reproduces its ordering guarantees with a
// goroutine per readiness source (the acceptor, the PTY reader, one
// reader per client) funneling into a single owner goroutine that is the
// only place session state is mutated — see SPEC_FULL.md §9 for why this
// is the idiomatic Go rendering of "one thread per session with a
// selector."
package session

import (
	"errors"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/protocol"
	"github.com/neurosnap/zmx-sub000/internal/snapshot"
	"github.com/neurosnap/zmx-sub000/internal/term"
	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// ptyIO is the narrow PTY contract the session loop depends on, letting
// tests substitute a fake child process instead of a real fork+exec.
type ptyIO interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Resize(rows, cols uint16) error
	Terminate() error
	Pid() int
}

// pendingReadBuf is the fixed PTY-read chunk size named in SPEC_FULL.md §4.6.
const pendingReadBuf = 4096

// clientOutboxDepth bounds how far a client's outbound queue may lag
// behind live output before it is treated as unresponsive and dropped,
// so one stalled reader can never block delivery to every other client
// or stall consumption of further PTY output (SPEC_FULL.md §3/§4.6/§5).
const clientOutboxDepth = 64

// Session is one supervisor's live state: its PTY, its terminal model,
// and its attached clients. All fields below are only ever touched by
// the owner goroutine started in Run.
type Session struct {
	Name    string
	Command []string
	// ID uniquely identifies this particular run of the session (as
	// opposed to Name, which a later, unrelated run can reuse); it only
	// ever appears in log lines, to disambiguate two supervisor log
	// segments that share a session name across a kill/relaunch cycle.
	ID uuid.UUID

	cfg *config.Config
	log zerolog.Logger

	pty  ptyIO
	term *term.Adapter

	listener *net.UnixListener

	clients      map[uint64]*clientConn
	nextClientID uint64

	hadOutput bool
	sizeSet   bool

	events chan any
	done   chan struct{}
}

// clientConn is one attached client's write side: outCh is the bounded
// queue the owner goroutine enqueues onto, drained by a dedicated
// clientWriteLoop goroutine so a blocking conn.Write can never stall the
// owner. done closes once clientWriteLoop has exited (conn closed or error).
type clientConn struct {
	id    uint64
	conn  net.Conn
	outCh chan []byte
	done  chan struct{}
}

// acceptEvent is emitted by the acceptor goroutine for each new connection.
type acceptEvent struct{ conn net.Conn }

// frameEvent carries one fully-decoded frame from a client's reader
// goroutine; Payload is a private copy, safe past the decoder's buffer
// reuse.
type frameEvent struct {
	clientID uint64
	frame    protocol.Frame
}

// closedEvent reports a client connection ending, by peer close, read
// error, or protocol violation.
type closedEvent struct {
	clientID uint64
	err      error
}

// ptyDataEvent carries one PTY read; Data is private to the event.
type ptyDataEvent struct{ data []byte }

// ptyClosedEvent reports the PTY master returning EOF or a fatal error.
type ptyClosedEvent struct{ err error }

// shutdownEvent requests the owner goroutine terminate the session; the
// acceptor sends it when the listener fails.
type shutdownEvent struct{}

// New constructs a Session bound to an already-listening socket. Spawn
// is called separately so tests can inject a fake ptyIO instead of a
// real child process.
func New(name string, command []string, cfg *config.Config, log zerolog.Logger, listener *net.UnixListener) *Session {
	return &Session{
		Name:     name,
		Command:  command,
		ID:       uuid.New(),
		cfg:      cfg,
		log:      log,
		listener: listener,
		clients:  make(map[uint64]*clientConn),
		events:   make(chan any, 64),
		done:     make(chan struct{}),
	}
}

// Attach wires a started ptyIO and a fresh terminal-emulator adapter
// into the session. Must be called once, before Run.
func (s *Session) Attach(p ptyIO, t *term.Adapter) {
	s.pty = p
	s.term = t
}

// Run drives the session's event loop until shutdown. It blocks until
// the PTY's child exits, the session is killed, or the listener fails.
func (s *Session) Run() {
	go s.acceptLoop()
	go s.ptyReadLoop()

	for {
		select {
		case ev := <-s.events:
			if !s.handle(ev) {
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case s.events <- shutdownEvent{}:
			case <-s.done:
			}
			return
		}
		select {
		case s.events <- acceptEvent{conn: conn}:
		case <-s.done:
			conn.Close()
			return
		}
	}
}

func (s *Session) ptyReadLoop() {
	buf := make([]byte, pendingReadBuf)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.events <- ptyDataEvent{data: data}:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.events <- ptyClosedEvent{err: err}:
			case <-s.done:
			}
			return
		}
	}
}

func (s *Session) clientReadLoop(id uint64, conn net.Conn) {
	var dec protocol.Decoder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				frame, ok, decErr := dec.Decode()
				if decErr != nil {
					s.sendClosed(id, decErr)
					return
				}
				if !ok {
					break
				}
				payload := append([]byte(nil), frame.Payload...)
				select {
				case s.events <- frameEvent{clientID: id, frame: protocol.Frame{Tag: frame.Tag, Payload: payload}}:
				case <-s.done:
					return
				}
			}
		}
		if err != nil {
			s.sendClosed(id, err)
			return
		}
	}
}

func (s *Session) sendClosed(id uint64, err error) {
	select {
	case s.events <- closedEvent{clientID: id, err: err}:
	case <-s.done:
	}
}

// handle processes one event on the owner goroutine. It returns false
// when the session should shut down.
func (s *Session) handle(ev any) bool {
	switch e := ev.(type) {
	case acceptEvent:
		s.registerClient(e.conn)
	case frameEvent:
		return s.dispatchFrame(e.clientID, e.frame)
	case closedEvent:
		s.removeClient(e.clientID)
	case ptyDataEvent:
		s.broadcastOutput(e.data)
	case ptyClosedEvent:
		wrapped := &zmxerr.PtyError{Err: e.err}
		s.log.Info().Str("error_kind", zmxerr.Kind(wrapped)).Err(wrapped).Msg("pty closed, shutting down session")
		return false
	case shutdownEvent:
		return false
	}
	return true
}

func (s *Session) registerClient(conn net.Conn) {
	id := s.nextClientID
	s.nextClientID++
	c := &clientConn{
		id:    id,
		conn:  conn,
		outCh: make(chan []byte, clientOutboxDepth),
		done:  make(chan struct{}),
	}
	s.clients[id] = c
	go s.clientWriteLoop(c)
	go s.clientReadLoop(id, conn)
}

// clientWriteLoop is the only goroutine that ever calls c.conn.Write,
// so a client that stops draining its socket only ever blocks this
// goroutine, never the owner goroutine feeding c.outCh.
func (s *Session) clientWriteLoop(c *clientConn) {
	for data := range c.outCh {
		if _, err := c.conn.Write(data); err != nil {
			wrapped := &zmxerr.TransportError{Op: "client_write", Err: err}
			s.log.Debug().Str("error_kind", zmxerr.Kind(wrapped)).Err(wrapped).Msg("client write failed")
			break
		}
	}
	close(c.done)
}

// removeClient drops a client by id, whether the disconnect originated
// from a read error/peer close (closedEvent) or an explicit Detach.
// Closing outCh lets any in-flight clientWriteLoop drain before the
// connection itself is closed.
func (s *Session) removeClient(id uint64) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	delete(s.clients, id)
	close(c.outCh)
	go func() {
		<-c.done
		c.conn.Close()
	}()
}

// enqueue hands wire to c's outbox without blocking the owner
// goroutine. If the outbox is already full, the client is treated as
// unresponsive and evicted instead of letting the backlog grow
// unbounded or stalling delivery to every other client.
func (s *Session) enqueue(c *clientConn, wire []byte) {
	select {
	case c.outCh <- wire:
	default:
		s.log.Warn().Uint64("client", c.id).Msg("client outbox full, dropping slow client")
		s.removeClient(c.id)
		// Unblock a clientWriteLoop stuck in conn.Write so the stalled
		// connection is actually closed rather than left to drain.
		_ = c.conn.Close()
	}
}

func (s *Session) broadcastOutput(data []byte) {
	s.term.Feed(data)
	s.hadOutput = true
	wire := protocol.Encode(nil, protocol.TagOutput, data)
	for _, c := range s.clients {
		s.enqueue(c, wire)
	}
}

func (s *Session) dispatchFrame(id uint64, frame protocol.Frame) bool {
	c, ok := s.clients[id]
	if !ok {
		return true
	}
	switch frame.Tag {
	case protocol.TagInput:
		_, _ = s.pty.Write(frame.Payload)
	case protocol.TagInit:
		s.handleInit(c, frame.Payload)
	case protocol.TagResize:
		s.handleResize(frame.Payload)
	case protocol.TagDetach:
		s.removeClient(id)
	case protocol.TagDetachAll:
		s.detachAll()
	case protocol.TagKill:
		s.killChild()
		return false
	case protocol.TagInfo:
		s.replyInfo(c)
	default:
		s.log.Warn().Uint8("tag", uint8(frame.Tag)).Msg("ignoring unknown frame tag")
	}
	return true
}

func (s *Session) handleInit(c *clientConn, payload []byte) {
	rows, cols, ok := protocol.DecodeResizePayload(payload)
	if !ok {
		return
	}
	if !s.sizeSet {
		s.applyResize(rows, cols)
		s.sizeSet = true
	}
	if s.hadOutput {
		// Re-attach: the snapshot is enqueued onto this client's outbox
		// before any subsequent live Output frame can be enqueued behind
		// it, which is sufficient to guarantee ordering without a
		// temporary "mute" — the outbox is FIFO even though the actual
		// socket write happens on the client's own writeLoop goroutine
		// (SPEC_FULL.md §9).
		frame := snapshot.Render(s.term)
		wire := protocol.Encode(nil, protocol.TagOutput, frame)
		s.enqueue(c, wire)
	}
}

func (s *Session) handleResize(payload []byte) {
	rows, cols, ok := protocol.DecodeResizePayload(payload)
	if !ok {
		return
	}
	s.applyResize(rows, cols)
	s.sizeSet = true
}

// applyResize updates the terminal-emulator model before the PTY's
// window size, per the invariant in SPEC_FULL.md §3/§4.5.
func (s *Session) applyResize(rows, cols uint16) {
	s.term.Resize(int(rows), int(cols))
	_ = s.pty.Resize(rows, cols)
}

func (s *Session) detachAll() {
	for id := range s.clients {
		s.removeClient(id)
	}
}

func (s *Session) killChild() {
	_ = s.pty.Terminate()
	s.detachAll()
}

func (s *Session) replyInfo(c *clientConn) {
	payload := protocol.InfoPayload(uint32(len(s.clients)), int32(s.pty.Pid()))
	wire := protocol.Encode(nil, protocol.TagInfo, payload)
	s.enqueue(c, wire)
}

func (s *Session) shutdown() {
	close(s.done)
	s.detachAll()
	_ = s.listener.Close()
	if s.cfg == nil {
		return
	}
	if err := os.Remove(s.cfg.SocketPath(s.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Msg("failed to unlink session socket")
	}
}

// ClientCount reports the number of currently attached clients. Exposed
// for tests; production code learns this only through an Info frame.
func (s *Session) ClientCount() int {
	return len(s.clients)
}

// HadOutput reports whether the session has produced any PTY output
// since spawn.
func (s *Session) HadOutput() bool {
	return s.hadOutput
}
