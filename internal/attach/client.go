// Package attach implements the interactive client side of a session:
// raw-mode stdin/stdout plumbing, window-resize propagation, and the
// detach key sequence, per SPEC_FULL.md §4.9.
package attach

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/neurosnap/zmx-sub000/internal/protocol"
)

// detachByte is the raw Ctrl+\ byte (0x1C, ASCII FS) that triggers a
// detach when typed directly into the terminal.
const detachByte = 0x1C

// detachCSI sequences are the two documented escape forms for the same
// gesture sent by terminals that report Ctrl+\ under the Kitty keyboard
// protocol (ESC[92;5u plain, ESC[92;133u with the CapsLock/NumLock bit
// set) rather than as a raw control byte.
var detachCSI = [][]byte{
	[]byte("\x1b[92;5u"),
	[]byte("\x1b[92;133u"),
}

// Client drives one interactive attachment to a session's socket.
type Client struct {
	conn   net.Conn
	stdin  *os.File
	stdout *os.File

	writeMu sync.Mutex
}

// New wraps an already-dialed session connection for interactive use.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, stdin: os.Stdin, stdout: os.Stdout}
}

// Run puts the controlling terminal into raw mode, sends the initial
// window size as an Init frame, and pumps stdin/socket traffic until the
// session ends or the user detaches. It restores the terminal's original
// mode before returning under every exit path.
func (c *Client) Run() error {
	fd := int(c.stdin.Fd())

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("attach: set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	rows, cols, err := currentSize(fd)
	if err != nil {
		return fmt.Errorf("attach: get terminal size: %w", err)
	}
	if err := c.writeFrame(protocol.TagInit, protocol.ResizePayload(rows, cols)); err != nil {
		return fmt.Errorf("attach: send init: %w", err)
	}

	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, unix.SIGWINCH)
	defer signal.Stop(sigwinch)

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			c.conn.Close()
		})
	}

	go c.watchResize(fd, sigwinch, done)
	go c.pumpStdin(done, stop)

	return c.pumpSocket(done, stop)
}

func currentSize(fd int) (rows, cols uint16, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return ws.Row, ws.Col, nil
}

func (c *Client) watchResize(fd int, sigwinch chan os.Signal, done chan struct{}) {
	for {
		select {
		case <-sigwinch:
			rows, cols, err := currentSize(fd)
			if err != nil {
				continue
			}
			_ = c.writeFrame(protocol.TagResize, protocol.ResizePayload(rows, cols))
		case <-done:
			return
		}
	}
}

func (c *Client) pumpStdin(done chan struct{}, stop func()) {
	buf := make([]byte, 4096)
	for {
		n, err := c.stdin.Read(buf)
		if n > 0 {
			data := buf[:n]
			if i := findDetach(data); i >= 0 {
				if i > 0 {
					_ = c.writeFrame(protocol.TagInput, data[:i])
				}
				_ = c.writeFrame(protocol.TagDetach, nil)
				stop()
				return
			}
			if err := c.writeFrame(protocol.TagInput, data); err != nil {
				stop()
				return
			}
		}
		if err != nil {
			stop()
			return
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func (c *Client) pumpSocket(done chan struct{}, stop func()) error {
	var dec protocol.Decoder
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				frame, ok, derr := dec.Decode()
				if derr != nil {
					stop()
					return derr
				}
				if !ok {
					break
				}
				if frame.Tag == protocol.TagOutput {
					c.stdout.Write(frame.Payload)
				}
			}
		}
		if err != nil {
			select {
			case <-done:
				return nil
			default:
			}
			stop()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func findDetach(data []byte) int {
	if i := bytes.IndexByte(data, detachByte); i >= 0 {
		return i
	}
	for _, seq := range detachCSI {
		if i := bytes.Index(data, seq); i >= 0 {
			return i
		}
	}
	return -1
}

func (c *Client) writeFrame(tag protocol.Tag, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(protocol.Encode(nil, tag, payload))
	return err
}
