package attach

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurosnap/zmx-sub000/internal/protocol"
)

func TestFindDetachRecognizesRawByte(t *testing.T) {
	data := []byte("hello\x1cworld")
	assert.Equal(t, 5, findDetach(data))
}

func TestFindDetachRecognizesCSISequences(t *testing.T) {
	data := append([]byte("abc"), []byte("\x1b[92;5u")...)
	assert.Equal(t, 3, findDetach(data))
}

func TestFindDetachReturnsNegativeOneWhenAbsent(t *testing.T) {
	assert.Equal(t, -1, findDetach([]byte("plain text")))
}

func TestRunSendsInitFrameThenForwardsOutput(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	require.NoError(t, pty.Setsize(slave, &pty.Winsize{Rows: 24, Cols: 80}))

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	c := New(clientConn)
	c.stdin = slave

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	c.stdout = stdoutW

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run() }()

	var dec protocol.Decoder
	buf := make([]byte, 64)
	n, err := serverConn.Read(buf)
	require.NoError(t, err)
	dec.Feed(buf[:n])
	frame, ok, derr := dec.Decode()
	require.NoError(t, derr)
	require.True(t, ok)
	require.Equal(t, protocol.TagInit, frame.Tag)
	rows, cols, ok := protocol.DecodeResizePayload(frame.Payload)
	require.True(t, ok)
	assert.Equal(t, uint16(24), rows)
	assert.Equal(t, uint16(80), cols)

	_, err = serverConn.Write(protocol.Encode(nil, protocol.TagOutput, []byte("hi")))
	require.NoError(t, err)

	out := make([]byte, 2)
	_, err = stdoutR.Read(out)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))

	_, err = master.Write([]byte{detachByte})
	require.NoError(t, err)

	// net.Pipe is unbuffered: the client's Detach frame write completes
	// only once this side reads it.
	n, err = serverConn.Read(buf)
	require.NoError(t, err)
	dec.Feed(buf[:n])
	frame, ok, derr = dec.Decode()
	require.NoError(t, derr)
	require.True(t, ok)
	assert.Equal(t, protocol.TagDetach, frame.Tag)

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after detach byte")
	}
}
