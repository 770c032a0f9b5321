package session

import (
	"bytes"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/neurosnap/zmx-sub000/internal/protocol"
	"github.com/neurosnap/zmx-sub000/internal/term"
	"github.com/neurosnap/zmx-sub000/internal/transport"
)

func newTestSession(t *testing.T) (*Session, *fakePTY, *io.PipeWriter, string) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	listener, err := transport.Listen(sockPath)
	require.NoError(t, err)

	pr, pw := io.Pipe()
	fp := newFakePTY(pr)
	adapter := term.New(term.DefaultRows, term.DefaultCols, 0)

	s := New("test", []string{"sh"}, nil, zerolog.Nop(), listener)
	s.Attach(fp, adapter)

	go s.Run()
	t.Cleanup(func() { pw.Close() })

	return s, fp, pw, sockPath
}

func dialAndInit(t *testing.T, sockPath string, rows, cols uint16) net.Conn {
	t.Helper()
	conn, err := transport.Dial(sockPath)
	require.NoError(t, err)
	_, err = conn.Write(protocol.Encode(nil, protocol.TagInit, protocol.ResizePayload(rows, cols)))
	require.NoError(t, err)
	return conn
}

func readOneFrame(t *testing.T, conn net.Conn, timeout time.Duration) protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	var dec protocol.Decoder
	buf := make([]byte, 4096)
	for {
		frame, ok, err := dec.Decode()
		require.NoError(t, err)
		if ok {
			return frame
		}
		n, err := conn.Read(buf)
		require.NoError(t, err)
		dec.Feed(buf[:n])
	}
}

func TestBroadcastsOutputToAttachedClient(t *testing.T) {
	s, _, pw, sockPath := newTestSession(t)
	_ = s

	conn := dialAndInit(t, sockPath, 24, 80)
	defer conn.Close()

	_, err := pw.Write([]byte("hello world"))
	require.NoError(t, err)

	frame := readOneFrame(t, conn, 2*time.Second)
	require.Equal(t, protocol.TagOutput, frame.Tag)
	require.Contains(t, string(frame.Payload), "hello world")
}

func TestReattachReceivesSnapshotBeforeDetaching(t *testing.T) {
	s, _, pw, sockPath := newTestSession(t)
	_ = s

	first := dialAndInit(t, sockPath, 24, 80)
	_, err := pw.Write([]byte("hello"))
	require.NoError(t, err)
	_ = readOneFrame(t, first, 2*time.Second)
	first.Close()

	time.Sleep(50 * time.Millisecond)

	second := dialAndInit(t, sockPath, 24, 80)
	defer second.Close()

	frame := readOneFrame(t, second, 2*time.Second)
	require.Equal(t, protocol.TagOutput, frame.Tag)
	require.Contains(t, string(frame.Payload), "hello")
}

func TestResizeFrameAppliesToPty(t *testing.T) {
	s, fp, _, sockPath := newTestSession(t)
	_ = s

	conn := dialAndInit(t, sockPath, 24, 80)
	defer conn.Close()

	_, err := conn.Write(protocol.Encode(nil, protocol.TagResize, protocol.ResizePayload(40, 100)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, r := range fp.resizeLog() {
			if r[0] == 40 && r[1] == 100 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInfoReportsClientCountAndPid(t *testing.T) {
	s, fp, _, sockPath := newTestSession(t)
	_ = s

	conn := dialAndInit(t, sockPath, 24, 80)
	defer conn.Close()

	_, err := conn.Write(protocol.Encode(nil, protocol.TagInfo, nil))
	require.NoError(t, err)

	frame := readOneFrame(t, conn, 2*time.Second)
	require.Equal(t, protocol.TagInfo, frame.Tag)

	clients, pid, ok := protocol.DecodeInfoPayload(frame.Payload)
	require.True(t, ok)
	require.Equal(t, uint32(1), clients)
	require.Equal(t, int32(fp.Pid()), pid)
}

func TestDetachClosesOnlyThatClient(t *testing.T) {
	s, _, _, sockPath := newTestSession(t)

	a := dialAndInit(t, sockPath, 24, 80)
	b := dialAndInit(t, sockPath, 24, 80)
	defer b.Close()

	_, err := a.Write(protocol.Encode(nil, protocol.TagDetach, nil))
	require.NoError(t, err)

	buf := make([]byte, 16)
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = a.Read(buf)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return s.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSlowClientIsEvictedWithoutStallingOthers(t *testing.T) {
	s, _, pw, sockPath := newTestSession(t)

	slow := dialAndInit(t, sockPath, 24, 80)
	defer slow.Close()
	fast := dialAndInit(t, sockPath, 24, 80)
	defer fast.Close()

	// Never read from slow, so once its socket buffer is full its outbox
	// fills and overflows while fast keeps draining every frame it's sent.
	// Each chunk is a full PTY read so the kernel buffer fills quickly.
	chunk := bytes.Repeat([]byte("x"), pendingReadBuf)
	for i := 0; i < 1024; i++ {
		_, err := pw.Write(chunk)
		require.NoError(t, err)
		_ = readOneFrame(t, fast, 2*time.Second)
	}

	require.Eventually(t, func() bool {
		return s.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKillTerminatesChildAndClosesClients(t *testing.T) {
	s, fp, _, sockPath := newTestSession(t)
	_ = s

	conn := dialAndInit(t, sockPath, 24, 80)
	defer conn.Close()

	_, err := conn.Write(protocol.Encode(nil, protocol.TagKill, nil))
	require.NoError(t, err)

	select {
	case <-fp.terminate:
	case <-time.After(2 * time.Second):
		t.Fatal("fake pty was not terminated")
	}
}
