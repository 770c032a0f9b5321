package session

import (
	"io"
	"sync"
)

// fakePTY is an in-memory stand-in for ptyproc.PTY so the event loop can
// be exercised without forking a real child process.
type fakePTY struct {
	mu        sync.Mutex
	out       io.Reader
	writes    [][]byte
	resizes   [][2]uint16
	pid       int
	terminate chan struct{}
}

func newFakePTY(out io.Reader) *fakePTY {
	return &fakePTY{out: out, pid: 4242, terminate: make(chan struct{})}
}

func (f *fakePTY) Read(buf []byte) (int, error) {
	return f.out.Read(buf)
}

func (f *fakePTY) Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, cp)
	return len(data), nil
}

func (f *fakePTY) Resize(rows, cols uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]uint16{rows, cols})
	return nil
}

func (f *fakePTY) Terminate() error {
	close(f.terminate)
	return nil
}

func (f *fakePTY) Pid() int { return f.pid }

func (f *fakePTY) writeLog() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

func (f *fakePTY) resizeLog() [][2]uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]uint16(nil), f.resizes...)
}
