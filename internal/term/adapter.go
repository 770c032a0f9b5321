// Package term adapts the headless VT emulator library to the narrow
// contract the supervisor and the snapshot renderer need: feed bytes,
// resize, and read back cells/cursor/modes/scroll region.
package term

import (
	"bytes"
	"sync"

	ht "github.com/danielgatis/go-headless-term"
)

// DefaultRows and DefaultCols are the fallback window size used until a
// client reports its own (rows, cols) in an Init frame.
const (
	DefaultRows = 24
	DefaultCols = 80
)

// Adapter wraps a *headlessterm.Terminal plus the side-channel state the
// library does not expose directly: reverse-wraparound mode, which has
// no equivalent TerminalMode flag in this library (see DESIGN.md).
type Adapter struct {
	mu   sync.Mutex
	t    *ht.Terminal
	rows int
	cols int

	reverseWrap bool
}

// New constructs an adapter sized (rows, cols) with the given scrollback
// depth. maxScrollback of 0 disables scrollback retention, which is all
// the supervisor needs since re-attach never replays history.
func New(rows, cols, maxScrollback int) *Adapter {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	t := ht.New(ht.WithSize(rows, cols))
	t.SetMaxScrollback(maxScrollback)
	return &Adapter{t: t, rows: rows, cols: cols}
}

// Feed parses data incrementally, updating cells, cursor, and modes. It
// accepts arbitrary byte boundaries, including a split VT sequence or a
// partial UTF-8 codepoint, because the underlying decoder buffers
// incomplete sequences across calls.
func (a *Adapter) Feed(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.t.Write(data)
	a.scanReverseWrap(data)
}

// Resize changes the emulator's dimensions. Visible cells are never
// dropped silently; the library reflows scrollback instead.
func (a *Adapter) Resize(rows, cols int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rows <= 0 || cols <= 0 {
		return
	}
	a.t.Resize(rows, cols)
	a.rows, a.cols = rows, cols
}

// Size returns the current (rows, cols).
func (a *Adapter) Size() (rows, cols int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rows, a.cols
}

// Cell returns a copy of the cell at (row, col), or nil if out of range.
func (a *Adapter) Cell(row, col int) *ht.Cell {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.t.Cell(row, col)
	if c == nil {
		return nil
	}
	cp := c.Copy()
	return &cp
}

// CursorPos returns the 0-based cursor row/column.
func (a *Adapter) CursorPos() (row, col int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.CursorPos()
}

// CursorVisible reports whether the cursor is currently shown.
func (a *Adapter) CursorVisible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.CursorVisible()
}

// IsAlternateScreen reports whether the terminal is currently displaying
// its alternate buffer. The library exposes this directly, so no
// side-channel mode tracking is needed for this particular open question
// (see SPEC_FULL.md §9).
func (a *Adapter) IsAlternateScreen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.IsAlternateScreen()
}

// ScrollRegion returns the active scroll region as 0-based (top, bottom)
// rows, bottom exclusive. (0, rows) means no non-default region is set.
func (a *Adapter) ScrollRegion() (top, bottom int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.ScrollRegion()
}

// HasDefaultScrollRegion reports whether the active scroll region spans
// the whole viewport.
func (a *Adapter) HasDefaultScrollRegion() bool {
	top, bottom := a.ScrollRegion()
	rows, _ := a.Size()
	return top == 0 && bottom == rows
}

// OriginMode reports DECOM: cursor addressing relative to the scroll
// region rather than the full viewport.
func (a *Adapter) OriginMode() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.HasMode(ht.ModeOrigin)
}

// LineWrap reports DECAWM (autowrap). The library enables this by
// default, matching the DEC default zmx must restore an explicit
// "disable" for when it differs.
func (a *Adapter) LineWrap() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.HasMode(ht.ModeLineWrap)
}

// BracketedPaste reports whether bracketed-paste mode is active.
func (a *Adapter) BracketedPaste() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t.HasMode(ht.ModeBracketedPaste)
}

// ReverseWraparound reports DEC private mode 45. The wrapped library has
// no TerminalMode flag for it, so the adapter tracks the last bare
// DECSET/DECRST toggle it has observed in PTY output (see scanReverseWrap).
func (a *Adapter) ReverseWraparound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reverseWrap
}

var (
	reverseWrapSet   = []byte("\x1b[?45h")
	reverseWrapReset = []byte("\x1b[?45l")
)

// scanReverseWrap is a minimal side-channel tracker for DEC mode 45
// (reverse wraparound), which go-headless-term's TerminalMode bitmask
// does not model. It only needs to catch the common unambiguous case:
// the bare `CSI ? 45 h`/`CSI ? 45 l` toggle, not a compound mode list
// like `CSI ? 45 ; 1049 h`. Must be called with a.mu held.
func (a *Adapter) scanReverseWrap(data []byte) {
	if idx := lastIndexOf(data, reverseWrapSet); idx >= 0 {
		a.reverseWrap = true
	}
	if idx := lastIndexOf(data, reverseWrapReset); idx >= 0 {
		if setIdx := lastIndexOf(data, reverseWrapSet); setIdx < idx {
			a.reverseWrap = false
		}
	}
}

func lastIndexOf(data, sep []byte) int {
	return bytes.LastIndex(data, sep)
}
