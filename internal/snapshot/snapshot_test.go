package snapshot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neurosnap/zmx-sub000/internal/term"
)

func TestRenderStartsWithHideCursorAndResets(t *testing.T) {
	a := term.New(24, 80, 0)
	a.Feed([]byte("hello\n$ "))

	out := string(Render(a))

	assert.True(t, strings.HasPrefix(out, "\x1b[?25l\x1b[r\x1b[0m"))
	assert.True(t, strings.HasSuffix(out, "\x1b[?25h"))
}

func TestRenderContainsWrittenText(t *testing.T) {
	a := term.New(24, 80, 0)
	a.Feed([]byte("hello\n$ "))

	out := string(Render(a))
	assert.Contains(t, out, "hello")
}

func TestRenderEntersAlternateScreenWhenActive(t *testing.T) {
	a := term.New(24, 80, 0)
	a.Feed([]byte("\x1b[?1049h"))
	a.Feed([]byte("\x1b[5;10HX"))

	out := string(Render(a))
	assert.Contains(t, out, "\x1b[?1049h")
	assert.Contains(t, out, "X")
}

func TestRenderRestoresNonDefaultScrollRegion(t *testing.T) {
	a := term.New(24, 80, 0)
	a.Feed([]byte("\x1b[5;20r"))

	out := string(Render(a))
	assert.Contains(t, out, "\x1b[5;20r")
}

func TestRenderSkipsWideSpacerCells(t *testing.T) {
	a := term.New(24, 80, 0)
	a.Feed([]byte("你好"))

	out := string(Render(a))
	assert.Contains(t, out, "你")
	assert.Contains(t, out, "好")
	// No blank is emitted for the spacer cell between the two glyphs.
	assert.Contains(t, out, "你好")
}

func TestRenderRestoresCursorWithinBounds(t *testing.T) {
	a := term.New(30, 120, 0)
	a.Feed([]byte("\x1b[10;50H"))

	out := string(Render(a))
	assert.Contains(t, out, "\x1b[10;50H")
}
