package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsSize(t *testing.T) {
	a := New(0, 0, 0)
	rows, cols := a.Size()
	assert.Equal(t, DefaultRows, rows)
	assert.Equal(t, DefaultCols, cols)
}

func TestFeedAcceptsSplitUTF8(t *testing.T) {
	a := New(24, 80, 0)
	word := []byte("héllo")
	// Split inside the two-byte encoding of "é".
	a.Feed(word[:2])
	a.Feed(word[2:])

	row := []rune{}
	for col := 0; col < 10; col++ {
		c := a.Cell(0, col)
		if c == nil || c.Char == 0 || c.Char == ' ' {
			continue
		}
		row = append(row, c.Char)
	}
	assert.Contains(t, string(row), "h")
	assert.Contains(t, string(row), "é")
}

func TestResizeDoesNotDropCells(t *testing.T) {
	a := New(24, 80, 0)
	a.Feed([]byte("hello"))

	a.Resize(30, 120)
	rows, cols := a.Size()
	assert.Equal(t, 30, rows)
	assert.Equal(t, 120, cols)

	c := a.Cell(0, 0)
	require.NotNil(t, c)
	assert.Equal(t, 'h', c.Char)
}

func TestIsAlternateScreenTracksSwitch(t *testing.T) {
	a := New(24, 80, 0)
	assert.False(t, a.IsAlternateScreen())

	a.Feed([]byte("\x1b[?1049h"))
	assert.True(t, a.IsAlternateScreen())

	a.Feed([]byte("\x1b[?1049l"))
	assert.False(t, a.IsAlternateScreen())
}

func TestReverseWraparoundSideChannel(t *testing.T) {
	a := New(24, 80, 0)
	assert.False(t, a.ReverseWraparound())

	a.Feed([]byte("\x1b[?45h"))
	assert.True(t, a.ReverseWraparound())

	a.Feed([]byte("\x1b[?45l"))
	assert.False(t, a.ReverseWraparound())
}

func TestScrollRegionRoundTrip(t *testing.T) {
	a := New(24, 80, 0)
	a.Feed([]byte("\x1b[5;20r"))

	top, bottom := a.ScrollRegion()
	assert.Equal(t, 4, top)
	assert.Equal(t, 20, bottom)
	assert.False(t, a.HasDefaultScrollRegion())
}
