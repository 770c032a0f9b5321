// Package snapshot synthesizes the single redraw byte stream sent to a
// re-attaching client, per SPEC_FULL.md §4.4. It never replays history:
// it walks the live terminal-emulator grid exactly once.
package snapshot

import (
	"fmt"
	"image/color"
	"strings"

	ht "github.com/danielgatis/go-headless-term"

	"github.com/neurosnap/zmx-sub000/internal/term"
)

// style is the subset of cell attributes the SGR delta policy tracks.
type style struct {
	bold, dim, italic, reverse, hidden, strike bool
	underline                                  underlineKind
	fg, bg, ul                                 colorKind
}

type underlineKind int

const (
	underlineNone underlineKind = iota
	underlineSingle
	underlineDouble
	underlineCurly
	underlineDotted
	underlineDashed
)

// colorKind is a small tagged union distinguishing "default" (terminal's
// own palette entry, never overridden) from an indexed or truecolor
// value, matching the adapter library's Fg/Bg representations.
type colorKind struct {
	isDefault bool
	indexed   bool
	index     int
	r, g, b   uint8
}

func defaultColor() colorKind { return colorKind{isDefault: true} }

func cellStyle(c *ht.Cell) style {
	s := style{
		bold:    c.HasFlag(ht.CellFlagBold),
		dim:     c.HasFlag(ht.CellFlagDim),
		italic:  c.HasFlag(ht.CellFlagItalic),
		reverse: c.HasFlag(ht.CellFlagReverse),
		hidden:  c.HasFlag(ht.CellFlagHidden),
		strike:  c.HasFlag(ht.CellFlagStrike),
		fg:      colorOf(c.Fg, true),
		bg:      colorOf(c.Bg, false),
	}
	switch {
	case c.HasFlag(ht.CellFlagDoubleUnderline):
		s.underline = underlineDouble
	case c.HasFlag(ht.CellFlagCurlyUnderline):
		s.underline = underlineCurly
	case c.HasFlag(ht.CellFlagDottedUnderline):
		s.underline = underlineDotted
	case c.HasFlag(ht.CellFlagDashedUnderline):
		s.underline = underlineDashed
	case c.HasFlag(ht.CellFlagUnderline):
		s.underline = underlineSingle
	}
	if c.UnderlineColor != nil {
		s.ul = colorOf(c.UnderlineColor, true)
	} else {
		s.ul = defaultColor()
	}
	return s
}

func colorOf(c color.Color, fg bool) colorKind {
	switch v := c.(type) {
	case *ht.NamedColor:
		if (fg && v.Name == ht.NamedColorForeground) || (!fg && v.Name == ht.NamedColorBackground) {
			return defaultColor()
		}
		// Dim/bright named slots have no direct SGR code without the
		// library's own (unexported) palette resolver; fall back to the
		// terminal's default rather than guess an approximate RGB.
		return defaultColor()
	case *ht.IndexedColor:
		return colorKind{indexed: true, index: v.Index}
	case color.RGBA:
		return colorKind{r: v.R, g: v.G, b: v.B}
	default:
		return defaultColor()
	}
}

// sgrDelta returns the escape sequence transitioning from "from" to "to",
// or "" if they are identical. It emits only the attributes that differ.
func sgrDelta(from, to style) string {
	var codes []string
	add := func(c string) { codes = append(codes, c) }

	if from.bold != to.bold || from.dim != to.dim {
		// SGR 22 clears both bold and dim, so it is needed whenever either
		// is turned off; the ones still wanted are then re-enabled.
		if (from.bold && !to.bold) || (from.dim && !to.dim) {
			add("22")
		}
		if to.bold {
			add("1")
		}
		if to.dim {
			add("2")
		}
	}
	if from.italic != to.italic {
		if to.italic {
			add("3")
		} else {
			add("23")
		}
	}
	if from.underline != to.underline {
		switch to.underline {
		case underlineNone:
			add("24")
		case underlineSingle:
			add("4")
		case underlineDouble:
			add("4:2")
		case underlineCurly:
			add("4:3")
		case underlineDotted:
			add("4:4")
		case underlineDashed:
			add("4:5")
		}
	}
	if from.reverse != to.reverse {
		if to.reverse {
			add("7")
		} else {
			add("27")
		}
	}
	if from.hidden != to.hidden {
		if to.hidden {
			add("8")
		} else {
			add("28")
		}
	}
	if from.strike != to.strike {
		if to.strike {
			add("9")
		} else {
			add("29")
		}
	}
	if from.fg != to.fg {
		add(colorCode(to.fg, true))
	}
	if from.bg != to.bg {
		add(colorCode(to.bg, false))
	}
	if from.ul != to.ul {
		add(underlineColorCode(to.ul))
	}

	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorCode(c colorKind, fg bool) string {
	if c.isDefault {
		if fg {
			return "39"
		}
		return "49"
	}
	base := 38
	if !fg {
		base = 48
	}
	if c.indexed {
		return fmt.Sprintf("%d;5;%d", base, c.index)
	}
	return fmt.Sprintf("%d;2;%d;%d;%d", base, c.r, c.g, c.b)
}

func underlineColorCode(c colorKind) string {
	if c.isDefault {
		return "59"
	}
	if c.indexed {
		return fmt.Sprintf("58;5;%d", c.index)
	}
	return fmt.Sprintf("58;2;%d;%d;%d", c.r, c.g, c.b)
}

// Render produces the full re-attach redraw sequence described in
// SPEC_FULL.md §4.4, steps 1-9.
func Render(a *term.Adapter) []byte {
	var b strings.Builder

	b.WriteString("\x1b[?25l") // 1. hide cursor
	b.WriteString("\x1b[r")    // 2. reset scroll region
	b.WriteString("\x1b[0m")   // 3. reset SGR

	rows, cols := a.Size()

	if a.IsAlternateScreen() { // 4. enter alt screen if active, then clear + home
		b.WriteString("\x1b[?1049h")
	}
	b.WriteString("\x1b[2J\x1b[H")

	last := style{fg: defaultColor(), bg: defaultColor(), ul: defaultColor()}
	for row := 0; row < rows; row++ {
		fmt.Fprintf(&b, "\x1b[%d;1H", row+1) // position at column 1
		b.WriteString("\x1b[2K")             // clear line

		for col := 0; col < cols; col++ {
			cell := a.Cell(row, col)
			if cell == nil {
				continue
			}
			if cell.IsWideSpacer() {
				continue // 5: skip the spacer cell of a wide glyph
			}
			cur := cellStyle(cell)
			if delta := sgrDelta(last, cur); delta != "" {
				b.WriteString(delta)
			}
			last = cur
			ch := cell.Char
			if ch == 0 {
				ch = ' '
			}
			b.WriteRune(ch)
		}
	}

	top, bottom := a.ScrollRegion()
	if !a.HasDefaultScrollRegion() { // 6. restore scroll region
		fmt.Fprintf(&b, "\x1b[%d;%dr", top+1, bottom)
	}

	if a.OriginMode() { // 7. restore DEC modes
		b.WriteString("\x1b[?6h")
	} else {
		b.WriteString("\x1b[?6l")
	}
	if !a.LineWrap() { // default is enabled; emit disable only if off
		b.WriteString("\x1b[?7l")
	}
	if a.ReverseWraparound() {
		b.WriteString("\x1b[?45h")
	}
	if a.BracketedPaste() {
		b.WriteString("\x1b[?2004h")
	}

	curRow, curCol := a.CursorPos() // 8. restore cursor position
	if a.OriginMode() && !a.HasDefaultScrollRegion() {
		curRow -= top
	}
	fmt.Fprintf(&b, "\x1b[%d;%dH", curRow+1, curCol+1)

	b.WriteString("\x1b[?25h") // 9. show cursor, unconditionally

	return []byte(b.String())
}
