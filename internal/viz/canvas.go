package viz

import (
	"math"
	"strings"

	"github.com/san-kum/servosteer/internal/dynamo"
)

// brailleBase is U+2800, the empty braille pattern.
const brailleBase = 0x2800

// dotBits maps a dot inside a 2x4 braille cell, indexed [row][col], to its
// bit in the braille block:
//
//	1 4
//	2 5
//	3 6
//	7 8
var dotBits = [4][2]byte{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a monochrome dot raster rendered as braille text. Each of its
// Cols x Rows character cells carries a 2x4 block of dots.
type Canvas struct {
	Cols, Rows int
	cells      []byte
}

func NewCanvas(cols, rows int) *Canvas {
	return &Canvas{Cols: cols, Rows: rows, cells: make([]byte, cols*rows)}
}

// Dots is the raster size in dots.
func (c *Canvas) Dots() (w, h int) { return 2 * c.Cols, 4 * c.Rows }

func (c *Canvas) index(x, y int) (int, bool) {
	w, h := c.Dots()
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0, false
	}
	return (y/4)*c.Cols + x/2, true
}

// Plot lights the dot at (x, y). Dots off the raster are dropped.
func (c *Canvas) Plot(x, y int) {
	if i, ok := c.index(x, y); ok {
		c.cells[i] |= dotBits[y%4][x%2]
	}
}

// Lit reports whether the dot at (x, y) is on.
func (c *Canvas) Lit(x, y int) bool {
	i, ok := c.index(x, y)
	return ok && c.cells[i]&dotBits[y%4][x%2] != 0
}

func (c *Canvas) Reset() { clear(c.cells) }

// Segment lights the dots between two points, stepping once per dot along
// the longer axis.
func (c *Canvas) Segment(x0, y0, x1, y1 int) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		c.Plot(x0, y0)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.Plot(x0+int(math.Round(t*float64(dx))), y0+int(math.Round(t*float64(dy))))
	}
}

// lane places lateral corridor offsets on raster rows. The walls sit on the
// top and bottom rows, offset zero halfway between.
type lane struct {
	top, bottom int
	half        float64
}

func (l lane) mid() int { return (l.top + l.bottom) / 2 }

// row maps a lateral offset in [-half, half] to a row strictly inside the walls.
func (l lane) row(offset float64) int {
	frac := (offset + l.half) / (2 * l.half)
	return l.top + 1 + int(math.Round(frac*float64(l.bottom-l.top-2)))
}

// laneDash is the run length, in dots, of the centre line dashes.
const laneDash = 3

// DrawCorridor renders a corridor of the given half width seen from above:
// both walls, a dashed centre line, the recent trajectory scrolling in from
// the left and a heading tick at the vehicle. Each trajectory state is
// (lateral offset, heading).
func (c *Canvas) DrawCorridor(half float64, traj []dynamo.State) {
	c.Reset()
	w, h := c.Dots()
	l := lane{top: 1, bottom: h - 2, half: half}
	for x := 0; x < w; x++ {
		c.Plot(x, l.top)
		c.Plot(x, l.bottom)
		if (x/laneDash)%2 == 0 {
			c.Plot(x, l.mid())
		}
	}

	n := len(traj)
	if n == 0 || half <= 0 {
		return
	}
	front := w - 8
	for i, s := range traj[max(0, n-1-front):] {
		c.Plot(front-(min(n-1, front)-i), l.row(s[0]))
	}

	head := traj[n-1]
	y := l.row(head[0])
	c.Segment(front, y, front+int(math.Round(6*math.Cos(head[1]))), y+int(math.Round(6*math.Sin(head[1]))))
	c.Segment(front-1, y-1, front-1, y+1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Rows * (c.Cols*3 + 1))
	for i, cell := range c.cells {
		b.WriteRune(rune(brailleBase + int(cell)))
		if (i+1)%c.Cols == 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
