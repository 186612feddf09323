package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/servosteer/internal/steer"
)

type Point struct{ X, Y float64 }

// PhasePortrait pairs the error of each cycle with its change since the
// previous cycle. A settling loop spirals into the origin.
type PhasePortrait struct {
	Points []Point
}

func NewPhasePortrait(reports []steer.Report) *PhasePortrait {
	p := &PhasePortrait{Points: make([]Point, 0, len(reports))}
	for _, r := range reports {
		p.Points = append(p.Points, Point{X: r.LastError, Y: r.Derivative})
	}
	return p
}

// ASCII plots the portrait on a width by height grid centred on the origin,
// where a settled loop rests. Points are drawn by age: '.' for the first third
// of the run, 'o' for the middle, '●' for the last.
func (portrait *PhasePortrait) ASCII(width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 3 || height < 3 {
		return ""
	}

	var spanX, spanY float64
	for _, p := range portrait.Points {
		spanX = math.Max(spanX, math.Abs(p.X))
		spanY = math.Max(spanY, math.Abs(p.Y))
	}
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}

	midCol, midRow := (width-1)/2, (height-1)/2
	cell := func(p Point) (int, int) {
		col := midCol + int(math.Round(p.X/spanX*float64(midCol)))
		row := midRow - int(math.Round(p.Y/spanY*float64(midRow)))
		return col, row
	}

	grid := make([][]rune, height)
	for row := range grid {
		grid[row] = []rune(strings.Repeat(" ", width))
		grid[row][midCol] = '│'
	}
	for col := range grid[midRow] {
		grid[midRow][col] = '─'
	}
	grid[midRow][midCol] = '┼'

	n := len(portrait.Points)
	for i, p := range portrait.Points {
		mark := '●'
		switch {
		case i < n/3:
			mark = '.'
		case i < 2*n/3:
			mark = 'o'
		}
		col, row := cell(p)
		if row >= 0 && row < height && col >= 0 && col < width {
			grid[row][col] = mark
		}
	}

	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
