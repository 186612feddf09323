// Package input provides acquisition collaborators for the steering loop.
//
// Sources that deliver both channels in one frame (serial lines, MQTT
// messages, replay rows) are wrapped in [Framed]: a new frame is read when
// the left channel is acquired and the right channel reuses it.
package input

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/steer"
)

// Frame is one left/right reading pair.
type Frame [2]float64

func (f Frame) Left() float64  { return f[steer.Left] }
func (f Frame) Right() float64 { return f[steer.Right] }

// Framed adapts a frame producer to steer.Acquirer.
type Framed struct {
	next func(ctx context.Context) (Frame, error)
	cur  Frame
}

func NewFramed(next func(ctx context.Context) (Frame, error)) *Framed {
	return &Framed{next: next}
}

func (f *Framed) Acquire(ctx context.Context, side steer.Side) (float64, error) {
	if side == steer.Left {
		fr, err := f.next(ctx)
		if err != nil {
			return 0, err
		}
		f.cur = fr
	}
	return f.cur[side], nil
}

// ParseDecimal parses a number written with either '.' or ',' as the
// decimal separator. The whole string must be the number, and NaN and the
// infinities are rejected.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !dynamo.IsFinite(v) {
		return 0, fmt.Errorf("%q: %w", s, dynamo.ErrNonFinite)
	}
	return v, nil
}

// ParseFrame parses "left right", "left;right" or "left<TAB>right". A comma
// is treated as a separator only when neither of the others is present and
// exactly one comma appears.
func ParseFrame(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	var fields []string
	switch {
	case strings.ContainsAny(line, ";\t "):
		fields = strings.FieldsFunc(line, func(r rune) bool { return r == ';' || r == '\t' || r == ' ' })
	case strings.Count(line, ",") == 1:
		fields = strings.Split(line, ",")
	default:
		return Frame{}, fmt.Errorf("malformed frame %q", line)
	}
	if len(fields) != 2 {
		return Frame{}, fmt.Errorf("malformed frame %q: expected 2 fields, got %d", line, len(fields))
	}

	var fr Frame
	for i, f := range fields {
		v, err := ParseDecimal(f)
		if err != nil {
			return Frame{}, fmt.Errorf("malformed frame %q: %w", line, err)
		}
		fr[i] = v
	}
	return fr, nil
}
