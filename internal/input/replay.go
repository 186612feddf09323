package input

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sequence replays a fixed list of frames and then returns io.EOF.
type Sequence struct {
	*Framed
	frames []Frame
	pos    int
}

func NewSequence(frames []Frame) *Sequence {
	s := &Sequence{frames: frames}
	s.Framed = NewFramed(s.next)
	return s
}

func (s *Sequence) next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *Sequence) Len() int       { return len(s.frames) }
func (s *Sequence) Remaining() int { return len(s.frames) - s.pos }

var (
	leftColumns  = []string{"raw_left", "left", "l"}
	rightColumns = []string{"raw_right", "right", "r"}
)

// ReadCSV loads frames from CSV. With a header, the raw_left/raw_right (or
// left/right) columns are used; this reads stored run files directly.
// Without a header the first two columns are used.
func ReadCSV(r io.Reader) ([]Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	li, ri := 0, 1
	start := 0
	if _, err := ParseDecimal(records[0][0]); err != nil {
		li = column(records[0], leftColumns)
		ri = column(records[0], rightColumns)
		if li < 0 || ri < 0 {
			return nil, fmt.Errorf("csv header %v has no left/right columns", records[0])
		}
		start = 1
	}

	frames := make([]Frame, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) <= li || len(rec) <= ri {
			return nil, fmt.Errorf("csv line %d: expected at least %d fields", i+1, max(li, ri)+1)
		}
		l, err := ParseDecimal(rec[li])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", i+1, err)
		}
		rr, err := ParseDecimal(rec[ri])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", i+1, err)
		}
		frames = append(frames, Frame{l, rr})
	}
	return frames, nil
}

func column(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

// OpenReplay loads a CSV file into a Sequence.
func OpenReplay(path string) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frames, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	return NewSequence(frames), nil
}
