package input

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/steer"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"512", 512, true},
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{"  -3,25 \r", -3.25, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1,2,3", 0, false},
		{"nan", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"+Inf", 0, false},
		{"-infinity", 0, false},
		{"12abc", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseDecimal(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-12, tt.in)
	}
}

func TestParseFrame(t *testing.T) {
	fr, err := ParseFrame("500,700")
	require.NoError(t, err)
	assert.Equal(t, Frame{500, 700}, fr)

	fr, err = ParseFrame("12,5;7,25\n")
	require.NoError(t, err)
	assert.Equal(t, 12.5, fr.Left())
	assert.Equal(t, 7.25, fr.Right())

	fr, err = ParseFrame("1\t2")
	require.NoError(t, err)
	assert.Equal(t, Frame{1, 2}, fr)

	_, err = ParseFrame("nan,5")
	assert.ErrorIs(t, err, dynamo.ErrNonFinite)

	for _, bad := range []string{"1,2,3", "1;2;3", "one,two", "42", "5 inf"} {
		_, err := ParseFrame(bad)
		assert.Error(t, err, bad)
	}
}

func TestTerminalRetriesInvalidInput(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(strings.NewReader("abc\n12,5\n300\n"), &out)
	ctx := context.Background()

	v, err := term.Acquire(ctx, steer.Left)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
	assert.Equal(t, "Enter input for left sensor:\n\nInvalid argument, try again!\n\n\n", out.String())

	out.Reset()
	v, err = term.Acquire(ctx, steer.Right)
	require.NoError(t, err)
	assert.Equal(t, 300.0, v)
	assert.Equal(t, "Enter input for right sensor:\n\n", out.String())

	_, err = term.Acquire(ctx, steer.Left)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTerminalRetriesNonFinite(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(strings.NewReader("nan\ninf\n5\n"), &out)

	v, err := term.Acquire(context.Background(), steer.Left)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid argument, try again!"))
}

func TestNonFiniteInputKeepsLoopRunning(t *testing.T) {
	term := NewTerminal(strings.NewReader("inf\n500\n700\n"), io.Discard)
	loop, err := steer.New(steer.DefaultConfig(), term)
	require.NoError(t, err)

	s, err := loop.Run(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cycles)
	assert.InDelta(t, 72.4, s.Last.Measurement, 0.1)
}

func TestTerminalDrivesLoop(t *testing.T) {
	term := NewTerminal(strings.NewReader("500\n700\n"), io.Discard)
	loop, err := steer.New(steer.DefaultConfig(), term)
	require.NoError(t, err)

	s, err := loop.Run(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cycles)
	assert.InDelta(t, 72.4, s.Last.Measurement, 0.1)
}

func TestSequence(t *testing.T) {
	seq := NewSequence([]Frame{{1, 2}, {3, 4}})
	ctx := context.Background()
	assert.Equal(t, 2, seq.Len())

	for _, want := range []Frame{{1, 2}, {3, 4}} {
		l, err := seq.Acquire(ctx, steer.Left)
		require.NoError(t, err)
		r, err := seq.Acquire(ctx, steer.Right)
		require.NoError(t, err)
		assert.Equal(t, want, Frame{l, r})
	}
	assert.Equal(t, 0, seq.Remaining())

	_, err := seq.Acquire(ctx, steer.Left)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSequenceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSequence([]Frame{{1, 2}}).Acquire(ctx, steer.Left)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadCSV(t *testing.T) {
	t.Run("run file header", func(t *testing.T) {
		data := "cycle,raw_left,raw_right,output\n1,500,700,85\n2,600,400,95\n"
		frames, err := ReadCSV(strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, []Frame{{500, 700}, {600, 400}}, frames)
	})

	t.Run("plain header", func(t *testing.T) {
		frames, err := ReadCSV(strings.NewReader("Right,Left\n1,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []Frame{{2, 1}}, frames)
	})

	t.Run("no header", func(t *testing.T) {
		frames, err := ReadCSV(strings.NewReader("# recorded on the bench\n1,2\n3.5,4\n"))
		require.NoError(t, err)
		assert.Equal(t, []Frame{{1, 2}, {3.5, 4}}, frames)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("a,b\n1,2\n"))
		assert.Error(t, err)
	})

	t.Run("bad value", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("1,2\nx,4\n"))
		assert.ErrorContains(t, err, "line 2")
	})
}

func TestLinesSkipsMalformed(t *testing.T) {
	lines := NewLines(strings.NewReader("500,700\n\ngarbage\nnan,512\n1 2"))
	ctx := context.Background()

	l, err := lines.Acquire(ctx, steer.Left)
	require.NoError(t, err)
	r, _ := lines.Acquire(ctx, steer.Right)
	assert.Equal(t, Frame{500, 700}, Frame{l, r})

	l, err = lines.Acquire(ctx, steer.Left)
	require.NoError(t, err)
	r, _ = lines.Acquire(ctx, steer.Right)
	assert.Equal(t, Frame{1, 2}, Frame{l, r})
	assert.Equal(t, 2, lines.Skipped())

	_, err = lines.Acquire(ctx, steer.Left)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMQTTHandle(t *testing.T) {
	m := newMQTT("servosteer/sensors")
	ctx := context.Background()

	m.handle([]byte(`not json`))
	m.handle([]byte(`{"left": 1}`))
	m.handle([]byte(`{"left": 300, "right": 800}`))

	l, err := m.Acquire(ctx, steer.Left)
	require.NoError(t, err)
	r, err := m.Acquire(ctx, steer.Right)
	require.NoError(t, err)
	assert.Equal(t, 300.0, l)
	assert.Equal(t, 800.0, r)
	assert.Len(t, m.frames, 0)
}

func TestMQTTDropsWhenFull(t *testing.T) {
	m := newMQTT("t")
	for i := 0; i < mqttBacklog+3; i++ {
		m.handle([]byte(`{"left": 1, "right": 2}`))
	}
	assert.Equal(t, int64(3), m.Dropped())
}

func TestMQTTWaitHonoursContext(t *testing.T) {
	m := newMQTT("t")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Acquire(ctx, steer.Left)
	assert.ErrorIs(t, err, context.Canceled)
	m.Close()
}
