package input

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/san-kum/servosteer/internal/steer"
)

// Terminal prompts for each channel and reads one number per line. Invalid
// lines are rejected with a message and the prompt is retried.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewScanner(in), out: out}
}

func (t *Terminal) Acquire(ctx context.Context, side steer.Side) (float64, error) {
	fmt.Fprintf(t.out, "Enter input for %s sensor:\n", side)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !t.in.Scan() {
			if err := t.in.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		fmt.Fprintln(t.out)

		v, err := ParseDecimal(t.in.Text())
		if err == nil {
			return v, nil
		}
		fmt.Fprint(t.out, "Invalid argument, try again!\n\n")
	}
}
