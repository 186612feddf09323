package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// Lines reads one "left,right" frame per line. Blank and malformed lines are
// skipped.
type Lines struct {
	*Framed
	r       *bufio.Reader
	skipped int
}

func NewLines(r io.Reader) *Lines {
	l := &Lines{r: bufio.NewReader(r)}
	l.Framed = NewFramed(l.next)
	return l
}

func (l *Lines) next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		line, err := l.r.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			fr, perr := ParseFrame(line)
			if perr == nil {
				return fr, nil
			}
			l.skipped++
			glog.Warningf("input: skipping line: %v", perr)
		}
		if err != nil {
			return Frame{}, err
		}
	}
}

// Skipped returns the number of malformed lines dropped so far.
func (l *Lines) Skipped() int { return l.skipped }

// Serial reads frames from a serial port and writes each servo command back
// as a line, so a microcontroller can both sample and drive the servo.
type Serial struct {
	*Lines
	port serial.Port
	once sync.Once
	stop func() bool
}

// OpenSerial opens the port. Cancelling ctx closes it, which unblocks a
// pending read.
func OpenSerial(ctx context.Context, name string, baud int) (*Serial, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	glog.Infof("input: serial %s open at %d baud", name, baud)

	s := &Serial{Lines: NewLines(port), port: port}
	s.stop = context.AfterFunc(ctx, func() { s.Close() })
	return s, nil
}

func (s *Serial) Actuate(ctx context.Context, output float64) error {
	_, err := fmt.Fprintf(s.port, "%.2f\n", output)
	return err
}

func (s *Serial) Close() error {
	var err error
	s.once.Do(func() {
		s.stop()
		err = s.port.Close()
	})
	return err
}
