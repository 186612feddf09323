// Package report renders cycle reports for people and machines.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/san-kum/servosteer/internal/steer"
)

var rule = strings.Repeat("-", 80) + "\n"

// Text writes the servo block after every cycle. With Detail set, the
// regulator block follows it.
type Text struct {
	w        io.Writer
	Decimals int
	Detail   bool
}

func NewText(w io.Writer) *Text {
	return &Text{w: w, Decimals: 1}
}

func (t *Text) Report(_ context.Context, r steer.Report) error {
	var b strings.Builder
	WriteServo(&b, r, t.Decimals)
	if t.Detail {
		WriteRegulator(&b, r, t.Decimals)
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func WriteServo(b *strings.Builder, r steer.Report, decimals int) {
	b.WriteString(rule)
	fmt.Fprintf(b, "Target servo angle:\t\t%.*f\n", decimals, r.Target)
	fmt.Fprintf(b, "Mapped input value:\t\t%.*f\n", decimals, r.Measurement)
	fmt.Fprintf(b, "Current servo angle:\t\t%.*f\n\n", decimals, r.Output)
	b.WriteString(steer.Describe(r.Target, r.Output, decimals))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
}

func WriteRegulator(b *strings.Builder, r steer.Report, decimals int) {
	b.WriteString(rule)
	fmt.Fprintf(b, "Target:\t\t%.*f\n", decimals, r.Target)
	fmt.Fprintf(b, "Input:\t\t%.*f\n", decimals, r.Measurement)
	fmt.Fprintf(b, "Output:\t\t%.*f\n", decimals, r.Output)
	fmt.Fprintf(b, "Last error:\t%.*f\n", decimals, r.LastError)
	b.WriteString(rule)
	b.WriteString("\n")
}

// JSONLines writes one JSON object per cycle. Safe for concurrent use.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Report(_ context.Context, r steer.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(r)
}

// Multi fans a report out to every reporter and joins their errors.
type Multi []steer.Reporter

func (m Multi) Report(ctx context.Context, r steer.Report) error {
	var errs []error
	for _, rep := range m {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Every passes on every nth report, starting with the first.
func Every(n int, next steer.Reporter) steer.Reporter {
	if n <= 1 {
		return next
	}
	return steer.ReporterFunc(func(ctx context.Context, r steer.Report) error {
		if (r.Cycle-1)%n != 0 {
			return nil
		}
		return next.Report(ctx, r)
	})
}
