package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/san-kum/servosteer/internal/steer"
)

type column struct {
	name   string
	format func(r steer.Report) string
	parse  func(s string, r *steer.Report) error
}

func floatColumn(name string, field func(r *steer.Report) *float64) column {
	return column{
		name:   name,
		format: func(r steer.Report) string { return formatFloat(*field(&r)) },
		parse: func(s string, r *steer.Report) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*field(r) = v
			return nil
		},
	}
}

var columns = []column{
	{
		name:   "cycle",
		format: func(r steer.Report) string { return strconv.Itoa(r.Cycle) },
		parse: func(s string, r *steer.Report) (err error) {
			r.Cycle, err = strconv.Atoi(s)
			return err
		},
	},
	{
		name: "time",
		format: func(r steer.Report) string {
			if r.Time.IsZero() {
				return ""
			}
			return r.Time.Format(time.RFC3339Nano)
		},
		parse: func(s string, r *steer.Report) (err error) {
			if s == "" {
				return nil
			}
			r.Time, err = time.Parse(time.RFC3339Nano, s)
			return err
		},
	},
	floatColumn("target", func(r *steer.Report) *float64 { return &r.Target }),
	floatColumn("measurement", func(r *steer.Report) *float64 { return &r.Measurement }),
	floatColumn("output", func(r *steer.Report) *float64 { return &r.Output }),
	floatColumn("last_error", func(r *steer.Report) *float64 { return &r.LastError }),
	floatColumn("raw_left", func(r *steer.Report) *float64 { return &r.RawLeft }),
	floatColumn("raw_right", func(r *steer.Report) *float64 { return &r.RawRight }),
	floatColumn("left", func(r *steer.Report) *float64 { return &r.Left }),
	floatColumn("right", func(r *steer.Report) *float64 { return &r.Right }),
	floatColumn("difference", func(r *steer.Report) *float64 { return &r.Difference }),
	floatColumn("ratio", func(r *steer.Report) *float64 { return &r.Ratio }),
	floatColumn("integral", func(r *steer.Report) *float64 { return &r.Integral }),
	floatColumn("derivative", func(r *steer.Report) *float64 { return &r.Derivative }),
	{
		name:   "saturated",
		format: func(r steer.Report) string { return strconv.FormatBool(r.Saturated) },
		parse: func(s string, r *steer.Report) (err error) {
			r.Saturated, err = strconv.ParseBool(s)
			return err
		},
	},
}

// Header is the CSV header of cycles.csv.
func Header() []string {
	h := make([]string, len(columns))
	for i, c := range columns {
		h[i] = c.name
	}
	return h
}

func Row(r steer.Report) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = c.format(r)
	}
	return row
}

func ParseRow(rec []string) (steer.Report, error) {
	var r steer.Report
	if len(rec) != len(columns) {
		return r, fmt.Errorf("expected %d fields, got %d", len(columns), len(rec))
	}
	for i, c := range columns {
		if err := c.parse(rec[i], &r); err != nil {
			return r, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return r, nil
}
