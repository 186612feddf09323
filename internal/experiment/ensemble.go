package experiment

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/servosteer/internal/dynamo"
)

// Ensemble repeats one configuration under consecutive seeds. With sensor
// noise each seed sees a different reading sequence.
type Ensemble struct {
	base      Config
	numRuns   int
	seedStart int64
}

func NewEnsemble(base Config, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{base: base, numRuns: numRuns, seedStart: seedStart}
}

// Run executes every member concurrently. Results are in seed order.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	dynamo.ParallelFor(e.numRuns, 1, func(start, end int) {
		for i := start; i < end; i++ {
			cfg := e.base
			cfg.Seed = e.seedStart + int64(i)
			exp, err := New(cfg)
			if err != nil {
				errs[i] = err
				continue
			}
			results[i], errs[i] = exp.Run(ctx)
		}
	})

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Spread is the mean and standard deviation of one metric across runs.
type Spread struct {
	Mean, StdDev float64
}

// Aggregate summarises each metric across the ensemble's results.
func Aggregate(results []*Result) map[string]Spread {
	values := make(map[string][]float64)
	for _, r := range results {
		for name, v := range r.Metrics {
			values[name] = append(values[name], v)
		}
	}

	out := make(map[string]Spread, len(values))
	for name, vs := range values {
		mean, std := stat.MeanStdDev(vs, nil)
		if len(vs) < 2 {
			std = 0
		}
		out[name] = Spread{Mean: mean, StdDev: std}
	}
	return out
}
