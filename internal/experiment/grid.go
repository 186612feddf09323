package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/servosteer/internal/dynamo"
)

// GridSearch tries every combination of regulator parameter values and keeps
// the one that minimises a metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid: %d params but %d ranges", len(params), len(ranges))
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// points lists every combination, the last parameter varying fastest.
func (g *GridSearch) points() []map[string]float64 {
	points := []map[string]float64{{}}
	for i, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(points)*len(g.ranges[i]))
		for _, p := range points {
			for _, v := range g.ranges[i] {
				q := make(map[string]float64, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[name] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

type score struct {
	value float64
	ok    bool
	err   error
}

// Search runs base once per grid point, spread over the available CPUs.
// Runs that collide or fail score +Inf. Ties go to the earliest point.
func (g *GridSearch) Search(ctx context.Context, base Config, metricName string) (map[string]float64, float64, error) {
	points := g.points()
	scores := make([]score, len(points))

	dynamo.ParallelFor(len(points), 1, func(start, end int) {
		for i := start; i < end; i++ {
			scores[i] = g.evaluate(ctx, base, points[i], metricName)
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	best := -1
	for i, s := range scores {
		if s.err != nil {
			return nil, 0, s.err
		}
		if !s.ok {
			continue
		}
		if best < 0 || s.value < scores[best].value {
			best = i
		}
	}
	if best < 0 {
		return nil, math.Inf(1), fmt.Errorf("grid: no run produced %s", metricName)
	}
	return points[best], scores[best].value, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base Config, params map[string]float64, metricName string) score {
	if ctx.Err() != nil {
		return score{}
	}
	cfg := base
	cfg.Params = params
	exp, err := New(cfg)
	if err != nil {
		return score{err: err}
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return score{value: math.Inf(1), ok: true}
	}

	val, ok := result.Metrics[metricName]
	if !ok {
		return score{err: fmt.Errorf("grid: unknown metric %s", metricName)}
	}
	if result.Collided {
		val = math.Inf(1)
	}
	return score{value: val, ok: true}
}
