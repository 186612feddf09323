package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/servosteer/internal/steer"
)

// Gauges exports the latest cycle on a private registry.
type Gauges struct {
	reg *prometheus.Registry

	output      prometheus.Gauge
	measurement prometheus.Gauge
	target      prometheus.Gauge
	lastError   prometheus.Gauge
	integral    prometheus.Gauge
	raw         *prometheus.GaugeVec
	cycles      prometheus.Counter
	saturated   prometheus.Counter
}

func NewGauges() *Gauges {
	g := &Gauges{
		reg: prometheus.NewRegistry(),
		output: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servosteer_output_degrees",
			Help: "Commanded servo angle.",
		}),
		measurement: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servosteer_measurement_degrees",
			Help: "Sensor imbalance mapped onto the angle scale.",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servosteer_target_degrees",
			Help: "Regulator setpoint.",
		}),
		lastError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servosteer_error_degrees",
			Help: "Target minus measurement in the latest cycle.",
		}),
		integral: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servosteer_integral",
			Help: "Accumulated error.",
		}),
		raw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "servosteer_sensor_reading",
			Help: "Clamped sensor reading.",
		}, []string{"side"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "servosteer_cycles_total",
			Help: "Completed regulation cycles.",
		}),
		saturated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "servosteer_saturated_cycles_total",
			Help: "Cycles whose output hit a bound.",
		}),
	}
	g.reg.MustRegister(g.output, g.measurement, g.target, g.lastError, g.integral, g.raw, g.cycles, g.saturated)
	return g
}

func (g *Gauges) Report(_ context.Context, r steer.Report) error {
	g.output.Set(r.Output)
	g.measurement.Set(r.Measurement)
	g.target.Set(r.Target)
	g.lastError.Set(r.LastError)
	g.integral.Set(r.Integral)
	g.raw.WithLabelValues(steer.Left.String()).Set(r.Left)
	g.raw.WithLabelValues(steer.Right.String()).Set(r.Right)
	g.cycles.Inc()
	if r.Saturated {
		g.saturated.Inc()
	}
	return nil
}

func (g *Gauges) Registry() *prometheus.Registry { return g.reg }

func (g *Gauges) Handler() http.Handler {
	return promhttp.HandlerFor(g.reg, promhttp.HandlerOpts{})
}
