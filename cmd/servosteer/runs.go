package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/servosteer/internal/analysis"
	"github.com/san-kum/servosteer/internal/experiment"
	"github.com/san-kum/servosteer/internal/steer"
	"github.com/san-kum/servosteer/internal/storage"
	"github.com/san-kum/servosteer/internal/viz"
)

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Source.Kind = "sim"
	if err := cfg.Validate(); err != nil {
		return err
	}
	ecfg, err := simConfig(cfg)
	if err != nil {
		return err
	}

	if ensembleRuns > 1 {
		return runEnsemble(ecfg)
	}

	exp, err := experiment.New(ecfg)
	if err != nil {
		return err
	}

	fmt.Printf("running %d cycles on the simulated corridor...\n", ecfg.Cycles)
	start := time.Now()
	result, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := exp.Metadata(result)
	runID, err := storage.New(dataDir).Save(meta, result.Reports)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("cycles: %d (%d saturated)\n", result.Summary.Cycles, result.Summary.Saturated)
	if result.Collided {
		fmt.Println("the vehicle touched a wall")
	}
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)
	return nil
}

func runEnsemble(ecfg experiment.Config) error {
	fmt.Printf("running %d seeds from %d, %d cycles each...\n", ensembleRuns, ecfg.Seed, ecfg.Cycles)
	results, err := experiment.NewEnsemble(ecfg, ensembleRuns, ecfg.Seed).Run(context.Background())
	if err != nil {
		return err
	}

	agg := experiment.Aggregate(results)
	names := make([]string, 0, len(agg))
	for name := range agg {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTDDEV")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\n", name, agg[name].Mean, agg[name].StdDev)
	}
	return w.Flush()
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ecfg, err := simConfig(cfg)
	if err != nil {
		return err
	}
	if !slices.Contains(viz.ThemeNames(), theme) {
		return fmt.Errorf("unknown theme: %s (available: %v)", theme, viz.ThemeNames())
	}
	viz.SetTheme(theme)

	title := "servosteer"
	if scenario != "" {
		title += " / " + scenario
	}
	return viz.RunLive(ecfg, title)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base, err := simConfig(cfg)
	if err != nil {
		return err
	}
	if tuneScale <= 1 {
		return fmt.Errorf("scale must be above 1, got %f", tuneScale)
	}

	current := cfg.GetControllerParams()
	ranges := make([][]float64, len(tuneParams))
	for i, name := range tuneParams {
		v, ok := current[name]
		if !ok {
			return fmt.Errorf("unknown parameter: %s", name)
		}
		if v == 0 {
			ranges[i] = experiment.Linspace(0, 1/tuneScale, tuneSteps)
			continue
		}
		ranges[i] = experiment.Linspace(v/tuneScale, v*tuneScale, tuneSteps)
	}

	grid, err := experiment.NewGridSearch(tuneParams, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("searching %d combinations for the lowest %s...\n", int(math.Pow(float64(tuneSteps), float64(len(tuneParams)))), metricName)
	best, score, err := grid.Search(ctx, base, metricName)
	if err != nil {
		return err
	}
	if math.IsInf(score, 1) {
		return fmt.Errorf("every combination hit a wall")
	}

	fmt.Printf("best %s: %.6f\n", metricName, score)
	for _, name := range tuneParams {
		fmt.Printf("  --%s %.4g\n", flagName(name), best[name])
	}
	return nil
}

func flagName(param string) string {
	switch param {
	case "Kp":
		return "kp"
	case "Ki":
		return "ki"
	case "Kd":
		return "kd"
	}
	return "target"
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tTIME\tCYCLES\tKP\tKI\tKD\tMEAN ERR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%g\t%g\t%g\t%.3f\n",
			run.ID,
			run.Source,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Cycles,
			run.Servo.Kp,
			run.Servo.Ki,
			run.Servo.Kd,
			run.Metrics["mean_abs_error"],
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []steer.Report, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	reports, err := st.LoadCycles(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(reports) == 0 {
		return nil, nil, fmt.Errorf("run %s has no cycles", runID)
	}
	return meta, reports, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("source: %s\n", meta.Source)
	fmt.Printf("cycles: %d\n\n", len(reports))

	series := []struct {
		caption string
		value   func(steer.Report) float64
	}{
		{"servo angle (deg)", func(r steer.Report) float64 { return r.Output }},
		{"mapped input (deg)", func(r steer.Report) float64 { return r.Measurement }},
		{"error (deg)", func(r steer.Report) float64 { return r.LastError }},
		{"sensor difference", func(r steer.Report) float64 { return r.Difference }},
	}
	for _, s := range series {
		data := make([]float64, len(reports))
		for i, r := range reports {
			data[i] = s.value(r)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		))
		fmt.Println()
	}
	return nil
}

// cycleRate is the rate a run was sampled at: the plant timestep for
// simulated runs, otherwise the spacing of the cycle timestamps.
func cycleRate(meta *storage.RunMetadata, reports []steer.Report) float64 {
	if rateHz > 0 {
		return rateHz
	}
	if meta.Dt > 0 {
		return 1 / meta.Dt
	}
	n := len(reports)
	if n > 1 {
		span := reports[n-1].Time.Sub(reports[0].Time).Seconds()
		if span > 0 {
			return float64(n-1) / span
		}
	}
	return 1
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}
	hz := cycleRate(meta, reports)

	fmt.Printf("analysis: %s (%d cycles at %.2f Hz)\n\n", meta.ID, len(reports), hz)
	fmt.Println("metrics:")
	printMetrics(meta.Metrics)
	fmt.Println()

	errs := analysis.Errors(reports)
	ps := analysis.PowerSpectrum(errs)
	if len(ps) > 2 {
		fmt.Println(asciigraph.Plot(ps[1:],
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("error power spectrum"),
		))
		fmt.Println()
	}

	peak := analysis.Dominant(errs, hz)
	if peak.Freq > 0 {
		fmt.Printf("dominant frequency: %.3f Hz (%.0f%% of power)\n", peak.Freq, peak.Share*100)
		fmt.Printf("period: %.3f s\n", 1/peak.Freq)
	} else {
		fmt.Println("no oscillation found")
	}

	fmt.Println("\nphase portrait (error vs change in error):")
	fmt.Print(analysis.NewPhasePortrait(reports).ASCII(71, 21))
	fmt.Println("legend: . early, o middle, ● late")
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}

	switch exportFormat {
	case "meta":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(storage.ExportData{Meta: *meta, Reports: reports})
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write(storage.Header()); err != nil {
			return err
		}
		for _, r := range reports {
			if err := w.Write(storage.Row(r)); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}
	return fmt.Errorf("unknown format: %s (json, csv or meta)", exportFormat)
}
