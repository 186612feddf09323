package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/servosteer/internal/config"
	"github.com/san-kum/servosteer/internal/experiment"
	"github.com/san-kum/servosteer/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	target   float64
	kp       float64
	ki       float64
	kd       float64
	iLimit   float64
	angleMin float64
	angleMax float64
	inputMin float64
	inputMax float64

	rateHz   float64
	cycles   int
	decimals int
	detail   bool
	jsonOut  bool
	save     bool
	every    int

	port   string
	baud   int
	broker string
	topic  string
	listen string

	dt         float64
	offset     float64
	heading    float64
	noise      float64
	seed       int64
	integrator string
	scenario   string

	tuneParams []string
	tuneSteps  int
	tuneScale  float64
	metricName string

	exportFormat string
	ensembleRuns int
	theme        string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "servosteer",
		Short:        "closed-loop steering controller",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog refuses to log until the go flag set has been parsed.
			return flag.CommandLine.Parse(nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			viz.SetTheme(theme)
			return viz.RunInteractive(cfg)
		},
	}

	flag.Set("logtostderr", "true")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".servosteer", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use a servo tuning preset")
	rootCmd.Flags().StringVar(&theme, "theme", "workshop", "colour theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the loop against the configured source (terminal by default)",
		Args:  cobra.NoArgs,
		RunE:  runLoop,
	}
	servoFlags(runCmd)
	loopFlags(runCmd)
	sourceFlags(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay [file.csv]",
		Short: "run the loop over recorded sensor readings",
		Args:  cobra.ExactArgs(1),
		RunE:  sourceCommand("replay"),
	}
	servoFlags(replayCmd)
	loopFlags(replayCmd)

	serialCmd := &cobra.Command{
		Use:   "serial [port]",
		Short: "read sensors from and drive the servo over a serial port",
		Args:  cobra.ExactArgs(1),
		RunE:  sourceCommand("serial"),
	}
	servoFlags(serialCmd)
	loopFlags(serialCmd)
	serialCmd.Flags().IntVar(&baud, "baud", config.DefaultBaud, "baud rate")

	mqttCmd := &cobra.Command{
		Use:   "mqtt [broker]",
		Short: "read sensor frames from an mqtt topic",
		Args:  cobra.ExactArgs(1),
		RunE:  sourceCommand("mqtt"),
	}
	servoFlags(mqttCmd)
	loopFlags(mqttCmd)
	mqttCmd.Flags().StringVar(&topic, "topic", config.DefaultTopic, "sensor topic")

	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "run the loop against the simulated corridor and store the run",
		Args:  cobra.NoArgs,
		RunE:  runSim,
	}
	servoFlags(simCmd)
	plantFlags(simCmd)
	simCmd.Flags().IntVar(&cycles, "cycles", experiment.DefaultCycles, "cycles to run")
	simCmd.Flags().IntVar(&ensembleRuns, "ensemble", 0, "repeat over this many seeds and summarise instead of storing")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive the simulated corridor in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	servoFlags(liveCmd)
	plantFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "workshop", "colour theme")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the loop with metrics, websocket and tuning endpoints",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	servoFlags(serveCmd)
	loopFlags(serveCmd)
	sourceFlags(serveCmd)
	plantFlags(serveCmd)
	serveCmd.Flags().StringVar(&listen, "listen", config.DefaultListen, "http listen address")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search regulator gains on the simulated corridor",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	servoFlags(tuneCmd)
	plantFlags(tuneCmd)
	tuneCmd.Flags().IntVar(&cycles, "cycles", experiment.DefaultCycles, "cycles per run")
	tuneCmd.Flags().StringSliceVar(&tuneParams, "params", []string{"Kp", "Kd"}, "regulator parameters to search")
	tuneCmd.Flags().IntVar(&tuneSteps, "steps", 5, "values per parameter")
	tuneCmd.Flags().Float64Var(&tuneScale, "scale", 4, "search from value/scale to value*scale")
	tuneCmd.Flags().StringVar(&metricName, "metric", "mean_abs_error", "metric to minimise")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "oscillation and phase analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&rateHz, "rate", 0, "cycle rate in Hz (default: from the run)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json, csv or meta")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list servo tuning presets and scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("presets:")
			for _, name := range config.ListPresets() {
				s := config.Presets[name]
				fmt.Printf("  %-12s kp=%g ki=%g kd=%g angle=[%g, %g]\n", name, s.Kp, s.Ki, s.Kd, s.AngleMin, s.AngleMax)
			}
			reg := experiment.NewRegistry()
			fmt.Println("scenarios:")
			for _, name := range reg.ListScenarios() {
				fmt.Printf("  %-12s %s\n", name, reg.Describe(name))
			}
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the effective configuration as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return config.Write(os.Stdout, cfg)
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, replayCmd, serialCmd, mqttCmd, simCmd, liveCmd, serveCmd, tuneCmd,
		listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func servoFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&target, "target", config.DefaultTarget, "target servo angle")
	f.Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	f.Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	f.Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	f.Float64Var(&iLimit, "integral-limit", 0, "integral clamp (0 is unbounded)")
	f.Float64Var(&angleMin, "angle-min", config.DefaultAngleMin, "lowest servo angle")
	f.Float64Var(&angleMax, "angle-max", config.DefaultAngleMax, "highest servo angle")
	f.Float64Var(&inputMin, "input-min", config.DefaultInputMin, "lowest sensor reading")
	f.Float64Var(&inputMax, "input-max", config.DefaultInputMax, "highest sensor reading")
}

func loopFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&rateHz, "rate", 0, "cycles per second (0 runs as fast as input arrives)")
	f.IntVar(&cycles, "cycles", 0, "stop after this many cycles (0 runs until input ends)")
	f.IntVar(&decimals, "decimals", 1, "decimal places in the text report")
	f.BoolVar(&detail, "detail", false, "print regulator state after each cycle")
	f.BoolVar(&jsonOut, "json", false, "report cycles as json lines")
	f.IntVar(&every, "every", 1, "report every nth cycle")
	f.BoolVar(&save, "save", false, "store the run")
}

func sourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&port, "port", "", "serial port (serial source)")
	f.IntVar(&baud, "baud", config.DefaultBaud, "baud rate (serial source)")
	f.StringVar(&broker, "broker", "", "mqtt broker url (mqtt source)")
	f.StringVar(&topic, "topic", config.DefaultTopic, "sensor topic (mqtt source)")
}

func plantFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&dt, "dt", config.DefaultDt, "plant timestep")
	f.Float64Var(&offset, "offset", 0.3, "initial offset from the centre line (m)")
	f.Float64Var(&heading, "heading", 0, "initial heading (rad)")
	f.Float64Var(&noise, "noise", 0, "sensor noise in reading units")
	f.Int64Var(&seed, "seed", 0, "random seed")
	f.StringVar(&integrator, "integrator", "rk4", "integrator (euler, midpoint, rk4)")
	f.StringVar(&scenario, "scenario", "", "named starting scenario")
}

// loadConfig layers the configuration: defaults, then a preset, then the
// config file, then flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	setFloat := func(name string, dst *float64, v float64) {
		if f.Lookup(name) != nil && f.Changed(name) {
			*dst = v
		}
	}
	setFloat("target", &cfg.Servo.Target, target)
	setFloat("kp", &cfg.Servo.Kp, kp)
	setFloat("ki", &cfg.Servo.Ki, ki)
	setFloat("kd", &cfg.Servo.Kd, kd)
	setFloat("integral-limit", &cfg.Servo.IntegralLimit, iLimit)
	setFloat("angle-min", &cfg.Servo.AngleMin, angleMin)
	setFloat("angle-max", &cfg.Servo.AngleMax, angleMax)
	setFloat("input-min", &cfg.Servo.InputMin, inputMin)
	setFloat("input-max", &cfg.Servo.InputMax, inputMax)
	setFloat("rate", &cfg.Loop.RateHz, rateHz)
	setFloat("dt", &cfg.Plant.Dt, dt)
	setFloat("offset", &cfg.Plant.Offset, offset)
	setFloat("heading", &cfg.Plant.Heading, heading)
	setFloat("noise", &cfg.Plant.Noise, noise)

	if f.Lookup("cycles") != nil && f.Changed("cycles") {
		cfg.Loop.Cycles = cycles
	}
	if f.Lookup("seed") != nil && f.Changed("seed") {
		cfg.Plant.Seed = seed
	}
	if f.Lookup("integrator") != nil && f.Changed("integrator") {
		cfg.Plant.Integrator = integrator
	}
	if f.Lookup("port") != nil && f.Changed("port") {
		cfg.Source.Port = port
	}
	if f.Lookup("baud") != nil && f.Changed("baud") {
		cfg.Source.Baud = baud
	}
	if f.Lookup("broker") != nil && f.Changed("broker") {
		cfg.Source.Broker = broker
	}
	if f.Lookup("topic") != nil && f.Changed("topic") {
		cfg.Source.Topic = topic
	}
	if f.Lookup("listen") != nil && f.Changed("listen") {
		cfg.Telemetry.Listen = listen
	}
	return cfg, nil
}

// simConfig turns the configuration into a simulated run, applying the
// scenario flag last.
func simConfig(cfg *config.Config) (experiment.Config, error) {
	exp := experiment.FromConfig(cfg)
	if scenario != "" {
		if err := experiment.NewRegistry().Apply(scenario, &exp); err != nil {
			return exp, err
		}
	}
	return exp, nil
}
