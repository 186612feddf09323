package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/servosteer/internal/channel"
	"github.com/san-kum/servosteer/internal/control"
	"github.com/san-kum/servosteer/internal/steer"
)

const (
	DefaultTarget   = steer.DefaultTarget
	DefaultAngleMin = control.DefaultOutputMin
	DefaultAngleMax = control.DefaultOutputMax
	DefaultInputMin = channel.DefaultLower
	DefaultInputMax = channel.DefaultUpper
	DefaultKp       = control.DefaultKp
	DefaultKi       = control.DefaultKi
	DefaultKd       = control.DefaultKd
	DefaultBaud     = 115200
	DefaultListen   = ":8080"
	DefaultTopic    = "servosteer/sensors"
	DefaultSubject  = "servosteer.cycles"
	DefaultDt       = 0.02
	DefaultSpeed    = 1.5
	DefaultWidth    = 2.0
)

type Config struct {
	Servo     ServoConfig     `yaml:"servo"`
	Source    SourceConfig    `yaml:"source"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Loop      LoopConfig      `yaml:"loop"`
	Plant     PlantConfig     `yaml:"plant"`
}

type ServoConfig struct {
	Target        float64 `yaml:"target"`
	AngleMin      float64 `yaml:"angle_min"`
	AngleMax      float64 `yaml:"angle_max"`
	InputMin      float64 `yaml:"input_min"`
	InputMax      float64 `yaml:"input_max"`
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	IntegralLimit float64 `yaml:"integral_limit"`
}

// SourceConfig selects the acquisition collaborator.
type SourceConfig struct {
	Kind   string `yaml:"kind"` // terminal, sim, replay, serial, mqtt
	Path   string `yaml:"path"`
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type TelemetryConfig struct {
	MQTTBroker  string `yaml:"mqtt_broker"`
	MQTTTopic   string `yaml:"mqtt_topic"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
	Listen      string `yaml:"listen"`
}

type LoopConfig struct {
	RateHz float64 `yaml:"rate_hz"`
	Cycles int     `yaml:"cycles"`
}

// PlantConfig describes the simulated corridor used by sim and live.
type PlantConfig struct {
	Dt         float64 `yaml:"dt"`
	Speed      float64 `yaml:"speed"`
	Width      float64 `yaml:"width"`
	Offset     float64 `yaml:"offset"`
	Heading    float64 `yaml:"heading"`
	Noise      float64 `yaml:"noise"`
	Integrator string  `yaml:"integrator"`
	Seed       int64   `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Servo: ServoConfig{
			Target:   DefaultTarget,
			AngleMin: DefaultAngleMin,
			AngleMax: DefaultAngleMax,
			InputMin: DefaultInputMin,
			InputMax: DefaultInputMax,
			Kp:       DefaultKp,
			Ki:       DefaultKi,
			Kd:       DefaultKd,
		},
		Source: SourceConfig{
			Kind:  "terminal",
			Baud:  DefaultBaud,
			Topic: DefaultTopic,
		},
		Telemetry: TelemetryConfig{
			NATSSubject: DefaultSubject,
			Listen:      DefaultListen,
		},
		Plant: PlantConfig{
			Dt:         DefaultDt,
			Speed:      DefaultSpeed,
			Width:      DefaultWidth,
			Offset:     0.3,
			Integrator: "rk4",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Write encodes cfg as yaml.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks the parts of the configuration that cannot fall back to a
// default. Malformed input bounds are not an error here; the loop replaces
// them with the default range.
func (c *Config) Validate() error {
	if err := c.Steer().Control().Validate(); err != nil {
		return fmt.Errorf("servo: %w", err)
	}
	if c.Loop.RateHz < 0 {
		return fmt.Errorf("loop.rate_hz must not be negative, got %f", c.Loop.RateHz)
	}
	switch c.Source.Kind {
	case "terminal", "sim":
	case "replay":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for replay")
		}
	case "serial":
		if c.Source.Port == "" {
			return fmt.Errorf("source.port is required for serial")
		}
	case "mqtt":
		if c.Source.Broker == "" {
			return fmt.Errorf("source.broker is required for mqtt")
		}
	default:
		return fmt.Errorf("unknown source kind: %s", c.Source.Kind)
	}
	if c.Source.Kind == "sim" {
		if c.Plant.Dt <= 0 {
			return fmt.Errorf("plant.dt must be positive, got %f", c.Plant.Dt)
		}
		if c.Plant.Width <= 0 {
			return fmt.Errorf("plant.width must be positive, got %f", c.Plant.Width)
		}
	}
	return nil
}

func (c *Config) Steer() steer.Config {
	return steer.Config{
		Target:        c.Servo.Target,
		OutputMin:     c.Servo.AngleMin,
		OutputMax:     c.Servo.AngleMax,
		Kp:            c.Servo.Kp,
		Ki:            c.Servo.Ki,
		Kd:            c.Servo.Kd,
		IntegralLimit: c.Servo.IntegralLimit,
		InputMin:      c.Servo.InputMin,
		InputMax:      c.Servo.InputMax,
	}
}

// GetControllerParams returns the tunable regulator parameters under the
// names the regulator's SetParam accepts.
func (c *Config) GetControllerParams() map[string]float64 {
	return map[string]float64{
		"Kp":     c.Servo.Kp,
		"Ki":     c.Servo.Ki,
		"Kd":     c.Servo.Kd,
		"Target": c.Servo.Target,
	}
}
