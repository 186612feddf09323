package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/servosteer/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Servo.Target != 90 {
		t.Errorf("expected target 90, got %f", cfg.Servo.Target)
	}
	if cfg.Servo.AngleMin != 0 || cfg.Servo.AngleMax != 180 {
		t.Errorf("expected angles 0..180, got %f..%f", cfg.Servo.AngleMin, cfg.Servo.AngleMax)
	}
	if cfg.Servo.InputMax != 1023 {
		t.Errorf("expected input max 1023, got %f", cfg.Servo.InputMax)
	}
	if cfg.Servo.Kp != 1 || cfg.Servo.Ki != 0.01 || cfg.Servo.Kd != 0.1 {
		t.Errorf("unexpected gains %f %f %f", cfg.Servo.Kp, cfg.Servo.Ki, cfg.Servo.Kd)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servo.yaml")
	data := []byte("servo:\n  kp: 2.5\nsource:\n  kind: sim\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Servo.Kp != 2.5 {
		t.Errorf("expected kp 2.5, got %f", cfg.Servo.Kp)
	}
	if cfg.Servo.Target != 90 {
		t.Errorf("expected default target to survive, got %f", cfg.Servo.Target)
	}
	if cfg.Source.Kind != "sim" {
		t.Errorf("expected source sim, got %s", cfg.Source.Kind)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servo.yaml")
	cfg := GetPreset("bounded")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Servo != cfg.Servo {
		t.Errorf("servo config changed: %+v vs %+v", loaded.Servo, cfg.Servo)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"inverted angles", func(c *Config) { c.Servo.AngleMin, c.Servo.AngleMax = 180, 0 }, false},
		{"inverted inputs fall back", func(c *Config) { c.Servo.InputMin, c.Servo.InputMax = 10, 0 }, true},
		{"negative rate", func(c *Config) { c.Loop.RateHz = -1 }, false},
		{"unknown source", func(c *Config) { c.Source.Kind = "carrier-pigeon" }, false},
		{"replay without path", func(c *Config) { c.Source.Kind = "replay" }, false},
		{"serial without port", func(c *Config) { c.Source.Kind = "serial" }, false},
		{"mqtt with broker", func(c *Config) { c.Source.Kind = "mqtt"; c.Source.Broker = "tcp://localhost:1883" }, true},
		{"sim with zero dt", func(c *Config) { c.Source.Kind = "sim"; c.Plant.Dt = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateWrapsBoundsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servo.AngleMax = cfg.Servo.AngleMin
	if err := cfg.Validate(); !errors.Is(err, dynamo.ErrInvalidBounds) {
		t.Errorf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("gentle")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Servo.AngleMin != 45 {
		t.Errorf("expected angle min 45, got %f", cfg.Servo.AngleMin)
	}
	if cfg.Source.Kind != "terminal" {
		t.Errorf("preset should keep default source, got %s", cfg.Source.Kind)
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
}

func TestSteerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servo.IntegralLimit = 50
	sc := cfg.Steer()
	if sc.OutputMax != 180 || sc.InputMax != 1023 || sc.IntegralLimit != 50 {
		t.Errorf("unexpected steer config %+v", sc)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, DefaultConfig()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "servo:\n  target: 90") {
		t.Errorf("expected two-space indented servo block, got:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "written.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Servo != DefaultConfig().Servo {
		t.Errorf("servo config changed after write: %+v", loaded.Servo)
	}
}
