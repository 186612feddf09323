package config

import "sort"

// Presets are servo tunings applied over DefaultConfig.
var Presets = map[string]ServoConfig{
	"center": {
		Target: 90, AngleMin: 0, AngleMax: 180, InputMin: 0, InputMax: 1023,
		Kp: 1.0, Ki: 0.01, Kd: 0.1,
	},
	"gentle": {
		Target: 90, AngleMin: 45, AngleMax: 135, InputMin: 0, InputMax: 1023,
		Kp: 0.4, Ki: 0.005, Kd: 0.05,
	},
	"aggressive": {
		Target: 90, AngleMin: 0, AngleMax: 180, InputMin: 0, InputMax: 1023,
		Kp: 2.5, Ki: 0.05, Kd: 0.6,
	},
	"bounded": {
		Target: 90, AngleMin: 0, AngleMax: 180, InputMin: 0, InputMax: 1023,
		Kp: 1.0, Ki: 0.05, Kd: 0.1, IntegralLimit: 200,
	},
}

// GetPreset returns DefaultConfig with the named servo tuning, or nil.
func GetPreset(name string) *Config {
	servo, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Servo = servo
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
