package experiment

import (
	"fmt"
	"sort"
)

// Scenario adjusts a run's starting conditions or plant.
type Scenario struct {
	Description string
	Apply       func(*Config)
}

type Registry struct {
	scenarios map[string]Scenario
}

func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]Scenario)}

	r.scenarios["offset"] = Scenario{
		Description: "start 0.3 m right of centre, heading straight",
		Apply:       func(c *Config) { c.Offset, c.Heading = 0.3, 0 },
	}
	r.scenarios["heading"] = Scenario{
		Description: "start centred, heading 0.3 rad towards the left wall",
		Apply:       func(c *Config) { c.Offset, c.Heading = 0, -0.3 },
	}
	r.scenarios["noisy"] = Scenario{
		Description: "offset start with sensor noise of 15 reading units",
		Apply: func(c *Config) {
			c.Offset, c.Heading = 0.3, 0
			c.Plant.Noise = 15
		},
	}
	r.scenarios["narrow"] = Scenario{
		Description: "1.2 m corridor at 2.5 m/s",
		Apply: func(c *Config) {
			c.Plant.Width = 1.2
			c.Plant.Speed = 2.5
			c.Offset, c.Heading = 0.2, 0
		},
	}
	return r
}

func (r *Registry) Register(name string, s Scenario) {
	r.scenarios[name] = s
}

func (r *Registry) Apply(name string, cfg *Config) error {
	s, ok := r.scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario: %s", name)
	}
	s.Apply(cfg)
	return nil
}

func (r *Registry) Describe(name string) string {
	return r.scenarios[name].Description
}

func (r *Registry) ListScenarios() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
